package service_test

import (
	"context"
	"testing"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusService_UpdateStatus_Success(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectCommit()

	o := pendingOrder()
	o.Status = models.StatusProcessing
	orders := newFakeOrderRepo(o)
	outbox := &fakeOutbox{}
	listener := &recordingListener{}
	svc := service.NewStatusService(discardLogger(), tx, orders, outbox, service.StatusListeners{listener})

	order, err := svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{OrderID: 7, Status: "shipped"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)

	stored, _ := orders.GetOrder(context.Background(), 7)
	assert.Equal(t, models.StatusShipped, stored.Status)
	assert.Equal(t, []string{events.TypeOrderStatusChanged}, outbox.types())
	assert.Equal(t, []models.StatusChange{{OrderID: 7, UserID: 1, Status: models.StatusShipped}}, listener.changes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusService_UpdateStatus_InvalidStatus(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	svc := service.NewStatusService(discardLogger(), tx, newFakeOrderRepo(pendingOrder()), &fakeOutbox{}, nil)

	for _, status := range []string{"", "paid", "awaiting payment"} {
		_, err := svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{OrderID: 7, Status: status})
		require.Error(t, err, status)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusService_UpdateStatus_OrderNotFound(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := service.NewStatusService(discardLogger(), tx, newFakeOrderRepo(), &fakeOutbox{}, nil)

	_, err := svc.UpdateStatus(context.Background(), service.UpdateStatusRequest{OrderID: 7, Status: "CANCELLED"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
