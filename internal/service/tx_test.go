package service_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockTimeoutRunner(t *testing.T, maxRetries int) (*service.TxRunner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return service.NewTxRunner(discardLogger(), db, 5*time.Second, maxRetries, nil), mock
}

func TestTxRunner_SetsLockTimeout(t *testing.T) {
	runner, mock := newLockTimeoutRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '5000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	calls := 0
	err := runner.Run(context.Background(), "test", func(tx *sql.Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunner_LockTimeoutFailureRollsBack(t *testing.T) {
	runner, mock := newLockTimeoutRunner(t, 0)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '5000ms'")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	calls := 0
	err := runner.Run(context.Background(), "test", func(tx *sql.Tx) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxRunner_RetriesLockTimeoutOnce(t *testing.T) {
	runner, mock := newLockTimeoutRunner(t, 1)
	for range 2 {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '5000ms'")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	calls := 0
	err := runner.Run(context.Background(), "test", func(tx *sql.Tx) error {
		calls++
		return storage.Classify(&pq.Error{Code: "55P03"})
	})
	require.Error(t, err)
	assert.True(t, storage.IsTransient(err))
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
