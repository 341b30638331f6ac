package service_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/events"
	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	users     *fakeUserRepo
	cart      *fakeCartRepo
	inventory *fakeInventory
	orders    *fakeOrderRepo
	outbox    *fakeOutbox
}

func newCheckoutFixture() *checkoutFixture {
	return &checkoutFixture{
		users: newFakeUserRepo(&models.User{ID: 1, Email: "buyer@example.com", Role: models.RoleCustomer}),
		cart:  newFakeCartRepo(),
		inventory: newFakeInventory(
			models.StockLevel{ProductID: 10, Name: "Product A", Price: dec("100"), Stock: 5},
			models.StockLevel{ProductID: 20, Name: "Product B", Price: dec("50"), Stock: 5},
		),
		orders: newFakeOrderRepo(),
		outbox: &fakeOutbox{},
	}
}

func (f *checkoutFixture) service(tx *service.TxRunner) service.CheckoutService {
	return service.NewCheckoutService(discardLogger(), tx, f.users, f.cart, f.inventory, f.orders, f.outbox, nil)
}

func TestCheckoutService_Checkout_Success(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectCommit()

	f := newCheckoutFixture()
	f.cart.lines[1] = []models.CartLine{
		{UserID: 1, ProductID: 20, Quantity: 1},
		{UserID: 1, ProductID: 10, Quantity: 2},
	}

	res, err := f.service(tx).Checkout(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, res.Status)
	assert.True(t, dec("250").Equal(res.TotalAmount), "total should be 250, got %s", res.TotalAmount)
	assert.Equal(t, 3, f.inventory.products[10].Stock)
	assert.Equal(t, 4, f.inventory.products[20].Stock)
	assert.Empty(t, f.cart.lines[1], "cart should be cleared")

	// товары блокируются по возрастанию id
	require.Len(t, f.inventory.lockedIDs, 1)
	assert.Equal(t, []int64{10, 20}, f.inventory.lockedIDs[0])

	order, err := f.orders.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.UserID)

	lines, err := f.orders.GetOrderLines(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	sum := lines[0].Subtotal.Add(lines[1].Subtotal)
	assert.True(t, sum.Equal(order.Total), "line subtotals must add up to the order total")

	assert.Equal(t, []string{events.TypeOrderCreated}, f.outbox.types())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_EmptyCart(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newCheckoutFixture()
	other := []models.CartLine{{UserID: 2, ProductID: 10, Quantity: 1}}
	f.cart.lines[2] = other

	_, err := f.service(tx).Checkout(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeEmptyCart, apperr.CodeOf(err))

	// ни одной записи: заказов, списаний, событий и изменений корзин нет
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.inventory.lockedIDs)
	assert.Equal(t, 5, f.inventory.products[10].Stock)
	assert.Equal(t, 5, f.inventory.products[20].Stock)
	assert.Empty(t, f.outbox.records)
	assert.Empty(t, f.cart.lines[1])
	assert.Equal(t, other, f.cart.lines[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_InsufficientStock(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newCheckoutFixture()
	f.cart.lines[1] = []models.CartLine{
		{UserID: 1, ProductID: 10, Quantity: 2},
		{UserID: 1, ProductID: 20, Quantity: 6},
	}

	_, err := f.service(tx).Checkout(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "Product B")
	assert.Contains(t, err.Error(), "requested 6, available 5")

	assert.Equal(t, 5, f.inventory.products[10].Stock, "no stock may change on failure")
	assert.Equal(t, 5, f.inventory.products[20].Stock)
	assert.Len(t, f.cart.lines[1], 2, "cart must be kept on failure")
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.outbox.records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_UserNotFound(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newCheckoutFixture()

	_, err := f.service(tx).Checkout(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_ProductMissing(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newCheckoutFixture()
	f.cart.lines[1] = []models.CartLine{{UserID: 1, ProductID: 99, Quantity: 1}}

	_, err := f.service(tx).Checkout(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_InvalidUserID(t *testing.T) {
	tx, mock := newTxRunner(t, 1)

	f := newCheckoutFixture()

	_, err := f.service(tx).Checkout(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	// при ошибке валидации транзакция не открывается
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_RetriesTransientFailureOnce(t *testing.T) {
	tx, mock := newTxRunner(t, 1)
	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	f := newCheckoutFixture()
	f.users.lockErr = fmt.Errorf("%w: lock timeout", storage.ErrTransient)
	f.cart.lines[1] = []models.CartLine{{UserID: 1, ProductID: 10, Quantity: 1}}

	res, err := f.service(tx).Checkout(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(res.TotalAmount))
	assert.Equal(t, 4, f.inventory.products[10].Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_TransientFailureSurfaces(t *testing.T) {
	tx, mock := newTxRunner(t, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	f := newCheckoutFixture()
	f.users.lockErr = fmt.Errorf("%w: deadlock", storage.ErrTransient)
	f.cart.lines[1] = []models.CartLine{{UserID: 1, ProductID: 10, Quantity: 1}}

	_, err := f.service(tx).Checkout(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutService_Checkout_RandomCarts(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 2024))

	for i := range 200 {
		t.Run(fmt.Sprintf("cart_%d", i), func(t *testing.T) {
			tx, mock := newTxRunner(t, 1)
			mock.ExpectBegin()
			mock.ExpectCommit()

			f := newCheckoutFixture()
			f.inventory = newFakeInventory()

			want := decimal.Zero
			wantStock := map[int64]int{}
			n := 1 + rng.IntN(8)
			for _, id := range rng.Perm(50)[:n] {
				productID := int64(id + 1)
				price := decimal.New(1+rng.Int64N(1_000_000), -2)
				stock := 1 + rng.IntN(20)
				qty := 1 + rng.IntN(stock)

				f.inventory.products[productID] = &models.StockLevel{ProductID: productID, Name: fmt.Sprintf("p%d", productID), Price: price, Stock: stock}
				f.cart.lines[1] = append(f.cart.lines[1], models.CartLine{UserID: 1, ProductID: productID, Quantity: qty})
				want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
				wantStock[productID] = stock - qty
			}

			res, err := f.service(tx).Checkout(context.Background(), 1)
			require.NoError(t, err)
			assert.True(t, want.Equal(res.TotalAmount), "want %s, got %s", want, res.TotalAmount)

			lines, err := f.orders.GetOrderLines(context.Background(), res.OrderID)
			require.NoError(t, err)
			require.Len(t, lines, n)
			sum := decimal.Zero
			for _, l := range lines {
				assert.True(t, l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Equal(l.Subtotal))
				sum = sum.Add(l.Subtotal)
			}
			assert.True(t, sum.Equal(res.TotalAmount), "subtotals %s, total %s", sum, res.TotalAmount)

			for id, stock := range wantStock {
				assert.Equal(t, stock, f.inventory.products[id].Stock)
			}
			require.Len(t, f.inventory.lockedIDs, 1)
			assert.IsIncreasing(t, f.inventory.lockedIDs[0])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
