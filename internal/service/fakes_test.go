package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/storefront-orders/internal/domain/models"
	"github.com/linemk/storefront-orders/internal/service"
	"github.com/linemk/storefront-orders/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTxRunner возвращает раннер на sqlmock без lock timeout, ожидаются только Begin/Commit/Rollback
func newTxRunner(t *testing.T, maxRetries int) (*service.TxRunner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return service.NewTxRunner(discardLogger(), db, 0, maxRetries, nil), mock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeUserRepo struct {
	users   map[string]*models.User // по email
	lockErr error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.Email] = u
	}
	return f
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Email]; ok {
		return nil, storage.ErrEmailTaken
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) LockUserByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	if f.lockErr != nil {
		err := f.lockErr
		f.lockErr = nil
		return nil, err
	}
	return f.GetUserByID(ctx, id)
}

type fakeCartRepo struct {
	lines map[int64][]models.CartLine
	items map[int64][]models.CartItem
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		lines: make(map[int64][]models.CartLine),
		items: make(map[int64][]models.CartItem),
	}
}

func (f *fakeCartRepo) LockAndReadLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	return append([]models.CartLine(nil), f.lines[userID]...), nil
}

func (f *fakeCartRepo) ClearAll(ctx context.Context, tx *sql.Tx, userID int64) error {
	delete(f.lines, userID)
	return nil
}

func (f *fakeCartRepo) Upsert(ctx context.Context, userID, productID int64, deltaQty int) error {
	for i, l := range f.lines[userID] {
		if l.ProductID == productID {
			if l.Quantity+deltaQty > 10000 {
				return storage.ErrQuantityLimit
			}
			f.lines[userID][i].Quantity += deltaQty
			return nil
		}
	}
	f.lines[userID] = append(f.lines[userID], models.CartLine{UserID: userID, ProductID: productID, Quantity: deltaQty})
	return nil
}

func (f *fakeCartRepo) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	for i, l := range f.lines[userID] {
		if l.ProductID == productID {
			f.lines[userID][i].Quantity = qty
			return nil
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) Remove(ctx context.Context, userID, productID int64) error {
	for i, l := range f.lines[userID] {
		if l.ProductID == productID {
			f.lines[userID] = append(f.lines[userID][:i], f.lines[userID][i+1:]...)
			return nil
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) ListItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return append([]models.CartItem(nil), f.items[userID]...), nil
}

type fakeInventory struct {
	products  map[int64]*models.StockLevel
	lockedIDs [][]int64
}

var _ storage.InventoryStorage = (*fakeInventory)(nil)

func newFakeInventory(levels ...models.StockLevel) *fakeInventory {
	f := &fakeInventory{products: make(map[int64]*models.StockLevel)}
	for _, l := range levels {
		f.products[l.ProductID] = &l
	}
	return f
}

func (f *fakeInventory) LockAndReadStock(ctx context.Context, tx *sql.Tx, productIDs []int64) (map[int64]models.StockLevel, error) {
	f.lockedIDs = append(f.lockedIDs, append([]int64(nil), productIDs...))
	out := make(map[int64]models.StockLevel, len(productIDs))
	for _, id := range productIDs {
		if p, ok := f.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (f *fakeInventory) Decrement(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	p, ok := f.products[productID]
	if !ok {
		return storage.ErrProductNotFound
	}
	if p.Stock < qty {
		return storage.ErrConstraint
	}
	p.Stock -= qty
	return nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*models.Order
	lines  map[int64][]models.OrderLine
	nextID int64
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	f := &fakeOrderRepo{
		orders: make(map[int64]*models.Order),
		lines:  make(map[int64][]models.OrderLine),
		nextID: 100,
	}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order, lines []models.OrderLine) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	f.orders[order.ID] = &stored
	for _, l := range lines {
		l.OrderID = order.ID
		f.lines[order.ID] = append(f.lines[order.ID], l)
	}
	return order.ID, nil
}

func (f *fakeOrderRepo) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	return f.GetOrder(ctx, orderID)
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return nil
}

func (f *fakeOrderRepo) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderLine(nil), f.lines[orderID]...), nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakePaymentRepo struct {
	payments []models.Payment
}

var _ storage.PaymentStorage = (*fakePaymentRepo)(nil)

func (f *fakePaymentRepo) InsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) (int64, error) {
	p.ID = int64(len(f.payments) + 1)
	p.CreatedAt = time.Now()
	f.payments = append(f.payments, *p)
	return p.ID, nil
}

func (f *fakePaymentRepo) GetPaymentsByOrderID(ctx context.Context, orderID int64) ([]models.Payment, error) {
	out := []models.Payment{}
	for _, p := range f.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOutbox struct {
	records []storage.OutboxRecord
}

var _ storage.OutboxStorage = (*fakeOutbox)(nil)

func (f *fakeOutbox) Enqueue(ctx context.Context, tx *sql.Tx, rec storage.OutboxRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeOutbox) ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]storage.OutboxRecord, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id int64) error { return nil }

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error { return nil }

func (f *fakeOutbox) types() []string {
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.EventType)
	}
	return out
}

type recordingListener struct {
	changes []models.StatusChange
}

func (l *recordingListener) OrderStatusChanged(ctx context.Context, change models.StatusChange) error {
	l.changes = append(l.changes, change)
	return nil
}
