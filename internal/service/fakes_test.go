package service_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/notify"
	"github.com/linemk/second-market/internal/storage"
)

// Фиктивные репозитории воспроизводят семантику условных UPDATE'ов, чтобы
// сценарии гонок (отмена против оплаты) проверялись без реальной БД.
// Аргумент транзакции фейки игнорируют.

type fakeUserRepo struct {
	users map[int64]*models.User
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

// Мьютексы нужны reaper-тестам: горутина зачистки пишет в фейки, пока
// тестовая горутина читает.
type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[int64]*models.Product)}
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (f *fakeProductRepo) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	return f.GetProductByID(ctx, id)
}

func (f *fakeProductRepo) ReserveStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[productID]
	if !ok || product.Stock < qty {
		return storage.ErrInsufficientStock
	}
	product.Stock -= qty
	return nil
}

func (f *fakeProductRepo) RestoreStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.products[productID]
	if !ok {
		return storage.ErrProductNotFound
	}
	product.Stock += qty
	return nil
}

func (f *fakeProductRepo) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	byNo   map[string]int64
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*models.Order), byNo: make(map[string]int64)}
}

func (f *fakeOrderRepo) put(order *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	f.byNo[order.OrderNo] = order.ID
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	clone := *order
	clone.ID = id
	f.put(&clone)
	return id, nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (f *fakeOrderRepo) GetOrderByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	f.mu.Lock()
	id, ok := f.byNo[orderNo]
	f.mu.Unlock()
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

// UpdateStatusTx повторяет условный UPDATE: если текущий статус не совпал
// с ожидаемым, перехода не происходит.
func (f *fakeOrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, from, to models.OrderStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok || order.Status != from {
		return storage.ErrOrderStateChanged
	}
	order.Status = to
	switch to {
	case models.StatusPendingShipment:
		order.PaidAt = &at
	case models.StatusShipped:
		order.ShippedAt = &at
	case models.StatusCompleted:
		order.ReceivedAt = &at
	case models.StatusCancelled:
		order.CancelledAt = &at
	}
	return nil
}

func (f *fakeOrderRepo) SetShipmentTx(ctx context.Context, tx *sql.Tx, id int64, company, expressNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.ExpressCompany = company
	order.ExpressNo = expressNo
	return nil
}

func (f *fakeOrderRepo) ListOrdersByBuyer(ctx context.Context, buyerID int64, status string, page, pageSize int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.BuyerID == buyerID && (status == "" || string(o.Status) == status) {
			clone := *o
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) ListOrdersBySeller(ctx context.Context, sellerID int64, status string, page, pageSize int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.SellerID == sellerID && (status == "" || string(o.Status) == status) {
			clone := *o
			out = append(out, &clone)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, o := range f.orders {
		if o.Status == models.StatusPendingPayment && o.PayDeadline.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// status возвращает текущий статус заказа без клонирования, под мьютексом.
func (f *fakeOrderRepo) status(id int64) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

type fakePaymentRepo struct {
	payments map[string]*models.Payment // ключ — order_no
}

var _ storage.PaymentStorage = (*fakePaymentRepo)(nil)

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[string]*models.Payment)}
}

func (f *fakePaymentRepo) CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) error {
	clone := *payment
	f.payments[payment.OrderNo] = &clone
	return nil
}

func (f *fakePaymentRepo) GetPaymentByOrderNo(ctx context.Context, orderNo string) (*models.Payment, error) {
	payment, ok := f.payments[orderNo]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	clone := *payment
	return &clone, nil
}

func (f *fakePaymentRepo) MarkPaymentSuccessTx(ctx context.Context, tx *sql.Tx, orderNo, payNo, rawPayload string, paidAt time.Time) error {
	payment, ok := f.payments[orderNo]
	if !ok || payment.Status != models.PaymentPending {
		return storage.ErrPaymentFinalized
	}
	payment.Status = models.PaymentSuccess
	payment.PayNo = &payNo
	payment.RawPayload = rawPayload
	payment.PaidAt = &paidAt
	return nil
}

// fakeCache — потокобезопасная карта: reaper-тесты дёргают её из горутины.
type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

var _ cache.Cache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{m: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.m, k)
	}
	return nil
}

func (f *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(f.m, k)
		}
	}
	return nil
}

// fakeNotifier записывает события для проверки side-effect'ов.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.OrderEvent
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) NotifyOrderEvent(ctx context.Context, event notify.OrderEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) byType(event string) []notify.OrderEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.OrderEvent
	for _, e := range f.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
