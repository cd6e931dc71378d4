package service_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryEnv struct {
	orders *fakeOrderRepo
	cache  *fakeCache
	svc    service.OrderQueryService
}

func newQueryEnv(t *testing.T) *queryEnv {
	t.Helper()
	env := &queryEnv{
		orders: newFakeOrderRepo(),
		cache:  newFakeCache(),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = service.NewOrderQueryService(log, env.orders, env.cache)
	return env
}

func (e *queryEnv) addOrder(id, buyerID, sellerID int64) *models.Order {
	order := &models.Order{
		ID: id, OrderNo: "ORD-1", BuyerID: buyerID, SellerID: sellerID,
		ProductID: 10, Quantity: 1, AmountCents: 9999,
		Status: models.StatusPendingPayment, CreatedAt: time.Now(),
	}
	e.orders.put(order)
	return order
}

func TestGetOrder_PartiesAndAdmin(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)

	for _, actor := range []models.Actor{
		{ID: 1, Role: models.RoleUser},
		{ID: 2, Role: models.RoleUser},
		{ID: 99, Role: models.RoleAdmin},
	} {
		order, err := env.svc.GetOrder(context.Background(), actor, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), order.ID)
	}
}

func TestGetOrder_StrangerForbidden(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)

	_, err := env.svc.GetOrder(context.Background(), models.Actor{ID: 3, Role: models.RoleUser}, 1)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestGetOrder_PopulatesCacheOnMiss(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)
	ctx := context.Background()

	_, err := env.svc.GetOrder(ctx, models.Actor{ID: 1, Role: models.RoleUser}, 1)
	require.NoError(t, err)

	data, err := env.cache.Get(ctx, cache.OrderDetailKey(1))
	require.NoError(t, err)
	cached := &models.Order{}
	require.NoError(t, json.Unmarshal(data, cached))
	assert.Equal(t, int64(1), cached.ID)
}

func TestGetOrder_ServedFromCache(t *testing.T) {
	env := newQueryEnv(t)
	ctx := context.Background()

	// В БД заказа нет, только в кэше: попадание не должно ходить в репозиторий
	cachedOrder := &models.Order{ID: 7, OrderNo: "ORD-7", BuyerID: 1, SellerID: 2, Status: models.StatusShipped}
	data, err := json.Marshal(cachedOrder)
	require.NoError(t, err)
	require.NoError(t, env.cache.Set(ctx, cache.OrderDetailKey(7), data, time.Minute))

	order, err := env.svc.GetOrder(ctx, models.Actor{ID: 1, Role: models.RoleUser}, 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)
}

func TestGetOrder_BrokenCacheEntryFallsBack(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, cache.OrderDetailKey(1), []byte("{not json"), time.Minute))

	order, err := env.svc.GetOrder(ctx, models.Actor{ID: 1, Role: models.RoleUser}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)

	// Битая запись заменена валидной
	data, err := env.cache.Get(ctx, cache.OrderDetailKey(1))
	require.NoError(t, err)
	assert.NoError(t, json.Unmarshal(data, &models.Order{}))
}

func TestListBuyerOrders_CachesPage(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)
	ctx := context.Background()

	list, err := env.svc.ListBuyerOrders(ctx, 1, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Len(t, list.Orders, 1)

	// Страница легла в кэш под своим ключом
	_, err = env.cache.Get(ctx, cache.OrderListBuyerKey(1, "", 1, 20))
	assert.NoError(t, err)

	// Повторный запрос отдаётся из кэша даже после изменения БД
	env.addOrder(2, 1, 2)
	again, err := env.svc.ListBuyerOrders(ctx, 1, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Total)
}

func TestListSellerOrders_StatusFilter(t *testing.T) {
	env := newQueryEnv(t)
	env.addOrder(1, 1, 2)
	shipped := env.addOrder(2, 3, 2)
	shipped.OrderNo = "ORD-2"
	env.orders.byNo[shipped.OrderNo] = shipped.ID
	shipped.Status = models.StatusShipped

	list, err := env.svc.ListSellerOrders(context.Background(), 2, string(models.StatusShipped), 1, 20)
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, int64(2), list.Orders[0].ID)
}
