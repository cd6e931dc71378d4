package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/storage"
)

// OrderList — страница списка заказов; кэшируется целиком как JSON.
type OrderList struct {
	Orders   []*models.Order `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// OrderQueryService — чтения поверх репозитория заказов по схеме cache-aside:
// промах — читаем из БД и кладём в кэш, ошибки кэша не валят запрос.
type OrderQueryService interface {
	GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID int64, status string, page, pageSize int) (*OrderList, error)
	ListSellerOrders(ctx context.Context, sellerID int64, status string, page, pageSize int) (*OrderList, error)
}

type orderQueryService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	cache     cache.Cache
}

func NewOrderQueryService(log *slog.Logger, orderRepo storage.OrderStorage, cacheStore cache.Cache) OrderQueryService {
	return &orderQueryService{
		log:       log,
		orderRepo: orderRepo,
		cache:     cacheStore,
	}
}

// GetOrder возвращает заказ, если актор — покупатель, продавец или админ.
func (s *orderQueryService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	const op = "service.OrderQueryService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	order, err := s.loadOrder(ctx, logger, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if actor.Role != models.RoleAdmin && actor.ID != order.BuyerID && actor.ID != order.SellerID {
		logger.Warn("actor is not a party to the order", slog.Int64("actorID", actor.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	return order, nil
}

func (s *orderQueryService) loadOrder(ctx context.Context, logger *slog.Logger, orderID int64) (*models.Order, error) {
	key := cache.OrderDetailKey(orderID)
	if data, err := s.cache.Get(ctx, key); err == nil {
		order := &models.Order{}
		if err := json.Unmarshal(data, order); err == nil {
			return order, nil
		}
		// Нечитаемую запись выкидываем и идём в БД
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn("failed to drop broken cache entry", slog.Any("error", err))
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("order cache unavailable", slog.Any("error", err))
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(order); err == nil {
		if err := s.cache.Set(ctx, key, data, cache.TTLOrderDetail); err != nil {
			logger.Warn("failed to populate order cache", slog.Any("error", err))
		}
	}
	return order, nil
}

func (s *orderQueryService) ListBuyerOrders(ctx context.Context, buyerID int64, status string, page, pageSize int) (*OrderList, error) {
	const op = "service.OrderQueryService.ListBuyerOrders"
	key := cache.OrderListBuyerKey(buyerID, status, page, pageSize)
	return s.listOrders(ctx, op, key, func() ([]*models.Order, int, error) {
		return s.orderRepo.ListOrdersByBuyer(ctx, buyerID, status, page, pageSize)
	}, page, pageSize)
}

func (s *orderQueryService) ListSellerOrders(ctx context.Context, sellerID int64, status string, page, pageSize int) (*OrderList, error) {
	const op = "service.OrderQueryService.ListSellerOrders"
	key := cache.OrderListSellerKey(sellerID, status, page, pageSize)
	return s.listOrders(ctx, op, key, func() ([]*models.Order, int, error) {
		return s.orderRepo.ListOrdersBySeller(ctx, sellerID, status, page, pageSize)
	}, page, pageSize)
}

func (s *orderQueryService) listOrders(ctx context.Context, op, key string, load func() ([]*models.Order, int, error), page, pageSize int) (*OrderList, error) {
	logger := s.log.With(slog.String("op", op))

	if data, err := s.cache.Get(ctx, key); err == nil {
		list := &OrderList{}
		if err := json.Unmarshal(data, list); err == nil {
			return list, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("order list cache unavailable", slog.Any("error", err))
	}

	orders, total, err := load()
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	list := &OrderList{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}

	if data, err := json.Marshal(list); err == nil {
		if err := s.cache.Set(ctx, key, data, cache.TTLOrderList); err != nil {
			logger.Warn("failed to populate order list cache", slog.Any("error", err))
		}
	}
	return list, nil
}
