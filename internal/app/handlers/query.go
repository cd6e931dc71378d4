package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/second-market/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OrderListResponse — страница заказов в ответах API.
type OrderListResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

func orderListResponse(list *service.OrderList) OrderListResponse {
	resp := OrderListResponse{
		Orders:   make([]OrderResponse, 0, len(list.Orders)),
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
	}
	for _, o := range list.Orders {
		resp.Orders = append(resp.Orders, orderResponse(o))
	}
	return resp
}

// pageParams разбирает page/pageSize/status из query string.
func pageParams(r *http.Request) (page, pageSize int, status string) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	pageSize = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 && v <= maxPageSize {
		pageSize = v
	}
	status = r.URL.Query().Get("status")
	return page, pageSize, status
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, queryService service.OrderQueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		orderID, ok := orderIDFromRequest(r)
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := queryService.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			logger.Error("failed to get order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, orderResponse(order))
	}
}

// BuyerOrdersHandler обрабатывает запрос GET /api/orders/buyer/list
func BuyerOrdersHandler(log *slog.Logger, queryService service.OrderQueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BuyerOrdersHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		page, pageSize, status := pageParams(r)

		list, err := queryService.ListBuyerOrders(r.Context(), actor.ID, status, page, pageSize)
		if err != nil {
			logger.Error("failed to list buyer orders", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, orderListResponse(list))
	}
}

// SellerOrdersHandler обрабатывает запрос GET /api/orders/seller/list
func SellerOrdersHandler(log *slog.Logger, queryService service.OrderQueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SellerOrdersHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		page, pageSize, status := pageParams(r)

		list, err := queryService.ListSellerOrders(r.Context(), actor.ID, status, page, pageSize)
		if err != nil {
			logger.Error("failed to list seller orders", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, orderListResponse(list))
	}
}
