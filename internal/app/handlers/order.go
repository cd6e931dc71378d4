package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/second-market/internal/service"
)

// CreateOrderRequest представляет входной JSON создания заказа.
type CreateOrderRequest struct {
	ProductID   int64   `json:"productId" validate:"required,gt=0"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	TotalAmount float64 `json:"totalAmount" validate:"required,gt=0"`
	Address     string  `json:"address" validate:"required"`
	PayType     string  `json:"payType" validate:"required,oneof=ALIPAY WECHAT CARD"`
}

// OrderResponse — заказ в ответах API; суммы наружу идут в валютных единицах.
type OrderResponse struct {
	ID             int64      `json:"id"`
	OrderNo        string     `json:"orderNo"`
	BuyerID        int64      `json:"buyerId"`
	SellerID       int64      `json:"sellerId"`
	ProductID      int64      `json:"productId"`
	Quantity       int        `json:"quantity"`
	TotalAmount    float64    `json:"totalAmount"`
	Address        string     `json:"address"`
	PayType        string     `json:"payType"`
	Status         string     `json:"status"`
	ExpressCompany string     `json:"expressCompany,omitempty"`
	ExpressNo      string     `json:"expressNo,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	PayDeadline    time.Time  `json:"payDeadline"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	ReceivedAt     *time.Time `json:"receivedAt,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
}

func orderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		ProductID:      o.ProductID,
		Quantity:       o.Quantity,
		TotalAmount:    float64(o.AmountCents) / 100,
		Address:        o.Address,
		PayType:        o.PayType,
		Status:         string(o.Status),
		ExpressCompany: o.ExpressCompany,
		ExpressNo:      o.ExpressNo,
		CreatedAt:      o.CreatedAt,
		PayDeadline:    o.PayDeadline,
		PaidAt:         o.PaidAt,
		ShippedAt:      o.ShippedAt,
		ReceivedAt:     o.ReceivedAt,
		CancelledAt:    o.CancelledAt,
	}
}

// actorFromRequest собирает актора из контекста, заполненного JWT middleware.
func actorFromRequest(r *http.Request) (models.Actor, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		return models.Actor{}, false
	}
	role, ok := jwtmiddleware.RoleFromContext(r.Context())
	if !ok {
		role = models.RoleUser
	}
	return models.Actor{ID: userID, Role: role}, true
}

// orderIDFromRequest извлекает id заказа из path-параметра.
func orderIDFromRequest(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CreateOrderHandler обрабатывает запрос POST /api/orders
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		actor, ok := actorFromRequest(r)
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := orderService.CreateOrder(r.Context(), actor.ID, service.CreateOrderRequest{
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			TotalAmount: req.TotalAmount,
			Address:     req.Address,
			PayType:     req.PayType,
		})
		if err != nil {
			logger.Error("failed to create order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}

		respondJSON(w, logger, orderResponse(order))
	}
}

// transitionResponse — ответ на операции перехода статуса.
type transitionResponse struct {
	Success bool `json:"success"`
}

// CancelOrderHandler обрабатывает запрос PATCH /api/orders/{id}/cancel
func CancelOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
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

		if err := orderService.Cancel(r.Context(), actor, orderID); err != nil {
			logger.Error("failed to cancel order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, transitionResponse{Success: true})
	}
}

// ShipOrderRequest представляет входной JSON отгрузки.
type ShipOrderRequest struct {
	ExpressCompany string `json:"expressCompany" validate:"required"`
	ExpressNo      string `json:"expressNo" validate:"required"`
}

// ShipOrderHandler обрабатывает запрос PATCH /api/orders/{id}/ship
func ShipOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ShipOrderHandler"
		logger := log.With(slog.String("op", op))

		var req ShipOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

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

		if err := orderService.Ship(r.Context(), actor, orderID, req.ExpressCompany, req.ExpressNo); err != nil {
			logger.Error("failed to ship order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, transitionResponse{Success: true})
	}
}

// ReceiveOrderHandler обрабатывает запрос PATCH /api/orders/{id}/receive
func ReceiveOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReceiveOrderHandler"
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

		if err := orderService.ConfirmReceive(r.Context(), actor, orderID); err != nil {
			logger.Error("failed to confirm receipt", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, transitionResponse{Success: true})
	}
}

// ReturnOrderHandler обрабатывает запрос PATCH /api/orders/{id}/return
func ReturnOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReturnOrderHandler"
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

		if err := orderService.Return(r.Context(), actor, orderID); err != nil {
			logger.Error("failed to return order", slog.Any("error", err))
			respondError(w, logger, err)
			return
		}
		respondJSON(w, logger, transitionResponse{Success: true})
	}
}
