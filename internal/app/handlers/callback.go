package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/second-market/internal/service"
	"github.com/linemk/second-market/internal/storage"
)

// ackSuccess — единственный токен, который шлюз считает подтверждением.
// Любой другой ответ приводит к повторной доставке callback'а.
const ackSuccess = "success"

// callbackFailReason — короткая причина для fail-ответа шлюзу. Текст причины —
// деталь реализации, шлюз смотрит только на отличие от success-токена.
func callbackFailReason(err error) string {
	switch {
	case errors.Is(err, service.ErrBadSignature):
		// Не раскрываем, существует ли заказ, и что именно не сошлось
		return "verification failed"
	case errors.Is(err, storage.ErrOrderNotFound):
		return "order not found"
	case errors.Is(err, service.ErrInvalidAmount):
		return "amount mismatch"
	case errors.Is(err, service.ErrInvalidTransition):
		return "order state"
	default:
		return "system error"
	}
}

// PayCallbackHandler обрабатывает запрос POST /api/orders/pay/callback.
// Контракт шлюза: plain-text "success" либо "fail:<reason>"; HTTP-кодами и
// JSON здесь не отвечаем.
func PayCallbackHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PayCallbackHandler"
		logger := log.With(slog.String("op", op))

		w.Header().Set("Content-Type", "text/plain")

		var cb service.PaymentCallback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
			logger.Error("invalid callback payload", slog.Any("error", err))
			_, _ = w.Write([]byte("fail:bad payload"))
			return
		}
		if err := validate.Struct(cb); err != nil {
			logger.Error("callback validation error", slog.Any("error", err))
			_, _ = w.Write([]byte("fail:bad payload"))
			return
		}

		if err := paymentService.HandleCallback(r.Context(), cb); err != nil {
			logger.Warn("callback rejected", slog.Any("error", err))
			_, _ = w.Write([]byte("fail:" + callbackFailReason(err)))
			return
		}

		_, _ = w.Write([]byte(ackSuccess))
	}
}
