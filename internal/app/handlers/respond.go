package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/second-market/internal/service"
	"github.com/linemk/second-market/internal/storage"
)

// statusFromError сопоставляет бизнес-ошибки с HTTP-кодами:
// валидация — 400, права — 403, not found — 404, конфликты состояния — 409,
// всё прочее — 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrOwnProduct):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBuyerIneligible),
		errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrProductNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку клиенту; внутренние детали наружу не уходят.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFromError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("internal error", slog.Any("error", err))
		msg = "internal server error"
	}
	http.Error(w, msg, status)
}

func respondJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
