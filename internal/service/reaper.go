package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linemk/second-market/internal/storage"
)

// Reaper — фоновая зачистка просроченных заказов: периодически выбирает
// PENDING_PAYMENT с истёкшим дедлайном и гонит их через тот же путь отмены,
// что и явная отмена. Гонку с поздней оплатой разрешает условный UPDATE статуса.
type Reaper struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	orders    OrderService
	interval  time.Duration
	batchSize int
}

func NewReaper(log *slog.Logger, orderRepo storage.OrderStorage, orders OrderService, interval time.Duration, batchSize int) *Reaper {
	return &Reaper{
		log:       log,
		orderRepo: orderRepo,
		orders:    orders,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run крутит тикер до отмены контекста. Вызывается в отдельной горутине.
func (r *Reaper) Run(ctx context.Context) {
	const op = "service.Reaper.Run"
	logger := r.log.With(slog.String("op", op))
	logger.Info("reaper started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep отменяет все просроченные заказы текущей пачки. Ошибка по одному
// заказу не прерывает обход остальных.
func (r *Reaper) sweep(ctx context.Context) {
	const op = "service.Reaper.sweep"
	logger := r.log.With(slog.String("op", op))

	ids, err := r.orderRepo.ListExpiredPendingIDs(ctx, time.Now(), r.batchSize)
	if err != nil {
		logger.Error("failed to list expired orders", slog.Any("error", err))
		return
	}
	if len(ids) == 0 {
		return
	}
	logger.Info("cancelling expired orders", slog.Int("count", len(ids)))

	for _, id := range ids {
		if err := r.orders.CancelExpired(ctx, id); err != nil {
			logger.Error("failed to cancel expired order",
				slog.Int64("orderID", id),
				slog.Any("error", err))
		}
	}
}
