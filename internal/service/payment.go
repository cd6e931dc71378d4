package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/notify"
	"github.com/linemk/second-market/internal/storage"
)

// tradeStatusSuccess — значение tradeStatus, при котором шлюз считает платёж состоявшимся.
const tradeStatusSuccess = "SUCCESS"

// PaymentCallback — payload webhook'а платёжного шлюза.
type PaymentCallback struct {
	OrderNo     string `json:"orderNo" validate:"required"`
	PayAmount   string `json:"payAmount" validate:"required"`
	Sign        string `json:"sign" validate:"required"`
	PayNo       string `json:"payNo"`
	TradeStatus string `json:"tradeStatus" validate:"required"`
	PayTime     string `json:"payTime"`
}

// PaymentService сверяет и применяет callback'и платёжного шлюза.
// Шлюз доставляет их at-least-once, поэтому обработка идемпотентна:
// повторный идентичный payload — no-op с успешным ответом.
type PaymentService interface {
	HandleCallback(ctx context.Context, cb PaymentCallback) error
}

type paymentService struct {
	log         *slog.Logger
	db          *sql.DB
	orderRepo   storage.OrderStorage
	paymentRepo storage.PaymentStorage
	cache       cache.Cache
	notifier    notify.Notifier
	secret      string
}

func NewPaymentService(
	log *slog.Logger,
	db *sql.DB,
	orderRepo storage.OrderStorage,
	paymentRepo storage.PaymentStorage,
	cacheStore cache.Cache,
	notifier notify.Notifier,
	gatewaySecret string,
) PaymentService {
	return &paymentService{
		log:         log,
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		cache:       cacheStore,
		notifier:    notifier,
		secret:      gatewaySecret,
	}
}

// HandleCallback реализует сверку платежа. nil означает, что шлюзу нужно
// ответить success (применили, дубль или нейтральный статус); любая ошибка
// транслируется хендлером в fail:<reason> и приводит к ретраю на стороне шлюза.
func (s *paymentService) HandleCallback(ctx context.Context, cb PaymentCallback) error {
	const op = "service.PaymentService.HandleCallback"
	logger := s.log.With(slog.String("op", op), slog.String("orderNo", cb.OrderNo))
	logger.Info("processing payment callback", slog.String("tradeStatus", cb.TradeStatus))

	// 1. Подпись проверяется до любого обращения к состоянию: по ответу на
	// неподписанный запрос нельзя узнать, существует ли заказ
	params := map[string]string{
		"orderNo":     cb.OrderNo,
		"payAmount":   cb.PayAmount,
		"payNo":       cb.PayNo,
		"tradeStatus": cb.TradeStatus,
		"payTime":     cb.PayTime,
	}
	if !verifySign(params, s.secret, cb.Sign) {
		logger.Warn("callback signature verification failed")
		return fmt.Errorf("%s: %w", op, ErrBadSignature)
	}

	// 2. Ищем заказ по внешнему номеру
	order, err := s.orderRepo.GetOrderByOrderNo(ctx, cb.OrderNo)
	if err != nil {
		logger.Error("failed to get order by order no", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	// 3. Ненулевой исход (отмена/ошибка на стороне шлюза) подтверждаем без
	// изменения состояния, чтобы шлюз не ретраил уведомление о неуспехе
	if cb.TradeStatus != tradeStatusSuccess {
		logger.Info("non-success trade status, acknowledging without state change")
		return nil
	}

	// 4. Идемпотентность: если платёж уже SUCCESS, это повторная доставка
	payment, err := s.paymentRepo.GetPaymentByOrderNo(ctx, cb.OrderNo)
	if err != nil {
		logger.Error("failed to get payment record", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get payment: %w", op, err)
	}
	if payment.Status == models.PaymentSuccess {
		logger.Info("payment already settled, duplicate delivery")
		return nil
	}

	// 5. Сумма из callback'а обязана сойтись с суммой заказа
	declared, err := strconv.ParseFloat(cb.PayAmount, 64)
	if err != nil {
		logger.Warn("failed to parse pay amount", slog.String("payAmount", cb.PayAmount))
		return fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	if !amountsMatch(centsFromAmount(declared), order.AmountCents) {
		logger.Warn("callback amount mismatch",
			slog.String("payAmount", cb.PayAmount),
			slog.Int64("orderAmountCents", order.AmountCents))
		return fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	// 6. Финализация платежа и перевод заказа — одна транзакция: либо оба
	// изменения применяются, либо ни одно
	paidAt := parsePayTime(cb.PayTime)
	rawPayload, _ := json.Marshal(cb)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.paymentRepo.MarkPaymentSuccessTx(ctx, tx, cb.OrderNo, cb.PayNo, string(rawPayload), paidAt); err != nil {
		s.rollback(logger, tx)
		if errors.Is(err, storage.ErrPaymentFinalized) {
			// Конкурентный дубль успел закоммититься первым
			logger.Info("payment finalized concurrently, duplicate delivery")
			return nil
		}
		logger.Error("failed to mark payment success", slog.Any("error", err))
		return fmt.Errorf("%s: failed to mark payment: %w", op, err)
	}

	// Условный переход: если заказ уже не в PENDING_PAYMENT (например, отменён
	// по таймауту), вся транзакция откатывается и заказ не воскресает
	if err := s.orderRepo.UpdateStatusTx(ctx, tx, order.ID, models.StatusPendingPayment, models.StatusPendingShipment, paidAt); err != nil {
		s.rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderStateChanged) {
			logger.Warn("order is no longer pending payment, rejecting settlement")
			return fmt.Errorf("%s: %w", op, ErrInvalidTransition)
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	order.Status = models.StatusPendingShipment

	// 7. Инвалидация кэша и уведомления — только после коммита
	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderPaid, order))

	logger.Info("payment settled", slog.String("payNo", cb.PayNo))
	return nil
}

func (s *paymentService) rollback(logger *slog.Logger, tx *sql.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

func (s *paymentService) invalidateCaches(ctx context.Context, logger *slog.Logger, order *models.Order) {
	if err := s.cache.Delete(ctx, cache.OrderDetailKey(order.ID)); err != nil {
		logger.Warn("failed to invalidate order detail cache", slog.Any("error", err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListBuyerPrefix(order.BuyerID)); err != nil {
		logger.Warn("failed to invalidate buyer list cache", slog.Any("error", err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListSellerPrefix(order.SellerID)); err != nil {
		logger.Warn("failed to invalidate seller list cache", slog.Any("error", err))
	}
}

// parsePayTime разбирает время оплаты из payload'а; при нечитаемом значении
// берём текущее время, платёж от этого не становится невалидным.
func parsePayTime(v string) time.Time {
	if v == "" {
		return time.Now()
	}
	if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	return time.Now()
}
