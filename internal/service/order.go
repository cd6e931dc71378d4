package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/second-market/internal/cache"
	"github.com/linemk/second-market/internal/domain/models"
	"github.com/linemk/second-market/internal/notify"
	"github.com/linemk/second-market/internal/storage"
)

// CreateOrderRequest — входные данные создания заказа, уже провалидированные
// транспортным слоем по форме; бизнес-проверки выполняет сервис.
type CreateOrderRequest struct {
	ProductID   int64
	Quantity    int
	TotalAmount float64 // в валютных единицах, сверяется с ценой × количеством
	Address     string
	PayType     string
}

// OrderService управляет жизненным циклом заказа. Каждый переход: загрузка
// заказа, проверка таблицы переходов, авторизация актора, запись, инвалидация кэша.
type OrderService interface {
	CreateOrder(ctx context.Context, buyerID int64, req CreateOrderRequest) (*models.Order, error)
	Cancel(ctx context.Context, actor models.Actor, orderID int64) error
	Ship(ctx context.Context, actor models.Actor, orderID int64, company, expressNo string) error
	ConfirmReceive(ctx context.Context, actor models.Actor, orderID int64) error
	Return(ctx context.Context, actor models.Actor, orderID int64) error
	// CancelExpired отменяет просроченный PENDING_PAYMENT-заказ; вызывается reaper'ом,
	// проигрыш гонки с оплатой — не ошибка.
	CancelExpired(ctx context.Context, orderID int64) error
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	paymentRepo storage.PaymentStorage
	cache       cache.Cache
	notifier    notify.Notifier

	payWindow      time.Duration
	minCreditScore int
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage,
	paymentRepo storage.PaymentStorage,
	cacheStore cache.Cache,
	notifier notify.Notifier,
	payWindow time.Duration,
	minCreditScore int,
) OrderService {
	return &orderService{
		log:            log,
		db:             db,
		userRepo:       userRepo,
		productRepo:    productRepo,
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		cache:          cacheStore,
		notifier:       notifier,
		payWindow:      payWindow,
		minCreditScore: minCreditScore,
	}
}

// newOrderNo генерирует внешний номер заказа: миллисекунды + случайный хвост.
// Уникальность страхует индекс в БД.
func newOrderNo() string {
	return fmt.Sprintf("%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// CreateOrder создаёт заказ: проверяет покупателя и товар, сверяет сумму,
// резервирует остаток и сохраняет заказ в PENDING_PAYMENT — всё в одной транзакции.
func (s *orderService) CreateOrder(ctx context.Context, buyerID int64, req CreateOrderRequest) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("buyerID", buyerID), slog.Int64("productID", req.ProductID))
	logger.Info("starting order creation")

	buyer, err := s.userRepo.GetUserByID(ctx, buyerID)
	if err != nil {
		logger.Error("failed to get buyer", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get buyer: %w", op, err)
	}
	if buyer.CreditScore < s.minCreditScore {
		logger.Warn("buyer credit score below threshold", slog.Int("score", buyer.CreditScore))
		return nil, fmt.Errorf("%s: %w", op, ErrBuyerIneligible)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем строку товара: цена и остаток не должны поменяться под ногами
	product, err := s.productRepo.LockProductByIDTx(ctx, tx, req.ProductID)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	if product.Status != models.ProductOnSale {
		s.rollback(logger, tx)
		logger.Warn("product is off sale")
		return nil, fmt.Errorf("%s: %w", op, ErrProductUnavailable)
	}
	if product.SellerID == buyerID {
		s.rollback(logger, tx)
		return nil, fmt.Errorf("%s: %w", op, ErrOwnProduct)
	}

	// Сверяем заявленную сумму с ценой × количеством после приведения к копейкам
	expectedCents := product.PriceCents * int64(req.Quantity)
	if !amountsMatch(centsFromAmount(req.TotalAmount), expectedCents) {
		s.rollback(logger, tx)
		logger.Warn("declared amount mismatch",
			slog.Float64("declared", req.TotalAmount),
			slog.Int64("expectedCents", expectedCents))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	// Резервируем остаток условным UPDATE
	if err := s.productRepo.ReserveStockTx(ctx, tx, req.ProductID, req.Quantity); err != nil {
		s.rollback(logger, tx)
		logger.Warn("failed to reserve stock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reserve stock: %w", op, err)
	}

	now := time.Now()
	order := &models.Order{
		OrderNo:     newOrderNo(),
		BuyerID:     buyerID,
		SellerID:    product.SellerID,
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		AmountCents: expectedCents,
		Address:     req.Address,
		PayType:     req.PayType,
		Status:      models.StatusPendingPayment,
		CreatedAt:   now,
		PayDeadline: now.Add(s.payWindow),
	}
	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}
	order.ID = orderID

	// Платёжная запись создаётся сразу в PENDING, финализирует её только процессор callback'ов
	payment := &models.Payment{
		ID:          uuid.NewString(),
		OrderNo:     order.OrderNo,
		AmountCents: order.AmountCents,
		Status:      models.PaymentPending,
	}
	if err := s.paymentRepo.CreatePaymentTx(ctx, tx, payment); err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to create payment record", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create payment record: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	s.populateDetailCache(ctx, logger, order)
	s.invalidateListCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderCreated, order))

	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("orderNo", order.OrderNo))
	return order, nil
}

// Cancel отменяет заказ по инициативе покупателя или админа. Разрешён только
// из PENDING_PAYMENT; остаток возвращается на склад в той же транзакции.
func (s *orderService) Cancel(ctx context.Context, actor models.Actor, orderID int64) error {
	const op = "service.OrderService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actor.ID), slog.Int64("orderID", orderID))
	logger.Info("starting order cancellation")

	order, err := s.cancelTx(ctx, logger, op, orderID, &actor)
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderCancelled, order))

	logger.Info("order cancelled")
	return nil
}

// CancelExpired — та же отмена, но от имени системы: вызывается фоновой зачисткой
// просроченных заказов. Если заказ успели оплатить, выходим без ошибки.
func (s *orderService) CancelExpired(ctx context.Context, orderID int64) error {
	const op = "service.OrderService.CancelExpired"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	order, err := s.cancelTx(ctx, logger, op, orderID, nil)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Гонку выиграл процессор платежей — заказ уже не в PENDING_PAYMENT
			logger.Info("order left pending payment before reaper, skipping")
			return nil
		}
		return err
	}

	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderCancelled, order))

	logger.Info("expired order cancelled")
	return nil
}

// cancelTx — общая транзакционная часть отмены: блокировка заказа, проверка
// статуса и прав, возврат остатка, условный переход в CANCELLED.
// actor == nil означает системную отмену (reaper), без авторизации.
func (s *orderService) cancelTx(ctx context.Context, logger *slog.Logger, op string, orderID int64, actor *models.Actor) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	// Отмена допустима только из PENDING_PAYMENT: после оплаты возврат остатка
	// шёл бы по другому пути (возврат средств), его здесь нет
	if order.Status != models.StatusPendingPayment {
		s.rollback(logger, tx)
		logger.Warn("order is not pending payment", slog.String("status", string(order.Status)))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}
	if actor != nil && !models.CanActorTransition(*actor, order, models.StatusCancelled) {
		s.rollback(logger, tx)
		logger.Warn("actor is not allowed to cancel order")
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	// Возврат остатка применяется ровно один раз: условный переход ниже
	// откатит и его, если статус уже поменяла параллельная транзакция
	if err := s.productRepo.RestoreStockTx(ctx, tx, order.ProductID, order.Quantity); err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to restore stock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to restore stock: %w", op, err)
	}

	if err := s.orderRepo.UpdateStatusTx(ctx, tx, order.ID, models.StatusPendingPayment, models.StatusCancelled, time.Now()); err != nil {
		s.rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderStateChanged) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	order.Status = models.StatusCancelled
	return order, nil
}

// Ship переводит оплаченный заказ в SHIPPED; доступно только продавцу.
func (s *orderService) Ship(ctx context.Context, actor models.Actor, orderID int64, company, expressNo string) error {
	const op = "service.OrderService.Ship"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actor.ID), slog.Int64("orderID", orderID))
	logger.Info("starting order shipment")

	order, err := s.applyTransition(ctx, logger, op, actor, orderID, models.StatusPendingShipment, models.StatusShipped,
		func(tx *sql.Tx) error {
			return s.orderRepo.SetShipmentTx(ctx, tx, orderID, company, expressNo)
		})
	if err != nil {
		return err
	}
	order.ExpressCompany = company
	order.ExpressNo = expressNo

	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderShipped, order))

	logger.Info("order shipped", slog.String("expressNo", expressNo))
	return nil
}

// ConfirmReceive подтверждает получение: SHIPPED -> COMPLETED, только покупатель.
func (s *orderService) ConfirmReceive(ctx context.Context, actor models.Actor, orderID int64) error {
	const op = "service.OrderService.ConfirmReceive"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actor.ID), slog.Int64("orderID", orderID))
	logger.Info("confirming order receipt")

	order, err := s.applyTransition(ctx, logger, op, actor, orderID, models.StatusShipped, models.StatusCompleted, nil)
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderCompleted, order))

	logger.Info("order completed")
	return nil
}

// Return оформляет возврат: SHIPPED -> RETURNED, только покупатель.
func (s *orderService) Return(ctx context.Context, actor models.Actor, orderID int64) error {
	const op = "service.OrderService.Return"
	logger := s.log.With(slog.String("op", op), slog.Int64("actorID", actor.ID), slog.Int64("orderID", orderID))
	logger.Info("starting order return")

	order, err := s.applyTransition(ctx, logger, op, actor, orderID, models.StatusShipped, models.StatusReturned, nil)
	if err != nil {
		return err
	}

	s.invalidateCaches(ctx, logger, order)
	s.notifier.NotifyOrderEvent(ctx, orderEvent(notify.EventOrderReturned, order))

	logger.Info("order returned")
	return nil
}

// applyTransition — общий каркас перехода: блокировка заказа, проверка таблицы
// переходов и ожидаемого статуса, авторизация, условный UPDATE, extra-шаг в той
// же транзакции. Повторный запрос клиента упрётся в проверку статуса и получит
// ErrInvalidTransition, а не молчаливый no-op.
func (s *orderService) applyTransition(
	ctx context.Context,
	logger *slog.Logger,
	op string,
	actor models.Actor,
	orderID int64,
	expected, target models.OrderStatus,
	extra func(tx *sql.Tx) error,
) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(logger, tx)
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}

	if order.Status != expected || !models.CanTransition(order.Status, target) {
		s.rollback(logger, tx)
		logger.Warn("transition is not allowed",
			slog.String("from", string(order.Status)),
			slog.String("to", string(target)))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}
	if !models.CanActorTransition(actor, order, target) {
		s.rollback(logger, tx)
		logger.Warn("actor is not allowed to perform transition")
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}

	if err := s.orderRepo.UpdateStatusTx(ctx, tx, order.ID, expected, target, time.Now()); err != nil {
		s.rollback(logger, tx)
		if errors.Is(err, storage.ErrOrderStateChanged) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
		}
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}
	if extra != nil {
		if err := extra(tx); err != nil {
			s.rollback(logger, tx)
			logger.Error("failed to apply transition side effect", slog.Any("error", err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	order.Status = target
	return order, nil
}

func (s *orderService) rollback(logger *slog.Logger, tx *sql.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}

// populateDetailCache кладёт свежесозданный заказ в детальный кэш. Ошибки кэша
// только логируются: он не источник истины.
func (s *orderService) populateDetailCache(ctx context.Context, logger *slog.Logger, order *models.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		logger.Error("failed to marshal order for cache", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, cache.OrderDetailKey(order.ID), data, cache.TTLOrderDetail); err != nil {
		logger.Warn("failed to populate order cache", slog.Any("error", err))
	}
}

// invalidateCaches сбрасывает детальный ключ и списочные кэши обоих участников.
// Инвалидация — это удаление, не обновление на месте.
func (s *orderService) invalidateCaches(ctx context.Context, logger *slog.Logger, order *models.Order) {
	if err := s.cache.Delete(ctx, cache.OrderDetailKey(order.ID)); err != nil {
		logger.Warn("failed to invalidate order detail cache", slog.Any("error", err))
	}
	s.invalidateListCaches(ctx, logger, order)
}

func (s *orderService) invalidateListCaches(ctx context.Context, logger *slog.Logger, order *models.Order) {
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListBuyerPrefix(order.BuyerID)); err != nil {
		logger.Warn("failed to invalidate buyer list cache", slog.Any("error", err))
	}
	if err := s.cache.DeleteByPrefix(ctx, cache.OrderListSellerPrefix(order.SellerID)); err != nil {
		logger.Warn("failed to invalidate seller list cache", slog.Any("error", err))
	}
}

func orderEvent(event string, order *models.Order) notify.OrderEvent {
	return notify.OrderEvent{
		Event:       event,
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		ProductID:   order.ProductID,
		AmountCents: order.AmountCents,
		OccurredAt:  time.Now(),
	}
}
