package notify

import (
	"context"
	"time"
)

// Типы событий заказа.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
	EventOrderShipped   = "order.shipped"
	EventOrderCompleted = "order.completed"
	EventOrderReturned  = "order.returned"
)

// OrderEvent — уведомление участникам сделки. Доставка fire-and-forget:
// потеря уведомления допустима, блокировка основного потока — нет.
type OrderEvent struct {
	Event       string    `json:"event"`
	OrderID     int64     `json:"order_id"`
	OrderNo     string    `json:"order_no"`
	BuyerID     int64     `json:"buyer_id"`
	SellerID    int64     `json:"seller_id"`
	ProductID   int64     `json:"product_id"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier ставит событие в очередь на отправку.
type Notifier interface {
	NotifyOrderEvent(ctx context.Context, event OrderEvent)
}
