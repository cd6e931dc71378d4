package models

import "time"

// OrderStatus — статус заказа в жизненном цикле покупки.
type OrderStatus string

const (
	StatusPendingPayment  OrderStatus = "PENDING_PAYMENT"
	StatusPendingShipment OrderStatus = "PENDING_SHIPMENT"
	StatusShipped         OrderStatus = "SHIPPED"
	StatusCompleted       OrderStatus = "COMPLETED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusReturned        OrderStatus = "RETURNED"
)

// allowedTransitions — таблица разрешённых переходов: из текущего статуса
// в множество допустимых. COMPLETED, CANCELLED и RETURNED — терминальные.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingPayment:  {StatusPendingShipment: true, StatusCancelled: true},
	StatusPendingShipment: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:         {StatusCompleted: true, StatusReturned: true},
	StatusCompleted:       {},
	StatusCancelled:       {},
	StatusReturned:        {},
}

// CanTransition проверяет, разрешён ли переход по таблице.
func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

// IsTerminal возвращает true, если из статуса нет ни одного перехода.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor — инициатор перехода: id пользователя и его роль из токена.
type Actor struct {
	ID   int64
	Role string
}

// CanActorTransition решает, имеет ли актор право перевести заказ в целевой
// статус. Сама допустимость перехода (CanTransition) проверяется отдельно:
// здесь только авторизация по отношению актора к заказу.
func CanActorTransition(actor Actor, order *Order, target OrderStatus) bool {
	if actor.Role == RoleAdmin {
		// Админ может отменить заказ, но не подтверждает отгрузку/получение за участников
		return target == StatusCancelled
	}
	switch target {
	case StatusCancelled:
		return actor.ID == order.BuyerID
	case StatusShipped:
		return actor.ID == order.SellerID
	case StatusCompleted, StatusReturned:
		return actor.ID == order.BuyerID
	default:
		// В PENDING_SHIPMENT заказ переводит только процессор платежей, не пользователь
		return false
	}
}

// Order представляет заказ: одна сделка покупатель-продавец на фиксированное
// количество одного товара по фиксированной цене. Сумма фиксируется при
// создании и дальше не меняется.
type Order struct {
	ID             int64       `json:"id"`
	OrderNo        string      `json:"order_no"` // внешний уникальный номер, по нему приходит callback
	BuyerID        int64       `json:"buyer_id"`
	SellerID       int64       `json:"seller_id"`
	ProductID      int64       `json:"product_id"`
	Quantity       int         `json:"quantity"`
	AmountCents    int64       `json:"amount_cents"` // итоговая сумма в копейках
	Address        string      `json:"address"`
	PayType        string      `json:"pay_type"`
	Status         OrderStatus `json:"status"`
	ExpressCompany string      `json:"express_company,omitempty"`
	ExpressNo      string      `json:"express_no,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	PayDeadline    time.Time   `json:"pay_deadline"`
	PaidAt         *time.Time  `json:"paid_at,omitempty"`
	ShippedAt      *time.Time  `json:"shipped_at,omitempty"`
	ReceivedAt     *time.Time  `json:"received_at,omitempty"`
	CancelledAt    *time.Time  `json:"cancelled_at,omitempty"`
}
