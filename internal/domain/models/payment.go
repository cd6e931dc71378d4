package models

import "time"

// Статусы платёжной записи.
const (
	PaymentPending = "PENDING"
	PaymentSuccess = "SUCCESS"
	PaymentFailed  = "FAILED"
)

// Payment представляет платёжную запись по заказу. На один order_no может
// существовать только одна запись (уникальный индекс), и только одна может
// стать SUCCESS — после этого запись не изменяется.
type Payment struct {
	ID          string // uuid
	OrderNo     string
	AmountCents int64
	PayNo       *string // id транзакции на стороне шлюза, заполняется при расчёте
	Status      string
	RawPayload  string // исходный payload callback'а, для разбора инцидентов
	PaidAt      *time.Time
	CreatedAt   time.Time
}
