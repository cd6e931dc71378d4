package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/second-market/internal/domain/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentFinalized — платёж уже не в PENDING, финальный статус не перезаписывается.
	ErrPaymentFinalized = errors.New("payment already finalized")
)

// PaymentStorage описывает методы для работы с платёжными записями.
type PaymentStorage interface {
	CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) error
	GetPaymentByOrderNo(ctx context.Context, orderNo string) (*models.Payment, error)
	// MarkPaymentSuccessTx финализирует платёж условным UPDATE: только из PENDING,
	// поэтому на order_no может состояться не больше одного SUCCESS.
	MarkPaymentSuccessTx(ctx context.Context, tx *sql.Tx, orderNo, payNo, rawPayload string, paidAt time.Time) error
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentStorage {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) error {
	query := `INSERT INTO payments (id, order_no, amount_cents, status, created_at)
	          VALUES ($1, $2, $3, $4, NOW())`
	_, err := tx.ExecContext(ctx, query, payment.ID, payment.OrderNo, payment.AmountCents, payment.Status)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetPaymentByOrderNo(ctx context.Context, orderNo string) (*models.Payment, error) {
	payment := &models.Payment{}
	var payNo sql.NullString
	var rawPayload sql.NullString
	row := r.db.QueryRowContext(ctx,
		"SELECT id, order_no, amount_cents, pay_no, status, raw_payload, paid_at, created_at FROM payments WHERE order_no = $1",
		orderNo)
	if err := row.Scan(&payment.ID, &payment.OrderNo, &payment.AmountCents, &payNo, &payment.Status, &rawPayload, &payment.PaidAt, &payment.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payNo.Valid {
		payment.PayNo = &payNo.String
	}
	payment.RawPayload = rawPayload.String
	return payment, nil
}

func (r *paymentRepository) MarkPaymentSuccessTx(ctx context.Context, tx *sql.Tx, orderNo, payNo, rawPayload string, paidAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = $2, pay_no = $3, raw_payload = $4, paid_at = $5 WHERE order_no = $1 AND status = $6",
		orderNo, models.PaymentSuccess, payNo, rawPayload, paidAt, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to mark payment success: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentFinalized
	}
	return nil
}
