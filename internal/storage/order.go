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
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStateChanged — условный UPDATE не нашёл заказ в ожидаемом статусе:
	// либо гонка с параллельным переходом, либо повторный запрос клиента.
	ErrOrderStateChanged = errors.New("order state changed")
)

const orderColumns = `id, order_no, buyer_id, seller_id, product_id, quantity, amount_cents, address, pay_type, status,
	       express_company, express_no, created_at, pay_deadline, paid_at, shipped_at, received_at, cancelled_at`

// OrderStorage описывает методы для работы с заказами. Все изменяющие методы
// принимают транзакцию: её границы определяет сервисный слой.
type OrderStorage interface {
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	// LockOrderByIDTx блокирует строку заказа на время транзакции.
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// UpdateStatusTx переводит заказ из from в to условным UPDATE; если заказ уже
	// не в статусе from — ErrOrderStateChanged, никаких изменений.
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, from, to models.OrderStatus, at time.Time) error
	// SetShipmentTx заполняет данные отправления вместе с переходом в SHIPPED.
	SetShipmentTx(ctx context.Context, tx *sql.Tx, id int64, company, expressNo string) error
	ListOrdersByBuyer(ctx context.Context, buyerID int64, status string, page, pageSize int) ([]*models.Order, int, error)
	ListOrdersBySeller(ctx context.Context, sellerID int64, status string, page, pageSize int) ([]*models.Order, int, error)
	// ListExpiredPendingIDs возвращает id заказов в PENDING_PAYMENT с истёкшим дедлайном.
	ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	var company, expressNo sql.NullString
	err := row.Scan(
		&order.ID, &order.OrderNo, &order.BuyerID, &order.SellerID, &order.ProductID,
		&order.Quantity, &order.AmountCents, &order.Address, &order.PayType, &order.Status,
		&company, &expressNo,
		&order.CreatedAt, &order.PayDeadline,
		&order.PaidAt, &order.ShippedAt, &order.ReceivedAt, &order.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	order.ExpressCompany = company.String
	order.ExpressNo = expressNo.String
	return order, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	query := `INSERT INTO orders (order_no, buyer_id, seller_id, product_id, quantity, amount_cents, address, pay_type, status, created_at, pay_deadline)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		order.OrderNo, order.BuyerID, order.SellerID, order.ProductID, order.Quantity,
		order.AmountCents, order.Address, order.PayType, order.Status, order.PayDeadline,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_no = $1", orderNo)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// timestampColumn — какой аудит-столбец заполняется при переходе в статус.
func timestampColumn(to models.OrderStatus) string {
	switch to {
	case models.StatusPendingShipment:
		return "paid_at"
	case models.StatusShipped:
		return "shipped_at"
	case models.StatusCompleted:
		return "received_at"
	case models.StatusCancelled:
		return "cancelled_at"
	default:
		return ""
	}
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int64, from, to models.OrderStatus, at time.Time) error {
	query := "UPDATE orders SET status = $3 WHERE id = $1 AND status = $2"
	args := []any{id, from, to}
	if col := timestampColumn(to); col != "" {
		query = fmt.Sprintf("UPDATE orders SET status = $3, %s = $4 WHERE id = $1 AND status = $2", col)
		args = append(args, at)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderStateChanged
	}
	return nil
}

func (r *orderRepository) SetShipmentTx(ctx context.Context, tx *sql.Tx, id int64, company, expressNo string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET express_company = $2, express_no = $3 WHERE id = $1",
		id, company, expressNo)
	if err != nil {
		return fmt.Errorf("failed to set shipment info: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListOrdersByBuyer(ctx context.Context, buyerID int64, status string, page, pageSize int) ([]*models.Order, int, error) {
	return r.listOrders(ctx, "buyer_id", buyerID, status, page, pageSize)
}

func (r *orderRepository) ListOrdersBySeller(ctx context.Context, sellerID int64, status string, page, pageSize int) ([]*models.Order, int, error) {
	return r.listOrders(ctx, "seller_id", sellerID, status, page, pageSize)
}

func (r *orderRepository) listOrders(ctx context.Context, column string, userID int64, status string, page, pageSize int) ([]*models.Order, int, error) {
	where := fmt.Sprintf("WHERE %s = $1", column)
	args := []any{userID}
	if status != "" {
		where += " AND status = $2"
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM orders WHERE status = $1 AND pay_deadline < $2 ORDER BY pay_deadline LIMIT $3",
		models.StatusPendingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
