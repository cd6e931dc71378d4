package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/second-market/internal/domain/models"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductStorage описывает методы для работы с товарами и их остатками.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// LockProductByIDTx блокирует строку товара на время транзакции (FOR UPDATE).
	LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	// ReserveStockTx атомарно списывает qty со склада; если остатка не хватает — ErrInsufficientStock.
	ReserveStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error
	// RestoreStockTx возвращает qty на склад. Идемпотентность обеспечивает вызывающий:
	// возврат применяется ровно один раз на переход заказа в CANCELLED.
	RestoreStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	product := &models.Product{}
	row := r.db.QueryRowContext(ctx, "SELECT id, seller_id, name, price_cents, stock, status FROM products WHERE id = $1", id)
	if err := row.Scan(&product.ID, &product.SellerID, &product.Name, &product.PriceCents, &product.Stock, &product.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}
	row := tx.QueryRowContext(ctx, "SELECT id, seller_id, name, price_cents, stock, status FROM products WHERE id = $1 FOR UPDATE NOWAIT", id)
	if err := row.Scan(&product.ID, &product.SellerID, &product.Name, &product.PriceCents, &product.Stock, &product.Status); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("resource is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// ReserveStockTx — условный UPDATE: списание проходит только если остатка хватает,
// поэтому stock никогда не уходит в минус даже при конкурентных заказах.
func (r *productRepository) ReserveStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2",
		productID, qty)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *productRepository) RestoreStockTx(ctx context.Context, tx *sql.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $2 WHERE id = $1",
		productID, qty)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
