package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// OrderRepository persists orders and their items
type OrderRepository struct {
	*Storage
}

func (s *Storage) Orders() *OrderRepository {
	return &OrderRepository{Storage: s}
}

// Create inserts the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	const q = `
        INSERT INTO orders (customer_id, payment_id, status, total_amount, notes, failure_reason, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7) RETURNING id`
	if err := tx.QueryRowContext(ctx, q,
		o.CustomerID, o.PaymentID, string(o.Status), o.TotalAmount, o.Notes, o.FailureReason, now,
	).Scan(&o.ID); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const qi = `
        INSERT INTO order_items (order_id, product_name, product_description, product_category, quantity, unit_price, total_price)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	for i := range o.Items {
		it := &o.Items[i]
		if err := tx.QueryRowContext(ctx, qi,
			o.ID, it.ProductName, it.ProductDescription, string(it.ProductCategory), it.Quantity, it.UnitPrice, it.TotalPrice,
		).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	o.Version = 1
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// Update writes the order header when the stored version matches o.Version.
// Items are immutable after creation.
func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	const q = `
        UPDATE orders
        SET payment_id = $1, status = $2, total_amount = $3, notes = $4, failure_reason = $5,
            version = version + 1, updated_at = $6
        WHERE id = $7 AND version = $8`
	res, err := r.db.ExecContext(ctx, q,
		o.PaymentID, string(o.Status), o.TotalAmount, o.Notes, o.FailureReason, now, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order %d: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %d: %w", o.ID, err)
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, o.ID); err != nil {
			return err
		}
		return fmt.Errorf("order %d version %d: %w", o.ID, o.Version, models.ErrConcurrentUpdate)
	}
	o.Version++
	o.UpdatedAt = now
	return nil
}

const orderColumns = `id, customer_id, payment_id, status, total_amount, notes, failure_reason, version, created_at, updated_at`

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", id, err)
	}
	if err := r.loadItems(ctx, []*models.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns matching orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != 0 {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var ptrs []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.Items = []models.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	const q = `
        SELECT id, order_id, product_name, product_description, product_category, quantity, unit_price, total_price
        FROM order_items WHERE order_id = ANY($1) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it       models.OrderItem
			orderID  int64
			category string
		)
		if err := rows.Scan(&it.ID, &orderID, &it.ProductName, &it.ProductDescription, &category,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		it.ProductCategory = models.ProductCategory(category)
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o         models.Order
		paymentID sql.NullInt64
		status    string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &paymentID, &status, &o.TotalAmount, &o.Notes,
		&o.FailureReason, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if paymentID.Valid {
		id := paymentID.Int64
		o.PaymentID = &id
	}
	return &o, nil
}
