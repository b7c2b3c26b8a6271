package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// PaymentRepository persists payments
type PaymentRepository struct {
	*Storage
}

func (s *Storage) Payments() *PaymentRepository {
	return &PaymentRepository{Storage: s}
}

const paymentColumns = `id, order_id, amount, status, payment_method, transaction_id, failure_reason, processed_at, version, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	now := time.Now().UTC()
	const q = `
        INSERT INTO payments (order_id, amount, status, payment_method, transaction_id, failure_reason, processed_at, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8) RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		p.OrderID, p.Amount, string(p.Status), p.PaymentMethod, p.TransactionID, p.FailureReason, p.ProcessedAt, now,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment for order %d: %w", p.OrderID, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *models.Payment) error {
	now := time.Now().UTC()
	const q = `
        UPDATE payments
        SET status = $1, payment_method = $2, transaction_id = $3, failure_reason = $4, processed_at = $5,
            version = version + 1, updated_at = $6
        WHERE id = $7 AND version = $8`
	res, err := r.db.ExecContext(ctx, q,
		string(p.Status), p.PaymentMethod, p.TransactionID, p.FailureReason, p.ProcessedAt, now, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment %d: %w", p.ID, err)
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, p.ID); err != nil {
			return err
		}
		return fmt.Errorf("payment %d version %d: %w", p.ID, p.Version, models.ErrConcurrentUpdate)
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
}

func (r *PaymentRepository) List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, error) {
	if f.Status != "" {
		return r.query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE status = $1 ORDER BY id DESC`, string(f.Status))
	}
	return r.query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY id DESC`)
}

// ListEligible returns PENDING payments created at or before the cutoff,
// oldest first, at most limit of them.
func (r *PaymentRepository) ListEligible(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	const q = `SELECT ` + paymentColumns + `
        FROM payments
        WHERE status = $1 AND created_at <= $2
        ORDER BY created_at, id
        LIMIT $3`
	return r.query(ctx, q, string(models.PaymentStatusPending), before, limit)
}

func (r *PaymentRepository) CountByStatus(ctx context.Context) (models.PaymentStatistics, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM payments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	defer rows.Close()

	stats := make(models.PaymentStatistics, len(models.PaymentStatuses))
	for _, st := range models.PaymentStatuses {
		stats[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan payment count: %w", err)
		}
		stats[models.PaymentStatus(status)] = n
	}
	return stats, rows.Err()
}

func (r *PaymentRepository) findOne(ctx context.Context, q string, arg any) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) query(ctx context.Context, q string, args ...any) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPayment(row scanner) (*models.Payment, error) {
	var (
		p           models.Payment
		status      string
		processedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &status, &p.PaymentMethod, &p.TransactionID,
		&p.FailureReason, &processedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if processedAt.Valid {
		at := processedAt.Time
		p.ProcessedAt = &at
	}
	return &p, nil
}
