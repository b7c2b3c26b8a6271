package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
)

// CustomerRepository persists the customer directory
type CustomerRepository struct {
	*Storage
}

func (s *Storage) Customers() *CustomerRepository {
	return &CustomerRepository{Storage: s}
}

const customerColumns = `id, first_name, last_name, email, phone_number, address, created_at, updated_at`

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	const q = `
        INSERT INTO customers (first_name, last_name, email, phone_number, address, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`
	err := r.db.QueryRowContext(ctx, q, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Address, now).Scan(&c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer with email %s: %w", c.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	const q = `
        UPDATE customers
        SET first_name = $1, last_name = $2, email = $3, phone_number = $4, address = $5, updated_at = $6
        WHERE id = $7`
	res, err := r.db.ExecContext(ctx, q, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Address, now, c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer with email %s: %w", c.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("update customer %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCustomerNotFound
	}
	c.UpdatedAt = now
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*models.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE lower(email) = lower($1)`, email)
}

func (r *CustomerRepository) List(ctx context.Context) ([]models.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.Address,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CustomerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("customer exists %d: %w", id, err)
	}
	return ok, nil
}

func (r *CustomerRepository) findOne(ctx context.Context, q string, arg any) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRowContext(ctx, q, arg).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}
