// Package sqlite stores the saga log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ashendes/order-fulfillment/internal/sagalog"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id     TEXT    NOT NULL,
    order_id    INTEGER NOT NULL DEFAULT 0,
    status      TEXT    NOT NULL,
    step        TEXT    NOT NULL DEFAULT '',
    error       TEXT    NOT NULL DEFAULT '',
    updated_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_logs_saga_id ON saga_logs(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_saga_logs_order_id ON saga_logs(order_id, id);
`

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Repository is the SQLite implementation of sagalog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends an entry.
func (r *Repository) Save(ctx context.Context, e *sagalog.Entry) error {
	const q = `
		INSERT INTO saga_logs (saga_id, order_id, status, step, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		e.SagaID, e.OrderID, string(e.Status), e.Step, e.Error,
		e.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", e.SagaID, err)
	}
	return nil
}

// ListByOrder returns every entry of every saga that touched the order, in
// insertion order. Entries written before the order had an id are included
// through their saga id.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]sagalog.Entry, error) {
	const q = `
		SELECT saga_id, order_id, status, step, error, updated_at
		FROM   saga_logs
		WHERE  saga_id IN (SELECT saga_id FROM saga_logs WHERE order_id = ?)
		ORDER  BY id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list saga log for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []sagalog.Entry
	for rows.Next() {
		var (
			e         sagalog.Entry
			status    string
			updatedAt string
		)
		if err := rows.Scan(&e.SagaID, &e.OrderID, &status, &e.Step, &e.Error, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan saga log: %w", err)
		}
		e.Status = sagalog.Status(status)
		e.UpdatedAt, err = time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
