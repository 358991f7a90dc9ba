// Package sqlite provides a SQLite-backed implementation of
// orderlog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the coordinator appends from request goroutines while an operator
// (or the smoke tooling) may be reading.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dawidbera/secure-serverless-marketplace/internal/orderlog"

	// Register the pure-Go SQLite driver.
	// modernc.org/sqlite avoids CGO, keeping Alpine/Docker builds trivial.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
// The table is append-only: each row is an immutable record of one placement
// attempt. There is no update path.
const schema = `
CREATE TABLE IF NOT EXISTS order_attempts (
    -- Surrogate primary key, auto-incremented by SQLite.
    id          INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Order id generated for the attempt. Not UNIQUE: a conflicted attempt
    -- and a later successful one are separate rows with separate ids.
    order_id    TEXT    NOT NULL,

    product_id  TEXT    NOT NULL,
    user_id     TEXT    NOT NULL,
    quantity    INTEGER NOT NULL,

    -- COMMITTED / CONFLICT / REJECTED / FAILED.
    outcome     TEXT    NOT NULL,

    -- Error text for non-committed attempts. Empty on COMMITTED.
    detail      TEXT    NOT NULL DEFAULT '',

    -- W3C trace_id (32 hex chars) from the active OTel span.
    trace_id    TEXT    NOT NULL DEFAULT '',

    -- W3C span_id (16 hex chars).
    span_id     TEXT    NOT NULL DEFAULT '',

    -- Wall-clock timestamp (RFC3339 stored as TEXT, SQLite idiom).
    created_at  TEXT    NOT NULL
);

-- The common operator query: "what happened to product X lately".
CREATE INDEX IF NOT EXISTS idx_order_attempts_product ON order_attempts(product_id, created_at);

-- The client-recovery query: "did user Y's attempt commit".
CREATE INDEX IF NOT EXISTS idx_order_attempts_user ON order_attempts(user_id, created_at);

-- The observability query: "find the attempt for trace Z".
CREATE INDEX IF NOT EXISTS idx_order_attempts_trace ON order_attempts(trace_id);
`

// Repository is the SQLite implementation of orderlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write behavior.
//
//	repo, err := sqlite.Open("./data/orders.db")
func Open(path string) (*Repository, error) {
	// The pure-Go driver takes _pragma query parameters for connection
	// state. busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts one audit entry. Safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *orderlog.Entry) error {
	const q = `
		INSERT INTO order_attempts
			(order_id, product_id, user_id, quantity, outcome, detail, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.ProductID,
		entry.UserID,
		entry.Quantity,
		string(entry.Outcome),
		entry.Detail,
		entry.TraceID,
		entry.SpanID,
		entry.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save order attempt %q: %w", entry.OrderID, err)
	}
	return nil
}

// RecentForProduct returns the latest attempts against a product, newest
// first, capped at limit. Used by operator tooling to inspect contention.
func (r *Repository) RecentForProduct(ctx context.Context, productID string, limit int) ([]orderlog.Entry, error) {
	const q = `
		SELECT order_id, product_id, user_id, quantity, outcome, detail,
		       trace_id, span_id, created_at
		FROM   order_attempts
		WHERE  product_id = ?
		ORDER  BY created_at DESC, id DESC
		LIMIT  ?`

	rows, err := r.db.QueryContext(ctx, q, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent attempts for %q: %w", productID, err)
	}
	defer rows.Close()

	var entries []orderlog.Entry
	for rows.Next() {
		var entry orderlog.Entry
		var createdAt string
		if err := rows.Scan(
			&entry.OrderID,
			&entry.ProductID,
			&entry.UserID,
			&entry.Quantity,
			&entry.Outcome,
			&entry.Detail,
			&entry.TraceID,
			&entry.SpanID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan order attempt: %w", err)
		}
		entry.CreatedAt, err = parseRFC3339(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// applySchema runs the DDL statements once. Idempotent due to IF NOT EXISTS.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}
