// Package history persists the durable order-history log in Postgres.
//
// History is an audit surface, not the source of truth for orders: a
// failed append never fails the order that produced it, so callers log
// and continue. The store is scoped to one shop; every row carries the
// shop domain so a shared database can serve multiple deployments.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderdesk/orderdesk/internal/importer"
)

const (
	// DefaultRecentLimit caps history queries that pass no explicit limit.
	DefaultRecentLimit = 25

	// MaxRecentLimit is the hard ceiling regardless of what the caller asks for.
	MaxRecentLimit = 200
)

// Store reads and writes order history rows.
type Store struct {
	pool     *pgxpool.Pool
	scopeKey string
}

var _ importer.HistoryAppender = (*Store)(nil)

// NewStore creates a store scoped to one shop domain.
func NewStore(pool *pgxpool.Pool, scopeKey string) *Store {
	return &Store{pool: pool, scopeKey: scopeKey}
}

// EnsureSchema creates the history table and index if they do not exist.
// Called once at startup; safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS order_history (
	id               UUID PRIMARY KEY,
	scope_key        TEXT NOT NULL,
	customer_id      TEXT NOT NULL,
	customer_name    TEXT NOT NULL,
	order_id         TEXT NOT NULL,
	order_display_id TEXT NOT NULL,
	order_label      TEXT NOT NULL,
	total_quantity   INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_history_scope_recency
	ON order_history (scope_key, created_at DESC);`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure order_history schema: %w", err)
	}
	return nil
}

// Append writes one completed order to the history log.
func (s *Store) Append(ctx context.Context, rec importer.HistoryRecord) error {
	const query = `
INSERT INTO order_history (
	id, scope_key, customer_id, customer_name,
	order_id, order_display_id, order_label,
	total_quantity, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, s.scopeKey, rec.CustomerID, rec.CustomerName,
		rec.OrderID, rec.OrderDisplayID, rec.OrderLabel,
		rec.TotalQuantity, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}
	return nil
}

// Recent returns the newest history rows for this shop, newest first.
// The limit is clamped to [1, MaxRecentLimit]; non-positive means default.
func (s *Store) Recent(ctx context.Context, limit int) ([]importer.HistoryRecord, error) {
	limit = clampLimit(limit)

	const query = `
SELECT id, customer_id, customer_name,
	order_id, order_display_id, order_label,
	total_quantity, created_at
FROM order_history
WHERE scope_key = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, s.scopeKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query order history: %w", err)
	}
	defer rows.Close()

	records := make([]importer.HistoryRecord, 0, limit)
	for rows.Next() {
		var (
			id        pgtype.UUID
			rec       importer.HistoryRecord
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&id, &rec.CustomerID, &rec.CustomerName,
			&rec.OrderID, &rec.OrderDisplayID, &rec.OrderLabel,
			&rec.TotalQuantity, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan order history row: %w", err)
		}
		rec.ID = uuidString(id)
		rec.CreatedAt = createdAt.Time
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read order history rows: %w", err)
	}
	return records, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	b := u.Bytes
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
