package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresCounter keeps one row per prefix and month in document_sequences.
// The upsert takes a row lock, so concurrent callers get distinct values.
type PostgresCounter struct {
	db sqlx.QueryerContext
}

// NewPostgresCounter returns a counter backed by db.
func NewPostgresCounter(db sqlx.QueryerContext) *PostgresCounter {
	return &PostgresCounter{db: db}
}

const nextSequenceQuery = `
	INSERT INTO document_sequences (prefix, period, value)
	VALUES ($1, $2, 1)
	ON CONFLICT (prefix, period)
	DO UPDATE SET value = document_sequences.value + 1
	RETURNING value`

// Next implements Counter.
func (c *PostgresCounter) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	var n int64
	if err := sqlx.GetContext(ctx, c.db, &n, nextSequenceQuery, prefix, Period(at)); err != nil {
		return "", fmt.Errorf("next sequence %s%s: %w", prefix, Period(at), err)
	}
	return Format(prefix, at, n), nil
}
