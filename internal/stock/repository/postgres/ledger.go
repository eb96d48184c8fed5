package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

const ledgerColumns = `id, seq, item_id, location_id, batch, change, balance, mutation_type,
	reference_type, reference_id, reason, actor, created_at`

type ledgerRepo struct{ s *store }

func (r ledgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO ledger_entries (
			id, item_id, location_id, batch, change, balance, mutation_type,
			reference_type, reference_id, reason, actor, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()))
		RETURNING seq, created_at`

	var createdAt interface{}
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt
	}
	row := r.s.q.QueryRowxContext(ctx, query,
		e.ID, e.ItemID, e.LocationID, e.Batch, e.Change, e.Balance, e.MutationType,
		e.ReferenceType, e.ReferenceID, e.Reason, e.Actor, createdAt,
	)
	if err := row.Scan(&e.Seq, &e.CreatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r ledgerRepo) List(ctx context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ItemID != nil {
		add("item_id = $%d", *f.ItemID)
	}
	if f.LocationID != nil {
		add("location_id = $%d", *f.LocationID)
	}
	if f.Batch != nil {
		add("batch = $%d", *f.Batch)
	}
	if f.ReferenceID != nil {
		add("reference_id = $%d", *f.ReferenceID)
	}
	if f.MutationType != nil {
		add("mutation_type = $%d", string(*f.MutationType))
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	entries := make([]domain.LedgerEntry, 0)
	if err := sqlx.SelectContext(ctx, r.s.q, &entries, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return entries, nil
}

func (r ledgerRepo) Sum(ctx context.Context, key domain.StockKey) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(change), 0) FROM ledger_entries
		WHERE item_id = $1 AND location_id = $2 AND batch = $3`
	if err := sqlx.GetContext(ctx, r.s.q, &sum, query, key.ItemID, key.LocationID, key.Batch); err != nil {
		return decimal.Zero, mapErr(err)
	}
	return sum, nil
}
