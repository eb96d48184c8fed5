package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

const stockColumns = `id, item_id, location_id, batch, quantity, reserved, expiry_date, created_at, updated_at`

// mapErr turns constraint and isolation failures into AppErrors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if mapped := database.MapPQError(err); mapped != nil {
		return mapped
	}
	return err
}

type stockRepo struct{ s *store }

func (r stockRepo) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	query := `SELECT ` + stockColumns + ` FROM stock_records
		WHERE item_id = $1 AND location_id = $2 AND batch = $3`
	if err := sqlx.GetContext(ctx, r.s.q, &rec, query, key.ItemID, key.LocationID, key.Batch); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("stock record")
		}
		return nil, mapErr(err)
	}
	return &rec, nil
}

// lock reads the row for key with a row lock. Returns nil when absent.
func (r stockRepo) lock(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	query := `SELECT ` + stockColumns + ` FROM stock_records
		WHERE item_id = $1 AND location_id = $2 AND batch = $3` + r.s.lockClause()
	if err := sqlx.GetContext(ctx, r.s.q, &rec, query, key.ItemID, key.LocationID, key.Batch); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (r stockRepo) ApplyDelta(ctx context.Context, key domain.StockKey, delta decimal.Decimal, expiry *time.Time) (*domain.StockRecord, error) {
	rec, err := r.lock(ctx, key)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		switch {
		case delta.IsNegative():
			return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), decimal.Zero)
		case delta.IsZero():
			return nil, errors.NotFound("stock record")
		}

		// A concurrent first receipt may insert the same key; DO NOTHING
		// lets both callers fall through to the locked re-read.
		insert := `
			INSERT INTO stock_records (id, item_id, location_id, batch, quantity, reserved, expiry_date)
			VALUES ($1, $2, $3, $4, 0, 0, $5)
			ON CONFLICT (item_id, location_id, batch) DO NOTHING`
		if _, err := r.s.q.ExecContext(ctx, insert, uuid.NewString(), key.ItemID, key.LocationID, key.Batch, expiry); err != nil {
			return nil, mapErr(err)
		}
		if rec, err = r.lock(ctx, key); err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("stock record %s/%s/%s vanished after insert", key.ItemID, key.LocationID, key.Batch)
		}
	}

	newQty := rec.Quantity.Add(delta)
	if newQty.IsNegative() {
		return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), rec.Quantity)
	}
	if newQty.LessThan(rec.Reserved) {
		return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), rec.Available())
	}

	var updated domain.StockRecord
	update := `
		UPDATE stock_records
		SET quantity = $2, expiry_date = COALESCE(expiry_date, $3), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + stockColumns
	if err := sqlx.GetContext(ctx, r.s.q, &updated, update, rec.ID, newQty, expiry); err != nil {
		return nil, mapErr(err)
	}
	return &updated, nil
}

func (r stockRepo) AdjustReserved(ctx context.Context, key domain.StockKey, delta decimal.Decimal) (*domain.StockRecord, error) {
	rec, err := r.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NotFound("stock record")
	}

	reserved := rec.Reserved.Add(delta)
	if reserved.IsNegative() {
		return nil, errors.Validation(map[string]string{
			"quantity": "exceeds the reserved quantity " + rec.Reserved.String(),
		})
	}
	if reserved.GreaterThan(rec.Quantity) {
		return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta, rec.Available())
	}

	var updated domain.StockRecord
	update := `
		UPDATE stock_records SET reserved = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + stockColumns
	if err := sqlx.GetContext(ctx, r.s.q, &updated, update, rec.ID, reserved); err != nil {
		return nil, mapErr(err)
	}
	return &updated, nil
}

func (r stockRepo) ListEligible(ctx context.Context, itemID, locationID string, batch *string) ([]domain.StockRecord, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_records
		WHERE item_id = $1 AND location_id = $2 AND quantity - reserved > 0
		  AND ($3::text IS NULL OR batch = $3)
		ORDER BY expiry_date ASC NULLS LAST, created_at ASC, seq ASC` + r.s.lockClause()

	recs := make([]domain.StockRecord, 0)
	if err := sqlx.SelectContext(ctx, r.s.q, &recs, query, itemID, locationID, batch); err != nil {
		return nil, mapErr(err)
	}
	return recs, nil
}

func (r stockRepo) List(ctx context.Context, f domain.StockFilter) ([]domain.StockRecord, error) {
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
	if f.PositiveOnly {
		where = append(where, "quantity > 0")
	}
	if f.ExpiresAfter != nil {
		add("expiry_date > $%d", *f.ExpiresAfter)
	}
	if f.ExpiresBefore != nil {
		add("expiry_date <= $%d", *f.ExpiresBefore)
	}

	query := `SELECT ` + stockColumns + ` FROM stock_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, seq"

	recs := make([]domain.StockRecord, 0)
	if err := sqlx.SelectContext(ctx, r.s.q, &recs, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return recs, nil
}
