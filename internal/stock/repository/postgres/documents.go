package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// requireAffected turns an UPDATE that matched nothing into NOT_FOUND.
func requireAffected(res sql.Result, resource string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFound(resource)
	}
	return nil
}

type deliveryRepo struct{ s *store }

func (r deliveryRepo) Create(ctx context.Context, o *domain.DeliveryOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	query := `
		INSERT INTO delivery_orders (id, number, source_location_id, destination, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := r.s.q.QueryRowxContext(ctx, query,
		o.ID, o.Number, o.SourceLocationID, o.Destination, o.Status, o.CreatedBy,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	line := `
		INSERT INTO delivery_lines (id, order_id, line_no, item_id, quantity, batch)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range o.Lines {
		l := &o.Lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.OrderID = o.ID
		if _, err := r.s.q.ExecContext(ctx, line, l.ID, o.ID, i+1, l.ItemID, l.Quantity, l.Batch); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r deliveryRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.DeliveryOrder, error) {
	var o domain.DeliveryOrder
	query := `SELECT id, number, source_location_id, destination, status, created_by, created_at, updated_at
		FROM delivery_orders WHERE id = $1`
	if forUpdate {
		query += r.s.lockClause()
	}
	if err := sqlx.GetContext(ctx, r.s.q, &o, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("delivery order")
		}
		return nil, mapErr(err)
	}

	o.Lines = make([]domain.DeliveryLine, 0)
	lines := `SELECT id, order_id, item_id, quantity, batch FROM delivery_lines
		WHERE order_id = $1 ORDER BY line_no`
	if err := sqlx.SelectContext(ctx, r.s.q, &o.Lines, lines, id); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r deliveryRepo) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE delivery_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res, "delivery order")
}

type receiptRepo struct{ s *store }

func (r receiptRepo) Create(ctx context.Context, g *domain.GoodsReceipt) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	query := `
		INSERT INTO goods_receipts (id, number, location_id, supplier, status, qc_notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.s.q.QueryRowxContext(ctx, query,
		g.ID, g.Number, g.LocationID, g.Supplier, g.Status, g.QCNotes, g.CreatedBy,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}

	line := `
		INSERT INTO receipt_lines (id, receipt_id, line_no, item_id, quantity, batch, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range g.Lines {
		l := &g.Lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.ReceiptID = g.ID
		if _, err := r.s.q.ExecContext(ctx, line, l.ID, g.ID, i+1, l.ItemID, l.Quantity, l.Batch, l.ExpiryDate); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r receiptRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.GoodsReceipt, error) {
	var g domain.GoodsReceipt
	query := `SELECT id, number, location_id, supplier, status, qc_notes, created_by, created_at, updated_at
		FROM goods_receipts WHERE id = $1`
	if forUpdate {
		query += r.s.lockClause()
	}
	if err := sqlx.GetContext(ctx, r.s.q, &g, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("goods receipt")
		}
		return nil, mapErr(err)
	}

	g.Lines = make([]domain.ReceiptLine, 0)
	lines := `SELECT id, receipt_id, item_id, quantity, batch, expiry_date FROM receipt_lines
		WHERE receipt_id = $1 ORDER BY line_no`
	if err := sqlx.SelectContext(ctx, r.s.q, &g.Lines, lines, id); err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (r receiptRepo) UpdateStatus(ctx context.Context, id string, status domain.ReceiptStatus, qcNotes string) error {
	res, err := r.s.q.ExecContext(ctx, `
		UPDATE goods_receipts
		SET status = $2, qc_notes = CASE WHEN $3 = '' THEN qc_notes ELSE $3 END, updated_at = NOW()
		WHERE id = $1`, id, status, qcNotes)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res, "goods receipt")
}

const workOrderColumns = `id, number, recipe_id, location_id, planned_quantity, produced_quantity,
	status, created_by, created_at, updated_at`

type workOrderRepo struct{ s *store }

func (r workOrderRepo) Create(ctx context.Context, w *domain.WorkOrder) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	query := `
		INSERT INTO work_orders (id, number, recipe_id, location_id, planned_quantity, produced_quantity, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := r.s.q.QueryRowxContext(ctx, query,
		w.ID, w.Number, w.RecipeID, w.LocationID, w.PlannedQuantity, w.ProducedQuantity, w.Status, w.CreatedBy,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	return mapErr(err)
}

func (r workOrderRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.WorkOrder, error) {
	var w domain.WorkOrder
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`
	if forUpdate {
		query += r.s.lockClause()
	}
	if err := sqlx.GetContext(ctx, r.s.q, &w, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("work order")
		}
		return nil, mapErr(err)
	}
	return &w, nil
}

func (r workOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.WorkOrderStatus) error {
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE work_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res, "work order")
}

func (r workOrderRepo) AddProduced(ctx context.Context, id string, qty decimal.Decimal) error {
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE work_orders SET produced_quantity = produced_quantity + $2, updated_at = NOW() WHERE id = $1`, id, qty)
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res, "work order")
}
