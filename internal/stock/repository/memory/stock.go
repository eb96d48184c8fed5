package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

type stockRepo struct{ v *view }

func (r stockRepo) Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error) {
	defer r.v.lock()()
	rec, ok := r.v.state().records[key]
	if !ok {
		return nil, errors.NotFound("stock record")
	}
	cp := *rec
	return &cp, nil
}

func (r stockRepo) ApplyDelta(ctx context.Context, key domain.StockKey, delta decimal.Decimal, expiry *time.Time) (*domain.StockRecord, error) {
	defer r.v.lock()()
	st := r.v.state()
	now := r.v.now()

	rec, ok := st.records[key]
	if !ok {
		switch {
		case delta.IsNegative():
			return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), decimal.Zero)
		case delta.IsZero():
			return nil, errors.NotFound("stock record")
		}
		rec = &domain.StockRecord{
			ID:         uuid.NewString(),
			ItemID:     key.ItemID,
			LocationID: key.LocationID,
			Batch:      key.Batch,
			Quantity:   decimal.Zero,
			Reserved:   decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		st.records[key] = rec
		st.keys = append(st.keys, key)
	}

	newQty := rec.Quantity.Add(delta)
	if newQty.IsNegative() {
		return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), rec.Quantity)
	}
	if newQty.LessThan(rec.Reserved) {
		return nil, errors.InsufficientStock(key.ItemID, key.LocationID, delta.Neg(), rec.Available())
	}

	rec.Quantity = newQty
	if expiry != nil && rec.ExpiryDate == nil {
		e := *expiry
		rec.ExpiryDate = &e
	}
	rec.UpdatedAt = now

	cp := *rec
	return &cp, nil
}

func (r stockRepo) AdjustReserved(ctx context.Context, key domain.StockKey, delta decimal.Decimal) (*domain.StockRecord, error) {
	defer r.v.lock()()
	rec, ok := r.v.state().records[key]
	if !ok {
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
	rec.Reserved = reserved
	rec.UpdatedAt = r.v.now()

	cp := *rec
	return &cp, nil
}

func (r stockRepo) ListEligible(ctx context.Context, itemID, locationID string, batch *string) ([]domain.StockRecord, error) {
	defer r.v.lock()()
	st := r.v.state()

	out := make([]domain.StockRecord, 0)
	for _, key := range st.keys {
		rec := st.records[key]
		if rec.ItemID != itemID || rec.LocationID != locationID {
			continue
		}
		if batch != nil && rec.Batch != *batch {
			continue
		}
		if !rec.Available().IsPositive() {
			continue
		}
		out = append(out, *rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiresBefore(&out[j])
	})
	return out, nil
}

func (r stockRepo) List(ctx context.Context, f domain.StockFilter) ([]domain.StockRecord, error) {
	defer r.v.lock()()
	st := r.v.state()

	out := make([]domain.StockRecord, 0)
	for _, key := range st.keys {
		rec := st.records[key]
		if !matchStock(rec, f) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func matchStock(rec *domain.StockRecord, f domain.StockFilter) bool {
	if f.ItemID != nil && rec.ItemID != *f.ItemID {
		return false
	}
	if f.LocationID != nil && rec.LocationID != *f.LocationID {
		return false
	}
	if f.Batch != nil && rec.Batch != *f.Batch {
		return false
	}
	if f.PositiveOnly && !rec.Quantity.IsPositive() {
		return false
	}
	if f.ExpiresAfter != nil && (rec.ExpiryDate == nil || !rec.ExpiryDate.After(*f.ExpiresAfter)) {
		return false
	}
	if f.ExpiresBefore != nil && (rec.ExpiryDate == nil || rec.ExpiryDate.After(*f.ExpiresBefore)) {
		return false
	}
	return true
}
