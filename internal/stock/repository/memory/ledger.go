package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

type ledgerRepo struct{ v *view }

func (r ledgerRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	defer r.v.lock()()
	st := r.v.state()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.v.now()
	}
	st.seq++
	entry.Seq = st.seq
	st.ledger = append(st.ledger, *entry)
	return nil
}

func (r ledgerRepo) List(ctx context.Context, f domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	defer r.v.lock()()

	out := make([]domain.LedgerEntry, 0)
	skipped := 0
	for _, e := range r.v.state().ledger {
		if !matchLedger(&e, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r ledgerRepo) Sum(ctx context.Context, key domain.StockKey) (decimal.Decimal, error) {
	defer r.v.lock()()

	sum := decimal.Zero
	for _, e := range r.v.state().ledger {
		if e.Key() == key {
			sum = sum.Add(e.Change)
		}
	}
	return sum, nil
}

func matchLedger(e *domain.LedgerEntry, f domain.LedgerFilter) bool {
	if f.ItemID != nil && e.ItemID != *f.ItemID {
		return false
	}
	if f.LocationID != nil && e.LocationID != *f.LocationID {
		return false
	}
	if f.Batch != nil && e.Batch != *f.Batch {
		return false
	}
	if f.ReferenceID != nil && e.ReferenceID != *f.ReferenceID {
		return false
	}
	if f.MutationType != nil && e.MutationType != *f.MutationType {
		return false
	}
	return true
}
