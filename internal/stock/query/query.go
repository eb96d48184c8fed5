// Package query answers read-only questions about stock: availability,
// reorder deficits, expiring batches and ledger reconciliation.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// Ledger history page bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Service runs summary queries outside movement transactions.
type Service struct {
	store  repository.Store
	logger *logger.Logger
	now    func() time.Time
}

// New creates a query service reading from store.
func New(store repository.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log.WithComponent("stock-query"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used by ExpiringSoon.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Availability sums the records of item, at one location or across all.
func (s *Service) Availability(ctx context.Context, itemID string, locationID *string) (*domain.Availability, error) {
	if itemID == "" {
		return nil, errors.Validation(map[string]string{"item_id": "is required"})
	}
	if _, err := s.store.Catalog().GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	recs, err := s.store.Stock().List(ctx, domain.StockFilter{ItemID: &itemID, LocationID: locationID})
	if err != nil {
		return nil, err
	}

	a := &domain.Availability{ItemID: itemID, LocationID: locationID}
	for i := range recs {
		a.Quantity = a.Quantity.Add(recs[i].Quantity)
		a.Reserved = a.Reserved.Add(recs[i].Reserved)
	}
	a.Available = a.Quantity.Sub(a.Reserved)
	return a, nil
}

// NeedsReorder reports whether the item's total available stock is at or
// below its reorder point.
func (s *Service) NeedsReorder(ctx context.Context, itemID string) (bool, error) {
	item, err := s.store.Catalog().GetItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	a, err := s.Availability(ctx, itemID, nil)
	if err != nil {
		return false, err
	}
	return a.Available.LessThanOrEqual(item.ReorderPoint), nil
}

// LowStock lists the items at or under their reorder point, largest deficit
// first. Items without a positive reorder point are never reported.
func (s *Service) LowStock(ctx context.Context, locationID *string) ([]domain.ItemDeficit, error) {
	items, err := s.store.Catalog().ListItems(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.Stock().List(ctx, domain.StockFilter{LocationID: locationID})
	if err != nil {
		return nil, err
	}

	// item -> location -> available
	balances := make(map[string]map[string]decimal.Decimal)
	for i := range recs {
		r := &recs[i]
		byLoc, ok := balances[r.ItemID]
		if !ok {
			byLoc = make(map[string]decimal.Decimal)
			balances[r.ItemID] = byLoc
		}
		byLoc[r.LocationID] = byLoc[r.LocationID].Add(r.Available())
	}

	out := make([]domain.ItemDeficit, 0)
	for _, item := range items {
		if !item.ReorderPoint.IsPositive() {
			continue
		}

		total := decimal.Zero
		locations := make([]domain.LocationBalance, 0, len(balances[item.ID]))
		for loc, avail := range balances[item.ID] {
			total = total.Add(avail)
			locations = append(locations, domain.LocationBalance{LocationID: loc, Available: avail})
		}
		if total.GreaterThan(item.ReorderPoint) {
			continue
		}
		sort.Slice(locations, func(i, j int) bool { return locations[i].LocationID < locations[j].LocationID })

		out = append(out, domain.ItemDeficit{
			Item:           item,
			TotalAvailable: total,
			Deficit:        item.ReorderPoint.Sub(total),
			Locations:      locations,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Deficit.Equal(out[j].Deficit) {
			return out[i].Deficit.GreaterThan(out[j].Deficit)
		}
		return out[i].Item.SKU < out[j].Item.SKU
	})
	return out, nil
}

// ExpiringSoon lists records holding stock whose expiry falls after now and
// no later than now plus days, soonest first.
func (s *Service) ExpiringSoon(ctx context.Context, days int, locationID *string) ([]domain.StockRecord, error) {
	if days < 0 {
		return nil, errors.Validation(map[string]string{"days": "must not be negative"})
	}
	now := s.now()
	until := now.AddDate(0, 0, days)

	recs, err := s.store.Stock().List(ctx, domain.StockFilter{
		LocationID:    locationID,
		PositiveOnly:  true,
		ExpiresAfter:  &now,
		ExpiresBefore: &until,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ExpiresBefore(&recs[j]) })
	return recs, nil
}

// Reconcile compares a record's quantity with the sum of its ledger.
func (s *Service) Reconcile(ctx context.Context, key domain.StockKey) (*domain.Reconciliation, error) {
	rec, err := s.store.Stock().Get(ctx, key)
	if err != nil {
		return nil, err
	}
	sum, err := s.store.Ledger().Sum(ctx, key)
	if err != nil {
		return nil, err
	}

	drift := rec.Quantity.Sub(sum)
	if !drift.IsZero() {
		s.logger.Warn().
			Str("item_id", key.ItemID).
			Str("location_id", key.LocationID).
			Str("batch", key.Batch).
			Str("drift", drift.String()).
			Msg("stock record drifted from ledger")
	}

	return &domain.Reconciliation{
		Key:        key,
		Quantity:   rec.Quantity,
		LedgerSum:  sum,
		Drift:      drift,
		Consistent: drift.IsZero(),
	}, nil
}

// LedgerHistory pages through ledger entries in write order.
func (s *Service) LedgerHistory(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	if filter.MutationType != nil && !filter.MutationType.Valid() {
		return nil, errors.Validation(map[string]string{"mutation_type": "is not a known mutation type"})
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultHistoryLimit
	case filter.Limit > MaxHistoryLimit:
		filter.Limit = MaxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.store.Ledger().List(ctx, filter)
}
