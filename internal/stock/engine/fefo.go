package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// AllocateFEFO removes quantity of an item from a location, soonest expiry
// first. Either the whole quantity is allocated, or the call fails with an
// insufficient stock error carrying the shortfall and nothing is written.
// The returned entries are in allocation order.
func (e *Engine) AllocateFEFO(ctx context.Context, req AllocateRequest) ([]domain.LedgerEntry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var entries []domain.LedgerEntry
	err := e.run(ctx, KindAllocation, req.Reference, func(ctx context.Context, s repository.Store) error {
		if err := requireItemAt(ctx, s, req.ItemID, req.LocationID, false); err != nil {
			return err
		}
		out, err := e.allocate(ctx, s, req.ItemID, req.LocationID, req.Quantity, req.Batch, req.MutationType, req.Reference)
		if err != nil {
			return err
		}
		entries = out
		return e.audit(ctx, s, messaging.EventStockAllocated, domain.ActionAllocate, req.Reference.Type, req.Reference.ID, nil, out)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveBatchesTouched(len(entries))
	return entries, nil
}

// allocate walks the eligible records of item at location in FEFO order and
// deducts from each until qty is covered. It must run inside the caller's
// transaction so a shortfall discards the deductions already made.
func (e *Engine) allocate(ctx context.Context, s repository.Store, itemID, locationID string, qty decimal.Decimal, batch *string, mt domain.MutationType, ref domain.Reference) ([]domain.LedgerEntry, error) {
	if !mt.Outbound() {
		return nil, validation.Field("mutation_type", "must be DELIVERY or PRODUCTION_CONSUMPTION")
	}

	candidates, err := s.Stock().ListEligible(ctx, itemID, locationID, batch)
	if err != nil {
		return nil, err
	}

	remaining := qty
	entries := make([]domain.LedgerEntry, 0, len(candidates))
	for i := range candidates {
		if remaining.IsZero() {
			break
		}
		rec := &candidates[i]

		take := decimal.Min(rec.Available(), remaining)
		if !take.IsPositive() {
			continue
		}

		_, entry, err := e.post(ctx, s, rec.Key(), take.Neg(), nil, mt, ref, "")
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, errors.InsufficientStock(itemID, locationID, qty, qty.Sub(remaining))
	}
	return entries, nil
}

// availableAt sums the allocatable quantity of item at location.
func availableAt(ctx context.Context, s repository.Store, itemID, locationID string) (decimal.Decimal, error) {
	recs, err := s.Stock().ListEligible(ctx, itemID, locationID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range recs {
		total = total.Add(recs[i].Available())
	}
	return total, nil
}
