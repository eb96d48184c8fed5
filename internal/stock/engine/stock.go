package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// ReceiveStock increments a stock record, creating it when absent, and
// writes one RECEIPT ledger entry.
func (e *Engine) ReceiveStock(ctx context.Context, req ReceiveRequest) (*domain.StockRecord, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ref := domain.Reference{Type: domain.RefManualReceipt, ID: uuid.NewString()}
	if req.Reference != nil {
		ref = *req.Reference
	}
	key := domain.StockKey{ItemID: req.ItemID, LocationID: req.LocationID, Batch: req.Batch}

	var rec *domain.StockRecord
	err := e.run(ctx, KindReceipt, ref, func(ctx context.Context, s repository.Store) error {
		if err := requireItemAt(ctx, s, key.ItemID, key.LocationID, true); err != nil {
			return err
		}
		r, entry, err := e.post(ctx, s, key, req.Quantity, req.ExpiryDate, domain.MutationReceipt, ref, "")
		if err != nil {
			return err
		}
		rec = r
		return e.audit(ctx, s, messaging.EventStockReceived, domain.ActionReceive, domain.EntityStockRecord, r.ID,
			quantitySnapshot{Quantity: r.Quantity.Sub(entry.Change), Reserved: r.Reserved}, entry)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AdjustStock applies a signed correction with a reason. A delta that would
// take the quantity below zero, or below the reserved quantity, fails with
// insufficient stock and writes nothing.
func (e *Engine) AdjustStock(ctx context.Context, req AdjustRequest) (*domain.StockRecord, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ref := domain.Reference{Type: domain.RefAdjustment, ID: req.ReferenceID}
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	key := domain.StockKey{ItemID: req.ItemID, LocationID: req.LocationID, Batch: req.Batch}

	var rec *domain.StockRecord
	err := e.run(ctx, KindAdjustment, ref, func(ctx context.Context, s repository.Store) error {
		if err := requireItemAt(ctx, s, key.ItemID, key.LocationID, req.Delta.IsPositive()); err != nil {
			return err
		}
		r, entry, err := e.post(ctx, s, key, req.Delta, nil, domain.MutationAdjustment, ref, req.Reason)
		if err != nil {
			return err
		}
		rec = r
		return e.audit(ctx, s, messaging.EventStockAdjusted, domain.ActionAdjust, domain.EntityStockRecord, r.ID,
			quantitySnapshot{Quantity: r.Quantity.Sub(entry.Change), Reserved: r.Reserved}, entry)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Reserve earmarks quantity of a key. It fails with insufficient stock when
// less than quantity is available. No ledger entry is written.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (*domain.StockRecord, error) {
	return e.changeReservation(ctx, req, false)
}

// Unreserve releases earmarked quantity of a key. Releasing more than is
// reserved is a validation error. No ledger entry is written.
func (e *Engine) Unreserve(ctx context.Context, req ReserveRequest) (*domain.StockRecord, error) {
	return e.changeReservation(ctx, req, true)
}

func (e *Engine) changeReservation(ctx context.Context, req ReserveRequest, release bool) (*domain.StockRecord, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	key := domain.StockKey{ItemID: req.ItemID, LocationID: req.LocationID, Batch: req.Batch}

	delta, eventType, action := req.Quantity, messaging.EventStockReserved, domain.ActionReserve
	if release {
		delta, eventType, action = req.Quantity.Neg(), messaging.EventStockUnreserved, domain.ActionUnreserve
	}

	var rec *domain.StockRecord
	err := e.run(ctx, KindReservation, domain.Reference{Type: domain.EntityStockRecord}, func(ctx context.Context, s repository.Store) error {
		r, err := s.Stock().AdjustReserved(ctx, key, delta)
		if err != nil {
			return err
		}
		rec = r
		return e.audit(ctx, s, eventType, action, domain.EntityStockRecord, r.ID,
			quantitySnapshot{Quantity: r.Quantity, Reserved: r.Reserved.Sub(delta)},
			quantitySnapshot{Quantity: r.Quantity, Reserved: r.Reserved})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
