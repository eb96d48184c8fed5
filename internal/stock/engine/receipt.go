package engine

import (
	"context"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/actor"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// CreateGoodsReceipt numbers and stores a PENDING goods receipt awaiting QC.
func (e *Engine) CreateGoodsReceipt(ctx context.Context, req CreateReceiptRequest) (*domain.GoodsReceipt, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	number, err := e.nextNumber(ctx, domain.PrefixGoodsReceipt)
	if err != nil {
		return nil, err
	}

	receipt := &domain.GoodsReceipt{
		Number:     number,
		LocationID: req.LocationID,
		Supplier:   req.Supplier,
		Status:     domain.ReceiptPending,
		Lines:      req.Lines,
		CreatedBy:  actor.IDFromContext(ctx),
	}

	err = e.run(ctx, KindDocument, domain.Reference{Type: domain.RefGoodsReceipt, ID: number}, func(ctx context.Context, s repository.Store) error {
		for _, line := range receipt.Lines {
			if err := requireItemAt(ctx, s, line.ItemID, receipt.LocationID, true); err != nil {
				return err
			}
		}
		if err := s.Receipts().Create(ctx, receipt); err != nil {
			return err
		}
		return e.audit(ctx, s, messaging.EventDocumentCreated, domain.ActionCreate, domain.EntityGoodsReceipt, receipt.ID, nil, receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// PassGoodsReceipt accepts a PENDING receipt and receives every line into
// the receipt's location, one RECEIPT ledger entry per line.
func (e *Engine) PassGoodsReceipt(ctx context.Context, id, notes string) (*domain.GoodsReceipt, []domain.LedgerEntry, error) {
	return e.TransitionGoodsReceipt(ctx, id, domain.ReceiptPassed, notes)
}

// FailGoodsReceipt rejects a PENDING receipt. No stock moves.
func (e *Engine) FailGoodsReceipt(ctx context.Context, id, notes string) (*domain.GoodsReceipt, error) {
	r, _, err := e.TransitionGoodsReceipt(ctx, id, domain.ReceiptFailed, notes)
	return r, err
}

// TransitionGoodsReceipt moves a receipt to the QC outcome to. Only
// PENDING receipts can change; PASSED and FAILED are final.
func (e *Engine) TransitionGoodsReceipt(ctx context.Context, id string, to domain.ReceiptStatus, notes string) (*domain.GoodsReceipt, []domain.LedgerEntry, error) {
	if !to.Valid() {
		return nil, nil, validation.Field("status", "is not a known status")
	}

	var (
		receipt *domain.GoodsReceipt
		entries []domain.LedgerEntry
	)
	err := e.run(ctx, KindGoodsReceipt, domain.Reference{Type: domain.RefGoodsReceipt, ID: id}, func(ctx context.Context, s repository.Store) error {
		r, err := s.Receipts().Get(ctx, id, true)
		if err != nil {
			return err
		}
		from := r.Status
		if err := domain.ReceiptTransitions.Check(domain.EntityGoodsReceipt, from, to); err != nil {
			return err
		}

		entries = nil
		if to == domain.ReceiptPassed {
			ref := domain.Reference{Type: domain.RefGoodsReceipt, ID: r.ID}
			for _, line := range r.Lines {
				key := domain.StockKey{ItemID: line.ItemID, LocationID: r.LocationID, Batch: line.Batch}
				_, entry, err := e.post(ctx, s, key, line.Quantity, line.ExpiryDate, domain.MutationReceipt, ref, "")
				if err != nil {
					return err
				}
				entries = append(entries, *entry)
			}
		}

		if err := s.Receipts().UpdateStatus(ctx, r.ID, to, notes); err != nil {
			return err
		}
		r.Status = to
		r.QCNotes = notes
		receipt = r

		return e.audit(ctx, s, messaging.EventReceiptStatusChanged, domain.ActionStatusChange, domain.EntityGoodsReceipt, r.ID,
			statusSnapshot{Status: string(from)},
			struct {
				Status  string               `json:"status"`
				QCNotes string               `json:"qc_notes,omitempty"`
				Entries []domain.LedgerEntry `json:"entries,omitempty"`
			}{string(to), notes, entries})
	})
	if err != nil {
		return nil, nil, err
	}
	return receipt, entries, nil
}

// GetGoodsReceipt loads a receipt with its lines.
func (e *Engine) GetGoodsReceipt(ctx context.Context, id string) (*domain.GoodsReceipt, error) {
	var receipt *domain.GoodsReceipt
	err := e.tx.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		r, err := s.Receipts().Get(ctx, id, false)
		receipt = r
		return err
	})
	return receipt, err
}
