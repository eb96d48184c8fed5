package engine

import (
	"context"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/actor"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// CreateDeliveryOrder numbers and stores a PENDING delivery order. Stock is
// untouched until the order is confirmed.
func (e *Engine) CreateDeliveryOrder(ctx context.Context, req CreateDeliveryRequest) (*domain.DeliveryOrder, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	number, err := e.nextNumber(ctx, domain.PrefixDeliveryOrder)
	if err != nil {
		return nil, err
	}

	order := &domain.DeliveryOrder{
		Number:           number,
		SourceLocationID: req.SourceLocationID,
		Destination:      req.Destination,
		Status:           domain.DeliveryPending,
		Lines:            req.Lines,
		CreatedBy:        actor.IDFromContext(ctx),
	}

	err = e.run(ctx, KindDocument, domain.Reference{Type: domain.RefDeliveryOrder, ID: number}, func(ctx context.Context, s repository.Store) error {
		if _, err := s.Catalog().GetLocation(ctx, order.SourceLocationID); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if _, err := s.Catalog().GetItem(ctx, line.ItemID); err != nil {
				return err
			}
		}
		if err := s.Deliveries().Create(ctx, order); err != nil {
			return err
		}
		return e.audit(ctx, s, messaging.EventDocumentCreated, domain.ActionCreate, domain.EntityDeliveryOrder, order.ID, nil, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DispatchDelivery moves a PENDING order to IN_TRANSIT.
func (e *Engine) DispatchDelivery(ctx context.Context, id string) (*domain.DeliveryOrder, error) {
	order, _, err := e.transitionDelivery(ctx, id, domain.DeliveryInTransit, nil)
	return order, err
}

// CancelDelivery cancels a PENDING or IN_TRANSIT order.
func (e *Engine) CancelDelivery(ctx context.Context, id string) (*domain.DeliveryOrder, error) {
	order, _, err := e.transitionDelivery(ctx, id, domain.DeliveryCancelled, nil)
	return order, err
}

// ConfirmDelivery allocates every line from the source location in FEFO
// order and marks the order DELIVERED. If any line is short the whole
// confirmation fails and the order stays IN_TRANSIT.
func (e *Engine) ConfirmDelivery(ctx context.Context, id string) (*domain.DeliveryOrder, []domain.LedgerEntry, error) {
	return e.transitionDelivery(ctx, id, domain.DeliveryDelivered,
		func(ctx context.Context, s repository.Store, o *domain.DeliveryOrder) ([]domain.LedgerEntry, error) {
			ref := domain.Reference{Type: domain.RefDeliveryOrder, ID: o.ID}
			var entries []domain.LedgerEntry
			for _, line := range o.Lines {
				out, err := e.allocate(ctx, s, line.ItemID, o.SourceLocationID, line.Quantity, line.Batch, domain.MutationDelivery, ref)
				if err != nil {
					return nil, err
				}
				entries = append(entries, out...)
			}
			return entries, nil
		})
}

// GetDeliveryOrder loads an order with its lines.
func (e *Engine) GetDeliveryOrder(ctx context.Context, id string) (*domain.DeliveryOrder, error) {
	var order *domain.DeliveryOrder
	err := e.tx.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		o, err := s.Deliveries().Get(ctx, id, false)
		order = o
		return err
	})
	return order, err
}

type deliveryEffect func(ctx context.Context, s repository.Store, o *domain.DeliveryOrder) ([]domain.LedgerEntry, error)

func (e *Engine) transitionDelivery(ctx context.Context, id string, to domain.DeliveryStatus, effect deliveryEffect) (*domain.DeliveryOrder, []domain.LedgerEntry, error) {
	var (
		order   *domain.DeliveryOrder
		entries []domain.LedgerEntry
	)
	err := e.run(ctx, KindDelivery, domain.Reference{Type: domain.RefDeliveryOrder, ID: id}, func(ctx context.Context, s repository.Store) error {
		o, err := s.Deliveries().Get(ctx, id, true)
		if err != nil {
			return err
		}
		from := o.Status
		if err := domain.DeliveryTransitions.Check(domain.EntityDeliveryOrder, from, to); err != nil {
			return err
		}

		if effect != nil {
			if entries, err = effect(ctx, s, o); err != nil {
				return err
			}
		}

		if err := s.Deliveries().UpdateStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		order = o

		return e.audit(ctx, s, messaging.EventDeliveryStatusChanged, domain.ActionStatusChange, domain.EntityDeliveryOrder, o.ID,
			statusSnapshot{Status: string(from)},
			struct {
				Status  string               `json:"status"`
				Entries []domain.LedgerEntry `json:"entries,omitempty"`
			}{string(to), entries})
	})
	if err != nil {
		return nil, nil, err
	}
	return order, entries, nil
}
