package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/actor"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// CreateWorkOrder numbers and stores a PLANNED work order.
func (e *Engine) CreateWorkOrder(ctx context.Context, req CreateWorkOrderRequest) (*domain.WorkOrder, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	number, err := e.nextNumber(ctx, domain.PrefixWorkOrder)
	if err != nil {
		return nil, err
	}

	order := &domain.WorkOrder{
		Number:           number,
		RecipeID:         req.RecipeID,
		LocationID:       req.LocationID,
		PlannedQuantity:  req.PlannedQuantity,
		ProducedQuantity: decimal.Zero,
		Status:           domain.WorkOrderPlanned,
		CreatedBy:        actor.IDFromContext(ctx),
	}

	err = e.run(ctx, KindDocument, domain.Reference{Type: domain.RefWorkOrder, ID: number}, func(ctx context.Context, s repository.Store) error {
		if _, err := s.Catalog().GetRecipe(ctx, order.RecipeID); err != nil {
			return err
		}
		if _, err := s.Catalog().GetLocation(ctx, order.LocationID); err != nil {
			return err
		}
		if err := s.WorkOrders().Create(ctx, order); err != nil {
			return err
		}
		return e.audit(ctx, s, messaging.EventDocumentCreated, domain.ActionCreate, domain.EntityWorkOrder, order.ID, nil, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// StartWorkOrder moves a PLANNED order to IN_PROGRESS once the location
// holds enough available stock of every ingredient for the planned
// quantity. Nothing is consumed yet.
func (e *Engine) StartWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return e.transitionWorkOrder(ctx, id, domain.WorkOrderInProgress,
		func(ctx context.Context, s repository.Store, o *domain.WorkOrder) error {
			recipe, err := s.Catalog().GetRecipe(ctx, o.RecipeID)
			if err != nil {
				return err
			}
			for _, ing := range recipe.Scale(o.PlannedQuantity) {
				available, err := availableAt(ctx, s, ing.ItemID, o.LocationID)
				if err != nil {
					return err
				}
				if available.LessThan(ing.Quantity) {
					return errors.InsufficientStock(ing.ItemID, o.LocationID, ing.Quantity, available)
				}
			}
			return nil
		})
}

// CompleteWorkOrder closes an IN_PROGRESS order.
func (e *Engine) CompleteWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return e.transitionWorkOrder(ctx, id, domain.WorkOrderCompleted, nil)
}

// CancelWorkOrder cancels a PLANNED or IN_PROGRESS order. Output already
// recorded stays in stock.
func (e *Engine) CancelWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return e.transitionWorkOrder(ctx, id, domain.WorkOrderCancelled, nil)
}

// RecordOutput reports qty produced units of an IN_PROGRESS order. The
// recipe ingredients scaled to qty are consumed from the order's location
// in FEFO order and the output item is received there, in one transaction.
func (e *Engine) RecordOutput(ctx context.Context, id string, req RecordOutputRequest) (*domain.WorkOrder, []domain.LedgerEntry, error) {
	if err := validation.Struct(req); err != nil {
		return nil, nil, err
	}

	ref := domain.Reference{Type: domain.RefWorkOrder, ID: id}
	var (
		order   *domain.WorkOrder
		entries []domain.LedgerEntry
	)
	err := e.run(ctx, KindProductionRun, ref, func(ctx context.Context, s repository.Store) error {
		o, err := s.WorkOrders().Get(ctx, id, true)
		if err != nil {
			return err
		}
		if o.Status != domain.WorkOrderInProgress {
			return errors.InvalidStateTransition(domain.EntityWorkOrder, string(o.Status), domain.ActionRecordOutput)
		}
		recipe, err := s.Catalog().GetRecipe(ctx, o.RecipeID)
		if err != nil {
			return err
		}
		if err := requireItemAt(ctx, s, recipe.OutputItemID, o.LocationID, true); err != nil {
			return err
		}

		entries = nil
		for _, ing := range recipe.Scale(req.Quantity) {
			if !ing.Quantity.IsPositive() {
				continue
			}
			out, err := e.allocate(ctx, s, ing.ItemID, o.LocationID, ing.Quantity, nil, domain.MutationProductionConsumption, ref)
			if err != nil {
				return err
			}
			entries = append(entries, out...)
		}

		key := domain.StockKey{ItemID: recipe.OutputItemID, LocationID: o.LocationID, Batch: req.Batch}
		_, entry, err := e.post(ctx, s, key, req.Quantity, req.ExpiryDate, domain.MutationProductionOutput, ref, "")
		if err != nil {
			return err
		}
		entries = append(entries, *entry)

		if err := s.WorkOrders().AddProduced(ctx, o.ID, req.Quantity); err != nil {
			return err
		}
		before := o.ProducedQuantity
		o.ProducedQuantity = o.ProducedQuantity.Add(req.Quantity)
		order = o

		return e.audit(ctx, s, messaging.EventWorkOrderOutput, domain.ActionRecordOutput, domain.EntityWorkOrder, o.ID,
			struct {
				ProducedQuantity decimal.Decimal `json:"produced_quantity"`
			}{before},
			struct {
				ProducedQuantity decimal.Decimal     `json:"produced_quantity"`
				Entries          []domain.LedgerEntry `json:"entries"`
			}{o.ProducedQuantity, entries})
	})
	if err != nil {
		return nil, nil, err
	}
	return order, entries, nil
}

// GetWorkOrder loads a work order.
func (e *Engine) GetWorkOrder(ctx context.Context, id string) (*domain.WorkOrder, error) {
	var order *domain.WorkOrder
	err := e.tx.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		o, err := s.WorkOrders().Get(ctx, id, false)
		order = o
		return err
	})
	return order, err
}

type workOrderGuard func(ctx context.Context, s repository.Store, o *domain.WorkOrder) error

func (e *Engine) transitionWorkOrder(ctx context.Context, id string, to domain.WorkOrderStatus, guard workOrderGuard) (*domain.WorkOrder, error) {
	var order *domain.WorkOrder
	err := e.run(ctx, KindWorkOrder, domain.Reference{Type: domain.RefWorkOrder, ID: id}, func(ctx context.Context, s repository.Store) error {
		o, err := s.WorkOrders().Get(ctx, id, true)
		if err != nil {
			return err
		}
		from := o.Status
		if err := domain.WorkOrderTransitions.Check(domain.EntityWorkOrder, from, to); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, s, o); err != nil {
				return err
			}
		}
		if err := s.WorkOrders().UpdateStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		order = o
		return e.audit(ctx, s, messaging.EventWorkOrderStatusChanged, domain.ActionStatusChange, domain.EntityWorkOrder, o.ID,
			statusSnapshot{Status: string(from)}, statusSnapshot{Status: string(to)})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
