package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

func copyDelivery(o *domain.DeliveryOrder) *domain.DeliveryOrder {
	cp := *o
	cp.Lines = append([]domain.DeliveryLine(nil), o.Lines...)
	return &cp
}

func copyReceipt(g *domain.GoodsReceipt) *domain.GoodsReceipt {
	cp := *g
	cp.Lines = append([]domain.ReceiptLine(nil), g.Lines...)
	return &cp
}

func conflictIfNumberTaken(taken bool) error {
	if taken {
		return errors.Conflict("a document with this number already exists")
	}
	return nil
}

type deliveryRepo struct{ v *view }

func (r deliveryRepo) Create(ctx context.Context, o *domain.DeliveryOrder) error {
	defer r.v.lock()()
	st := r.v.state()

	for _, existing := range st.deliveries {
		if err := conflictIfNumberTaken(existing.Number == o.Number); err != nil {
			return err
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := r.v.now()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Lines {
		if o.Lines[i].ID == "" {
			o.Lines[i].ID = uuid.NewString()
		}
		o.Lines[i].OrderID = o.ID
	}
	st.deliveries[o.ID] = copyDelivery(o)
	return nil
}

func (r deliveryRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.DeliveryOrder, error) {
	defer r.v.lock()()
	o, ok := r.v.state().deliveries[id]
	if !ok {
		return nil, errors.NotFound("delivery order")
	}
	return copyDelivery(o), nil
}

func (r deliveryRepo) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	defer r.v.lock()()
	o, ok := r.v.state().deliveries[id]
	if !ok {
		return errors.NotFound("delivery order")
	}
	o.Status = status
	o.UpdatedAt = r.v.now()
	return nil
}

type receiptRepo struct{ v *view }

func (r receiptRepo) Create(ctx context.Context, g *domain.GoodsReceipt) error {
	defer r.v.lock()()
	st := r.v.state()

	for _, existing := range st.receipts {
		if err := conflictIfNumberTaken(existing.Number == g.Number); err != nil {
			return err
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := r.v.now()
	g.CreatedAt, g.UpdatedAt = now, now
	for i := range g.Lines {
		if g.Lines[i].ID == "" {
			g.Lines[i].ID = uuid.NewString()
		}
		g.Lines[i].ReceiptID = g.ID
	}
	st.receipts[g.ID] = copyReceipt(g)
	return nil
}

func (r receiptRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.GoodsReceipt, error) {
	defer r.v.lock()()
	g, ok := r.v.state().receipts[id]
	if !ok {
		return nil, errors.NotFound("goods receipt")
	}
	return copyReceipt(g), nil
}

func (r receiptRepo) UpdateStatus(ctx context.Context, id string, status domain.ReceiptStatus, qcNotes string) error {
	defer r.v.lock()()
	g, ok := r.v.state().receipts[id]
	if !ok {
		return errors.NotFound("goods receipt")
	}
	g.Status = status
	if qcNotes != "" {
		g.QCNotes = qcNotes
	}
	g.UpdatedAt = r.v.now()
	return nil
}

type workOrderRepo struct{ v *view }

func (r workOrderRepo) Create(ctx context.Context, w *domain.WorkOrder) error {
	defer r.v.lock()()
	st := r.v.state()

	for _, existing := range st.workOrders {
		if err := conflictIfNumberTaken(existing.Number == w.Number); err != nil {
			return err
		}
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := r.v.now()
	w.CreatedAt, w.UpdatedAt = now, now
	cp := *w
	st.workOrders[w.ID] = &cp
	return nil
}

func (r workOrderRepo) Get(ctx context.Context, id string, forUpdate bool) (*domain.WorkOrder, error) {
	defer r.v.lock()()
	w, ok := r.v.state().workOrders[id]
	if !ok {
		return nil, errors.NotFound("work order")
	}
	cp := *w
	return &cp, nil
}

func (r workOrderRepo) UpdateStatus(ctx context.Context, id string, status domain.WorkOrderStatus) error {
	defer r.v.lock()()
	w, ok := r.v.state().workOrders[id]
	if !ok {
		return errors.NotFound("work order")
	}
	w.Status = status
	w.UpdatedAt = r.v.now()
	return nil
}

func (r workOrderRepo) AddProduced(ctx context.Context, id string, qty decimal.Decimal) error {
	defer r.v.lock()()
	w, ok := r.v.state().workOrders[id]
	if !ok {
		return errors.NotFound("work order")
	}
	w.ProducedQuantity = w.ProducedQuantity.Add(qty)
	w.UpdatedAt = r.v.now()
	return nil
}
