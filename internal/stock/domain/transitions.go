package domain

import (
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

// Transitions is a closed state machine: the allowed target states per
// source state. A state with no entry is terminal.
type Transitions[S ~string] map[S][]S

// Allows reports whether from -> to is an edge of the table.
func (t Transitions[S]) Allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns an INVALID_STATE_TRANSITION error unless from -> to is allowed.
func (t Transitions[S]) Check(entity string, from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return errors.InvalidStateTransition(entity, string(from), string(to))
}

// Terminal reports whether no transition leaves s.
func (t Transitions[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}

// Entity names used in transition errors and audit events.
const (
	EntityDeliveryOrder = "delivery_order"
	EntityGoodsReceipt  = "goods_receipt"
	EntityWorkOrder     = "work_order"
	EntityStockRecord   = "stock_record"
)

// DeliveryTransitions is the delivery order state machine.
var DeliveryTransitions = Transitions[DeliveryStatus]{
	DeliveryPending:   {DeliveryInTransit, DeliveryCancelled},
	DeliveryInTransit: {DeliveryDelivered, DeliveryCancelled},
}

// ReceiptTransitions is the goods receipt QC state machine. PASSED and
// FAILED are terminal: stock already received is never silently reverted.
var ReceiptTransitions = Transitions[ReceiptStatus]{
	ReceiptPending: {ReceiptPassed, ReceiptFailed},
}

// WorkOrderTransitions is the production state machine. Recording output
// keeps an order IN_PROGRESS and is not a transition.
var WorkOrderTransitions = Transitions[WorkOrderStatus]{
	WorkOrderPlanned:    {WorkOrderInProgress, WorkOrderCancelled},
	WorkOrderInProgress: {WorkOrderCompleted, WorkOrderCancelled},
}

// Valid reports whether s is a known delivery status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known receipt status.
func (s ReceiptStatus) Valid() bool {
	switch s {
	case ReceiptPending, ReceiptPassed, ReceiptFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known work order status.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderPlanned, WorkOrderInProgress, WorkOrderCompleted, WorkOrderCancelled:
		return true
	}
	return false
}
