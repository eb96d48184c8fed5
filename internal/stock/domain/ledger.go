package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MutationType classifies a ledger entry.
type MutationType string

const (
	MutationReceipt               MutationType = "RECEIPT"
	MutationAdjustment            MutationType = "ADJUSTMENT"
	MutationDelivery              MutationType = "DELIVERY"
	MutationProductionConsumption MutationType = "PRODUCTION_CONSUMPTION"
	MutationProductionOutput      MutationType = "PRODUCTION_OUTPUT"
)

// Valid reports whether t is a known mutation type.
func (t MutationType) Valid() bool {
	switch t {
	case MutationReceipt, MutationAdjustment, MutationDelivery,
		MutationProductionConsumption, MutationProductionOutput:
		return true
	}
	return false
}

// Outbound reports whether t may be produced by a FEFO allocation.
func (t MutationType) Outbound() bool {
	return t == MutationDelivery || t == MutationProductionConsumption
}

// Reference types name the document behind a movement.
const (
	RefDeliveryOrder = "DELIVERY_ORDER"
	RefGoodsReceipt  = "GOODS_RECEIPT"
	RefWorkOrder     = "WORK_ORDER"
	RefAdjustment    = "STOCK_ADJUSTMENT"
	RefManualReceipt = "MANUAL_RECEIPT"
)

// Reference points at the document that triggered a movement.
type Reference struct {
	Type string `json:"type" db:"reference_type" validate:"required"`
	ID   string `json:"id" db:"reference_id" validate:"required"`
}

// LedgerEntry is one immutable quantity change of a stock key. Seq orders
// entries in write order.
type LedgerEntry struct {
	ID            string          `json:"id" db:"id"`
	Seq           int64           `json:"seq" db:"seq"`
	ItemID        string          `json:"item_id" db:"item_id"`
	LocationID    string          `json:"location_id" db:"location_id"`
	Batch         string          `json:"batch,omitempty" db:"batch"`
	Change        decimal.Decimal `json:"change" db:"change"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	MutationType  MutationType    `json:"mutation_type" db:"mutation_type"`
	ReferenceType string          `json:"reference_type" db:"reference_type"`
	ReferenceID   string          `json:"reference_id" db:"reference_id"`
	Reason        string          `json:"reason,omitempty" db:"reason"`
	Actor         string          `json:"actor" db:"actor"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Key returns the stock key the entry belongs to.
func (e *LedgerEntry) Key() StockKey {
	return StockKey{ItemID: e.ItemID, LocationID: e.LocationID, Batch: e.Batch}
}

// LedgerFilter narrows ledger listings. Entries are always returned in
// write order.
type LedgerFilter struct {
	ItemID       *string
	LocationID   *string
	Batch        *string
	ReferenceID  *string
	MutationType *MutationType
	Limit        int
	Offset       int
}

// Reconciliation compares a stock record with the sum of its ledger.
type Reconciliation struct {
	Key        StockKey        `json:"key"`
	Quantity   decimal.Decimal `json:"quantity"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Drift      decimal.Decimal `json:"drift"`
	Consistent bool            `json:"consistent"`
}
