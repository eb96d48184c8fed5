package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryStatus is the lifecycle state of a delivery order.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryCancelled DeliveryStatus = "CANCELLED"
)

// ReceiptStatus is the QC state of a goods receipt.
type ReceiptStatus string

const (
	ReceiptPending ReceiptStatus = "PENDING"
	ReceiptPassed  ReceiptStatus = "PASSED"
	ReceiptFailed  ReceiptStatus = "FAILED"
)

// WorkOrderStatus is the lifecycle state of a production work order.
type WorkOrderStatus string

const (
	WorkOrderPlanned    WorkOrderStatus = "PLANNED"
	WorkOrderInProgress WorkOrderStatus = "IN_PROGRESS"
	WorkOrderCompleted  WorkOrderStatus = "COMPLETED"
	WorkOrderCancelled  WorkOrderStatus = "CANCELLED"
)

// Document number prefixes
const (
	PrefixDeliveryOrder = "DO"
	PrefixGoodsReceipt  = "GR"
	PrefixWorkOrder     = "WO"
)

// DeliveryLine is one item shipped by a delivery order.
type DeliveryLine struct {
	ID       string          `json:"id" db:"id"`
	OrderID  string          `json:"-" db:"order_id"`
	ItemID   string          `json:"item_id" db:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity" validate:"dpos,dscale=4"`
	Batch    *string         `json:"batch,omitempty" db:"batch"`
}

// DeliveryOrder moves stock out of a source location.
type DeliveryOrder struct {
	ID               string         `json:"id" db:"id"`
	Number           string         `json:"number" db:"number"`
	SourceLocationID string         `json:"source_location_id" db:"source_location_id"`
	Destination      string         `json:"destination" db:"destination"`
	Status           DeliveryStatus `json:"status" db:"status"`
	Lines            []DeliveryLine `json:"lines" db:"-"`
	CreatedBy        string         `json:"created_by" db:"created_by"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// ReceiptLine is one item received by a goods receipt.
type ReceiptLine struct {
	ID         string          `json:"id" db:"id"`
	ReceiptID  string          `json:"-" db:"receipt_id"`
	ItemID     string          `json:"item_id" db:"item_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity" validate:"dpos,dscale=4"`
	Batch      string          `json:"batch,omitempty" db:"batch"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
}

// GoodsReceipt brings supplier stock into a destination location once it
// passes quality control.
type GoodsReceipt struct {
	ID         string        `json:"id" db:"id"`
	Number     string        `json:"number" db:"number"`
	LocationID string        `json:"location_id" db:"location_id"`
	Supplier   string        `json:"supplier" db:"supplier"`
	Status     ReceiptStatus `json:"status" db:"status"`
	QCNotes    string        `json:"qc_notes,omitempty" db:"qc_notes"`
	Lines      []ReceiptLine `json:"lines" db:"-"`
	CreatedBy  string        `json:"created_by" db:"created_by"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// WorkOrder produces a recipe's output item at a kitchen location.
type WorkOrder struct {
	ID               string          `json:"id" db:"id"`
	Number           string          `json:"number" db:"number"`
	RecipeID         string          `json:"recipe_id" db:"recipe_id"`
	LocationID       string          `json:"location_id" db:"location_id"`
	PlannedQuantity  decimal.Decimal `json:"planned_quantity" db:"planned_quantity"`
	ProducedQuantity decimal.Decimal `json:"produced_quantity" db:"produced_quantity"`
	Status           WorkOrderStatus `json:"status" db:"status"`
	CreatedBy        string          `json:"created_by" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
