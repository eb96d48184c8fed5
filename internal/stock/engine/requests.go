package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

// ReceiveRequest adds stock to a key.
type ReceiveRequest struct {
	ItemID     string            `json:"item_id" validate:"required"`
	LocationID string            `json:"location_id" validate:"required"`
	Batch      string            `json:"batch"`
	Quantity   decimal.Decimal   `json:"quantity" validate:"dpos,dscale=4"`
	ExpiryDate *time.Time        `json:"expiry_date"`
	Reference  *domain.Reference `json:"reference"`
}

// AdjustRequest applies a signed correction to a key.
type AdjustRequest struct {
	ItemID      string          `json:"item_id" validate:"required"`
	LocationID  string          `json:"location_id" validate:"required"`
	Batch       string          `json:"batch"`
	Delta       decimal.Decimal `json:"delta" validate:"dnonzero,dscale=4"`
	Reason      string          `json:"reason" validate:"required,max=500"`
	ReferenceID string          `json:"reference_id"`
}

// AllocateRequest draws stock out of a location in FEFO order.
type AllocateRequest struct {
	ItemID       string              `json:"item_id" validate:"required"`
	LocationID   string              `json:"location_id" validate:"required"`
	Quantity     decimal.Decimal     `json:"quantity" validate:"dpos,dscale=4"`
	Batch        *string             `json:"batch"`
	MutationType domain.MutationType `json:"mutation_type" validate:"required,oneof=DELIVERY PRODUCTION_CONSUMPTION"`
	Reference    domain.Reference    `json:"reference"`
}

// ReserveRequest earmarks or releases stock of a key.
type ReserveRequest struct {
	ItemID     string          `json:"item_id" validate:"required"`
	LocationID string          `json:"location_id" validate:"required"`
	Batch      string          `json:"batch"`
	Quantity   decimal.Decimal `json:"quantity" validate:"dpos,dscale=4"`
}

// CreateDeliveryRequest opens a delivery order in PENDING.
type CreateDeliveryRequest struct {
	SourceLocationID string                `json:"source_location_id" validate:"required"`
	Destination      string                `json:"destination" validate:"required"`
	Lines            []domain.DeliveryLine `json:"lines" validate:"required,min=1,dive"`
}

// CreateReceiptRequest opens a goods receipt in PENDING.
type CreateReceiptRequest struct {
	LocationID string               `json:"location_id" validate:"required"`
	Supplier   string               `json:"supplier" validate:"required"`
	Lines      []domain.ReceiptLine `json:"lines" validate:"required,min=1,dive"`
}

// CreateWorkOrderRequest opens a work order in PLANNED.
type CreateWorkOrderRequest struct {
	RecipeID        string          `json:"recipe_id" validate:"required"`
	LocationID      string          `json:"location_id" validate:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" validate:"dpos,dscale=4"`
}

// RecordOutputRequest reports produced units of a work order.
type RecordOutputRequest struct {
	Quantity   decimal.Decimal `json:"quantity" validate:"dpos,dscale=4"`
	Batch      string          `json:"batch"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}
