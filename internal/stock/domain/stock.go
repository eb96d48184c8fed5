// Package domain holds the stock ledger types shared by the engine, the
// query layer and the repositories.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifies one stock record. An empty Batch means the stock is
// not tracked by lot.
type StockKey struct {
	ItemID     string `json:"item_id" db:"item_id"`
	LocationID string `json:"location_id" db:"location_id"`
	Batch      string `json:"batch,omitempty" db:"batch"`
}

// StockRecord is the on-hand balance of one key.
type StockRecord struct {
	ID         string          `json:"id" db:"id"`
	ItemID     string          `json:"item_id" db:"item_id"`
	LocationID string          `json:"location_id" db:"location_id"`
	Batch      string          `json:"batch,omitempty" db:"batch"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	Reserved   decimal.Decimal `json:"reserved" db:"reserved"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Key returns the record's identity.
func (r *StockRecord) Key() StockKey {
	return StockKey{ItemID: r.ItemID, LocationID: r.LocationID, Batch: r.Batch}
}

// Available is the part of the on-hand quantity not earmarked by a reservation.
func (r *StockRecord) Available() decimal.Decimal {
	return r.Quantity.Sub(r.Reserved)
}

// ExpiresBefore orders records for FEFO: dated records first by expiry,
// undated records last, ties broken by creation time.
func (r *StockRecord) ExpiresBefore(other *StockRecord) bool {
	switch {
	case r.ExpiryDate != nil && other.ExpiryDate == nil:
		return true
	case r.ExpiryDate == nil && other.ExpiryDate != nil:
		return false
	case r.ExpiryDate != nil && other.ExpiryDate != nil && !r.ExpiryDate.Equal(*other.ExpiryDate):
		return r.ExpiryDate.Before(*other.ExpiryDate)
	default:
		return r.CreatedAt.Before(other.CreatedAt)
	}
}

// StockFilter narrows stock record listings. Nil fields do not filter.
type StockFilter struct {
	ItemID        *string
	LocationID    *string
	Batch         *string
	PositiveOnly  bool
	ExpiresAfter  *time.Time
	ExpiresBefore *time.Time
}

// Availability is the summed balance of the records matching a query.
type Availability struct {
	ItemID     string          `json:"item_id"`
	LocationID *string         `json:"location_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reserved   decimal.Decimal `json:"reserved"`
	Available  decimal.Decimal `json:"available"`
}

// LocationBalance is one location's share of an item's availability.
type LocationBalance struct {
	LocationID string          `json:"location_id"`
	Available  decimal.Decimal `json:"available"`
}

// ItemDeficit reports an item at or under its reorder point.
type ItemDeficit struct {
	Item           Item              `json:"item"`
	TotalAvailable decimal.Decimal   `json:"total_available"`
	Deficit        decimal.Decimal   `json:"deficit"`
	Locations      []LocationBalance `json:"locations"`
}
