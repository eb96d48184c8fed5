// Package repository declares the storage ports of the stock ledger. The
// movement engine is written against these interfaces only; postgres and
// memory provide the implementations.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

// StockRepository owns the StockRecord table.
type StockRepository interface {
	// Get is a point lookup. Returns a NOT_FOUND error for an unknown key.
	Get(ctx context.Context, key domain.StockKey) (*domain.StockRecord, error)

	// ApplyDelta locks the row for key, creating a zero row first when the
	// delta is positive, and persists quantity+delta. It fails with an
	// insufficient stock error when the result would be negative or below
	// the reserved quantity. A non-nil expiry is recorded on rows that have
	// none yet.
	ApplyDelta(ctx context.Context, key domain.StockKey, delta decimal.Decimal, expiry *time.Time) (*domain.StockRecord, error)

	// AdjustReserved locks the row for key and adds delta to its reserved
	// quantity. Raising it past the available quantity is an insufficient
	// stock error; lowering it below zero is a validation error.
	AdjustReserved(ctx context.Context, key domain.StockKey, delta decimal.Decimal) (*domain.StockRecord, error)

	// ListEligible locks and returns the FEFO candidates of an item at a
	// location ordered by expiry ascending, undated last, then creation.
	ListEligible(ctx context.Context, itemID, locationID string, batch *string) ([]domain.StockRecord, error)

	// List returns records matching filter without locking.
	List(ctx context.Context, filter domain.StockFilter) ([]domain.StockRecord, error)
}

// LedgerRepository is the append-only movement log.
type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) error
	List(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error)
	Sum(ctx context.Context, key domain.StockKey) (decimal.Decimal, error)
}

// CatalogRepository reads master data owned by other services.
type CatalogRepository interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
}

// DeliveryRepository persists delivery orders.
type DeliveryRepository interface {
	Create(ctx context.Context, order *domain.DeliveryOrder) error
	// Get loads an order with its lines; forUpdate locks the header row.
	Get(ctx context.Context, id string, forUpdate bool) (*domain.DeliveryOrder, error)
	UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
}

// ReceiptRepository persists goods receipts.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *domain.GoodsReceipt) error
	Get(ctx context.Context, id string, forUpdate bool) (*domain.GoodsReceipt, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReceiptStatus, qcNotes string) error
}

// WorkOrderRepository persists production work orders.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *domain.WorkOrder) error
	Get(ctx context.Context, id string, forUpdate bool) (*domain.WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, status domain.WorkOrderStatus) error
	AddProduced(ctx context.Context, id string, qty decimal.Decimal) error
}

// AuditRepository is the transactional outbox of audit events.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	// ClaimUnpublished locks up to limit unpublished events, skipping rows
	// another relay holds.
	ClaimUnpublished(ctx context.Context, limit int) ([]domain.AuditEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Store groups the repositories bound to one unit of work.
type Store interface {
	Stock() StockRepository
	Ledger() LedgerRepository
	Catalog() CatalogRepository
	Deliveries() DeliveryRepository
	Receipts() ReceiptRepository
	WorkOrders() WorkOrderRepository
	Audit() AuditRepository
}

// Transactor runs fn inside one transaction. The transaction commits when
// fn returns nil and rolls back on any error or panic.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Database is a Store for reads outside a transaction that can also open
// transactions.
type Database interface {
	Store
	Transactor
}
