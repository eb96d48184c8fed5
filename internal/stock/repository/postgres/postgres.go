// Package postgres implements the stock repositories on PostgreSQL with
// sqlx. Movements run at READ COMMITTED and serialize on stock rows with
// SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/database"
)

// DB is the PostgreSQL repository.Database.
type DB struct {
	db        *database.DB
	isolation sql.IsolationLevel
}

// Option configures a DB.
type Option func(*DB)

// WithIsolation sets the isolation level of movement transactions.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(d *DB) { d.isolation = level }
}

// New wraps db.
func New(db *database.DB, opts ...Option) *DB {
	d := &DB{db: db, isolation: sql.LevelReadCommitted}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InTx implements repository.Transactor.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	opts := &sql.TxOptions{Isolation: d.isolation}
	return d.db.TransactionWithOptions(ctx, opts, func(tx *sqlx.Tx) error {
		return fn(ctx, &store{q: tx, inTx: true})
	})
}

func (d *DB) autocommit() *store { return &store{q: d.db.DB} }

// Stock implements repository.Store outside a transaction.
func (d *DB) Stock() repository.StockRepository { return d.autocommit().Stock() }

// Ledger implements repository.Store outside a transaction.
func (d *DB) Ledger() repository.LedgerRepository { return d.autocommit().Ledger() }

// Catalog implements repository.Store outside a transaction.
func (d *DB) Catalog() repository.CatalogRepository { return d.autocommit().Catalog() }

// Deliveries implements repository.Store outside a transaction.
func (d *DB) Deliveries() repository.DeliveryRepository { return d.autocommit().Deliveries() }

// Receipts implements repository.Store outside a transaction.
func (d *DB) Receipts() repository.ReceiptRepository { return d.autocommit().Receipts() }

// WorkOrders implements repository.Store outside a transaction.
func (d *DB) WorkOrders() repository.WorkOrderRepository { return d.autocommit().WorkOrders() }

// Audit implements repository.Store outside a transaction.
func (d *DB) Audit() repository.AuditRepository { return d.autocommit().Audit() }

var (
	_ repository.Database = (*DB)(nil)
	_ repository.Store    = (*store)(nil)
)

// store binds the repositories to a transaction or to the pool. Row locks
// are only taken inside a transaction.
type store struct {
	q    sqlx.ExtContext
	inTx bool
}

func (s *store) Stock() repository.StockRepository { return stockRepo{s} }
func (s *store) Ledger() repository.LedgerRepository { return ledgerRepo{s} }
func (s *store) Catalog() repository.CatalogRepository { return catalogRepo{s} }
func (s *store) Deliveries() repository.DeliveryRepository { return deliveryRepo{s} }
func (s *store) Receipts() repository.ReceiptRepository { return receiptRepo{s} }
func (s *store) WorkOrders() repository.WorkOrderRepository { return workOrderRepo{s} }
func (s *store) Audit() repository.AuditRepository { return auditRepo{s} }

func (s *store) lockClause() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}
