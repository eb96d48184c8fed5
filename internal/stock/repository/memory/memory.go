// Package memory is an in-process implementation of the stock repositories.
// Transactions work on a copy of the state that replaces the live state only
// on commit, so a failed movement leaves nothing behind. One transaction runs
// at a time.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

type state struct {
	records    map[domain.StockKey]*domain.StockRecord
	keys       []domain.StockKey
	ledger     []domain.LedgerEntry
	seq        int64
	items      map[string]domain.Item
	locations  map[string]domain.Location
	recipes    map[string]domain.Recipe
	deliveries map[string]*domain.DeliveryOrder
	receipts   map[string]*domain.GoodsReceipt
	workOrders map[string]*domain.WorkOrder
	audit      []domain.AuditEvent
}

func newState() *state {
	return &state{
		records:    make(map[domain.StockKey]*domain.StockRecord),
		items:      make(map[string]domain.Item),
		locations:  make(map[string]domain.Location),
		recipes:    make(map[string]domain.Recipe),
		deliveries: make(map[string]*domain.DeliveryOrder),
		receipts:   make(map[string]*domain.GoodsReceipt),
		workOrders: make(map[string]*domain.WorkOrder),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, r := range s.records {
		cp := *r
		c.records[k] = &cp
	}
	c.keys = append([]domain.StockKey(nil), s.keys...)
	c.ledger = append([]domain.LedgerEntry(nil), s.ledger...)
	c.seq = s.seq
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.recipes {
		c.recipes[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = copyDelivery(v)
	}
	for k, v := range s.receipts {
		c.receipts[k] = copyReceipt(v)
	}
	for k, v := range s.workOrders {
		cp := *v
		c.workOrders[k] = &cp
	}
	c.audit = append([]domain.AuditEvent(nil), s.audit...)
	return c
}

// DB is the in-memory database. The zero value is not usable; call New.
type DB struct {
	mu        sync.Mutex
	st        *state
	now       func() time.Time
	conflicts int
	commits   int
}

// New returns an empty database.
func New() *DB {
	return &DB{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source used for created/updated stamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// InjectConflicts makes the next n transactions fail at commit with a
// retriable concurrency error, as a serializable datastore would.
func (db *DB) InjectConflicts(n int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.conflicts = n
}

// Commits returns the number of committed transactions.
func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// InTx implements repository.Transactor.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := db.st.clone()
	v := &view{state: func() *state { return work }, lock: noLock, now: db.now}

	if err := fn(ctx, v); err != nil {
		return err
	}
	if db.conflicts > 0 {
		db.conflicts--
		return errors.Concurrency(fmt.Errorf("could not serialize access due to concurrent update"))
	}

	db.st = work
	db.commits++
	return nil
}

func (db *DB) view() *view {
	return &view{
		state: func() *state { return db.st },
		lock: func() func() {
			db.mu.Lock()
			return db.mu.Unlock
		},
		now: db.now,
	}
}

// Stock implements repository.Store outside a transaction.
func (db *DB) Stock() repository.StockRepository { return db.view().Stock() }

// Ledger implements repository.Store outside a transaction.
func (db *DB) Ledger() repository.LedgerRepository { return db.view().Ledger() }

// Catalog implements repository.Store outside a transaction.
func (db *DB) Catalog() repository.CatalogRepository { return db.view().Catalog() }

// Deliveries implements repository.Store outside a transaction.
func (db *DB) Deliveries() repository.DeliveryRepository { return db.view().Deliveries() }

// Receipts implements repository.Store outside a transaction.
func (db *DB) Receipts() repository.ReceiptRepository { return db.view().Receipts() }

// WorkOrders implements repository.Store outside a transaction.
func (db *DB) WorkOrders() repository.WorkOrderRepository { return db.view().WorkOrders() }

// Audit implements repository.Store outside a transaction.
func (db *DB) Audit() repository.AuditRepository { return db.view().Audit() }

// AddItem seeds master data.
func (db *DB) AddItem(item domain.Item) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.items[item.ID] = item
}

// AddLocation seeds master data.
func (db *DB) AddLocation(loc domain.Location) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.st.locations[loc.ID] = loc
}

// AddRecipe seeds master data.
func (db *DB) AddRecipe(recipe domain.Recipe) {
	db.mu.Lock()
	defer db.mu.Unlock()
	recipe.Ingredients = append([]domain.RecipeIngredient(nil), recipe.Ingredients...)
	db.st.recipes[recipe.ID] = recipe
}

var (
	_ repository.Database = (*DB)(nil)
	_ repository.Store    = (*view)(nil)
)

func noLock() func() { return func() {} }

// view binds repositories to either the live state (autocommit reads) or a
// transaction's working copy.
type view struct {
	state func() *state
	lock  func() func()
	now   func() time.Time
}

func (v *view) Stock() repository.StockRepository { return stockRepo{v} }
func (v *view) Ledger() repository.LedgerRepository { return ledgerRepo{v} }
func (v *view) Catalog() repository.CatalogRepository { return catalogRepo{v} }
func (v *view) Deliveries() repository.DeliveryRepository { return deliveryRepo{v} }
func (v *view) Receipts() repository.ReceiptRepository { return receiptRepo{v} }
func (v *view) WorkOrders() repository.WorkOrderRepository { return workOrderRepo{v} }
func (v *view) Audit() repository.AuditRepository { return auditRepo{v} }
