package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// stockTables are emptied between tests, children first.
var stockTables = []string{
	"audit_outbox", "ledger_entries", "stock_records",
	"delivery_lines", "delivery_orders", "receipt_lines", "goods_receipts",
	"work_orders", "recipe_ingredients", "recipes", "locations", "items",
	"document_sequences",
}

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *Fixtures
	Logger    *logger.Logger
}

// NewIntegrationSuite returns a suite bound to the shared, migrated container.
//
// Usage:
//
//	func TestLedger(t *testing.T) {
//	    testutil.SkipIfShort(t)
//	    suite := testutil.NewIntegrationSuite(t)
//	    item := suite.Fixtures.Item(t, "5")
//	    // ...
//	}
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	t.Helper()
	ctx := context.Background()

	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	s := &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        database.Wrap(db, logger.Nop()),
		Fixtures:  NewFixtures(db),
		Logger:    logger.Nop(),
	}
	s.Reset(t)
	return s
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Reset truncates every stock table.
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	for _, table := range stockTables {
		if _, err := s.RawDB.Exec("TRUNCATE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
