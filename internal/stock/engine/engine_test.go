package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository/memory"
	"github.com/stockledger/stockledger-backend/internal/stock/sequence"
	"github.com/stockledger/stockledger-backend/pkg/actor"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fakeCounter struct {
	mu sync.Mutex
	n  map[string]int64
}

func (c *fakeCounter) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int64)
	}
	c.n[prefix]++
	return sequence.Format(prefix, at, c.n[prefix]), nil
}

type fixture struct {
	db      *memory.DB
	engine  *Engine
	metrics *metrics.Metrics
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := memory.New()
	tick := testNow
	db.SetClock(func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	})

	db.AddItem(domain.Item{ID: "X", SKU: "SKU-X", Name: "Flour", Unit: "kg", ReorderPoint: dec("5")})
	db.AddItem(domain.Item{ID: "Y", SKU: "SKU-Y", Name: "Sugar", Unit: "kg", ReorderPoint: dec("5")})
	db.AddItem(domain.Item{ID: "P", SKU: "SKU-P", Name: "Cake", Unit: "pcs"})
	db.AddLocation(domain.Location{ID: "L", Name: "Central kitchen", Type: domain.LocationKitchen, Active: true})
	db.AddLocation(domain.Location{ID: "W", Name: "Main warehouse", Type: domain.LocationWarehouse, Active: true})
	db.AddLocation(domain.Location{ID: "OFF", Name: "Closed depot", Type: domain.LocationWarehouse, Active: false})
	db.AddRecipe(domain.Recipe{
		ID:           "R",
		OutputItemID: "P",
		Yield:        dec("10"),
		Ingredients: []domain.RecipeIngredient{
			{ItemID: "X", Quantity: dec("2")},
			{ItemID: "Y", Quantity: dec("5")},
		},
	})

	m := metrics.New()
	e := New(db, &fakeCounter{}, logger.Nop(),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
	)

	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "user-1", Email: "clerk@example.com"})
	return &fixture{db: db, engine: e, metrics: m, ctx: ctx}
}

func (f *fixture) receive(t *testing.T, item, loc, batch, qty string, expiry *time.Time) {
	t.Helper()
	_, err := f.engine.ReceiveStock(f.ctx, ReceiveRequest{
		ItemID: item, LocationID: loc, Batch: batch, Quantity: dec(qty), ExpiryDate: expiry,
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, item, loc, batch string) decimal.Decimal {
	t.Helper()
	rec, err := f.db.Stock().Get(f.ctx, domain.StockKey{ItemID: item, LocationID: loc, Batch: batch})
	require.NoError(t, err)
	return rec.Quantity
}

func (f *fixture) ledger(t *testing.T) []domain.LedgerEntry {
	t.Helper()
	entries, err := f.db.Ledger().List(f.ctx, domain.LedgerFilter{})
	require.NoError(t, err)
	return entries
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	events, err := f.db.Audit().ClaimUnpublished(f.ctx, 0)
	require.NoError(t, err)
	return len(events)
}

// assertLedgerMatchesStock checks both record invariants for every key.
func (f *fixture) assertLedgerMatchesStock(t *testing.T) {
	t.Helper()
	recs, err := f.db.Stock().List(f.ctx, domain.StockFilter{})
	require.NoError(t, err)
	for _, rec := range recs {
		sum, err := f.db.Ledger().Sum(f.ctx, rec.Key())
		require.NoError(t, err)
		assert.True(t, sum.Equal(rec.Quantity), "ledger sum %s != quantity %s for %+v", sum, rec.Quantity, rec.Key())
		assert.False(t, rec.Reserved.IsNegative(), "reserved below zero for %+v", rec.Key())
		assert.True(t, rec.Quantity.GreaterThanOrEqual(rec.Reserved), "reserved above quantity for %+v", rec.Key())
	}
}

func seedTwoBatches(t *testing.T, f *fixture) {
	t.Helper()
	f.receive(t, "X", "L", "A", "5", date(2024, 1, 1))
	f.receive(t, "X", "L", "B", "10", date(2024, 2, 1))
}

func TestReceiveStock_CreatesRecordAndLedgerEntry(t *testing.T) {
	f := newFixture(t)

	rec, err := f.engine.ReceiveStock(f.ctx, ReceiveRequest{
		ItemID: "X", LocationID: "L", Batch: "A", Quantity: dec("5"), ExpiryDate: date(2024, 1, 1),
	})
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec("5")))
	assert.Equal(t, *date(2024, 1, 1), *rec.ExpiryDate)

	rec, err = f.engine.ReceiveStock(f.ctx, ReceiveRequest{ItemID: "X", LocationID: "L", Batch: "A", Quantity: dec("2.5")})
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec("7.5")))

	entries := f.ledger(t)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.MutationReceipt, entries[1].MutationType)
	assert.True(t, entries[1].Change.Equal(dec("2.5")))
	assert.True(t, entries[1].Balance.Equal(dec("7.5")))
	assert.Equal(t, domain.RefManualReceipt, entries[1].ReferenceType)
	assert.Equal(t, "user-1", entries[1].Actor)
	assert.Equal(t, 2, f.auditCount(t))
	f.assertLedgerMatchesStock(t)
}

func TestReceiveStock_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  ReceiveRequest
		want error
	}{
		{"zero quantity", ReceiveRequest{ItemID: "X", LocationID: "L", Quantity: decimal.Zero}, errors.ErrValidation},
		{"missing item", ReceiveRequest{LocationID: "L", Quantity: dec("1")}, errors.ErrValidation},
		{"beyond four decimal places", ReceiveRequest{ItemID: "X", LocationID: "L", Quantity: dec("0.00005")}, errors.ErrValidation},
		{"unknown item", ReceiveRequest{ItemID: "nope", LocationID: "L", Quantity: dec("1")}, errors.ErrNotFound},
		{"unknown location", ReceiveRequest{ItemID: "X", LocationID: "nope", Quantity: dec("1")}, errors.ErrNotFound},
		{"inactive location", ReceiveRequest{ItemID: "X", LocationID: "OFF", Quantity: dec("1")}, errors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ReceiveStock(f.ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.ledger(t))
	assert.Zero(t, f.auditCount(t))
}

func TestAllocateFEFO_SpansBatchesInExpiryOrder(t *testing.T) {
	f := newFixture(t)
	seedTwoBatches(t, f)

	entries, err := f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("8"),
		MutationType: domain.MutationDelivery,
		Reference:    domain.Reference{Type: domain.RefDeliveryOrder, ID: "DO-1"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "A", entries[0].Batch)
	assert.True(t, entries[0].Change.Equal(dec("-5")))
	assert.True(t, entries[0].Balance.IsZero())
	assert.Equal(t, "B", entries[1].Batch)
	assert.True(t, entries[1].Change.Equal(dec("-3")))
	assert.True(t, entries[1].Balance.Equal(dec("7")))
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	assert.True(t, f.quantity(t, "X", "L", "A").IsZero())
	assert.True(t, f.quantity(t, "X", "L", "B").Equal(dec("7")))
	f.assertLedgerMatchesStock(t)
}

func TestAllocateFEFO_ConsumesOnlyFirstBatchWhenItCovers(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "X", "L", "C", "6", date(2024, 3, 1))
	f.receive(t, "X", "L", "A", "4", date(2024, 1, 1))
	f.receive(t, "X", "L", "B", "5", date(2024, 2, 1))
	f.receive(t, "X", "L", "", "9", nil)

	entries, err := f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("3"),
		MutationType: domain.MutationProductionConsumption,
		Reference:    domain.Reference{Type: domain.RefWorkOrder, ID: "WO-1"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Batch)

	entries, err = f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("19"),
		MutationType: domain.MutationProductionConsumption,
		Reference:    domain.Reference{Type: domain.RefWorkOrder, ID: "WO-1"},
	})
	require.NoError(t, err)

	var batches []string
	total := decimal.Zero
	for _, e := range entries {
		batches = append(batches, e.Batch)
		total = total.Sub(e.Change)
	}
	assert.Equal(t, []string{"A", "B", "C", ""}, batches, "undated stock is consumed last")
	assert.True(t, total.Equal(dec("19")))
	assert.True(t, f.quantity(t, "X", "L", "").Equal(dec("6")))
	f.assertLedgerMatchesStock(t)
}

func TestAllocateFEFO_ShortfallWritesNothing(t *testing.T) {
	f := newFixture(t)
	seedTwoBatches(t, f)
	before := f.ledger(t)
	audits := f.auditCount(t)

	_, err := f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("20"),
		MutationType: domain.MutationDelivery,
		Reference:    domain.Reference{Type: domain.RefDeliveryOrder, ID: "DO-1"},
	})
	require.ErrorIs(t, err, errors.ErrInsufficientStock)

	ise, ok := errors.AsInsufficientStock(err)
	require.True(t, ok)
	assert.True(t, ise.Requested.Equal(dec("20")))
	assert.True(t, ise.Available.Equal(dec("15")))
	assert.True(t, ise.Shortfall().Equal(dec("5")))

	assert.True(t, f.quantity(t, "X", "L", "A").Equal(dec("5")))
	assert.True(t, f.quantity(t, "X", "L", "B").Equal(dec("10")))
	assert.Equal(t, before, f.ledger(t))
	assert.Equal(t, audits, f.auditCount(t))
}

func TestAllocateFEFO_BatchFilter(t *testing.T) {
	f := newFixture(t)
	seedTwoBatches(t, f)

	batch := "B"
	entries, err := f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("4"), Batch: &batch,
		MutationType: domain.MutationDelivery,
		Reference:    domain.Reference{Type: domain.RefDeliveryOrder, ID: "DO-1"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Batch)
	assert.True(t, f.quantity(t, "X", "L", "A").Equal(dec("5")))
}

func TestAllocateFEFO_RejectsInboundMutationType(t *testing.T) {
	f := newFixture(t)
	seedTwoBatches(t, f)

	_, err := f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("1"),
		MutationType: domain.MutationReceipt,
		Reference:    domain.Reference{Type: domain.RefDeliveryOrder, ID: "DO-1"},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestAdjustStock_RejectsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "X", "L", "", "2", nil)

	_, err := f.engine.AdjustStock(f.ctx, AdjustRequest{
		ItemID: "X", LocationID: "L", Delta: dec("-3"), Reason: "cycle count",
	})
	require.ErrorIs(t, err, errors.ErrInsufficientStock)

	assert.True(t, f.quantity(t, "X", "L", "").Equal(dec("2")))
	assert.Len(t, f.ledger(t), 1)
}

func TestAdjustStock_RejectsSubPrecisionDelta(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "X", "L", "", "1", nil)

	_, err := f.engine.AdjustStock(f.ctx, AdjustRequest{
		ItemID: "X", LocationID: "L", Delta: dec("-0.00005"), Reason: "rounding",
	})
	require.ErrorIs(t, err, errors.ErrValidation)

	assert.True(t, f.quantity(t, "X", "L", "").Equal(dec("1")))
	assert.Len(t, f.ledger(t), 1)
	f.assertLedgerMatchesStock(t)
}

func TestAdjustStock_WritesOneAdjustmentEntry(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "X", "L", "", "2", nil)

	rec, err := f.engine.AdjustStock(f.ctx, AdjustRequest{
		ItemID: "X", LocationID: "L", Delta: dec("-1.5"), Reason: "spillage",
	})
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec("0.5")))

	entries := f.ledger(t)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.MutationAdjustment, entries[1].MutationType)
	assert.Equal(t, domain.RefAdjustment, entries[1].ReferenceType)
	assert.Equal(t, "spillage", entries[1].Reason)
	f.assertLedgerMatchesStock(t)

	_, err = f.engine.AdjustStock(f.ctx, AdjustRequest{ItemID: "X", LocationID: "L", Delta: decimal.Zero, Reason: "noop"})
	assert.ErrorIs(t, err, errors.ErrValidation)
	_, err = f.engine.AdjustStock(f.ctx, AdjustRequest{ItemID: "X", LocationID: "L", Delta: dec("1")})
	assert.ErrorIs(t, err, errors.ErrValidation, "reason is required")
}

func TestReservations(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "X", "L", "", "5", nil)

	rec, err := f.engine.Reserve(f.ctx, ReserveRequest{ItemID: "X", LocationID: "L", Quantity: dec("3")})
	require.NoError(t, err)
	assert.True(t, rec.Reserved.Equal(dec("3")))
	assert.Len(t, f.ledger(t), 1, "reservations write no ledger entry")

	_, err = f.engine.Reserve(f.ctx, ReserveRequest{ItemID: "X", LocationID: "L", Quantity: dec("3")})
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)

	_, err = f.engine.AllocateFEFO(f.ctx, AllocateRequest{
		ItemID: "X", LocationID: "L", Quantity: dec("3"),
		MutationType: domain.MutationDelivery,
		Reference:    domain.Reference{Type: domain.RefDeliveryOrder, ID: "DO-1"},
	})
	ise, ok := errors.AsInsufficientStock(err)
	require.True(t, ok)
	assert.True(t, ise.Available.Equal(dec("2")), "reserved stock is not allocatable")

	_, err = f.engine.AdjustStock(f.ctx, AdjustRequest{ItemID: "X", LocationID: "L", Delta: dec("-3"), Reason: "damage"})
	assert.ErrorIs(t, err, errors.ErrInsufficientStock, "adjustment may not cut into reserved stock")

	_, err = f.engine.Unreserve(f.ctx, ReserveRequest{ItemID: "X", LocationID: "L", Quantity: dec("4")})
	assert.ErrorIs(t, err, errors.ErrValidation)

	rec, err = f.engine.Unreserve(f.ctx, ReserveRequest{ItemID: "X", LocationID: "L", Quantity: dec("3")})
	require.NoError(t, err)
	assert.True(t, rec.Reserved.IsZero())

	// one receipt and two reservation changes
	assert.Equal(t, 3, f.auditCount(t))
	f.assertLedgerMatchesStock(t)
}

func TestReserve_UnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Reserve(f.ctx, ReserveRequest{ItemID: "X", LocationID: "L", Quantity: dec("1")})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRun_RetriesConcurrencyConflicts(t *testing.T) {
	f := newFixture(t)
	f.db.InjectConflicts(2)

	rec, err := f.engine.ReceiveStock(f.ctx, ReceiveRequest{ItemID: "X", LocationID: "L", Quantity: dec("4")})
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec("4")))
	assert.Equal(t, 1, f.db.Commits())
	assert.Len(t, f.ledger(t), 1)
}

func TestRun_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	f.db.InjectConflicts(10)

	_, err := f.engine.ReceiveStock(f.ctx, ReceiveRequest{ItemID: "X", LocationID: "L", Quantity: dec("4")})
	require.ErrorIs(t, err, errors.ErrConcurrency)
	assert.Zero(t, f.db.Commits())
}

func TestRetry_DomainErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxRetries: 5, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.InsufficientStock("X", "L", dec("2"), dec("1"))
	})
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Retry(context.Background(), RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.Concurrency(fmt.Errorf("deadlock"))
	})
	assert.ErrorIs(t, err, errors.ErrConcurrency)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryPolicy(), func(ctx context.Context) error {
		return errors.Concurrency(fmt.Errorf("conflict"))
	})
	assert.Error(t, err)
}

func TestActorDefaultsToSystem(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ReceiveStock(context.Background(), ReceiveRequest{ItemID: "X", LocationID: "L", Quantity: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, actor.SystemID, f.ledger(t)[0].Actor)
}
