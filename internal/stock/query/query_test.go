package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository/memory"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*memory.DB, *Service) {
	t.Helper()
	db := memory.New()
	db.AddItem(domain.Item{ID: "flour", SKU: "A-001", ReorderPoint: dec("10")})
	db.AddItem(domain.Item{ID: "sugar", SKU: "A-002", ReorderPoint: dec("20")})
	db.AddItem(domain.Item{ID: "salt", SKU: "A-003", ReorderPoint: dec("1")})
	db.AddItem(domain.Item{ID: "box", SKU: "B-001"})
	db.AddLocation(domain.Location{ID: "w1", Active: true})
	db.AddLocation(domain.Location{ID: "k1", Active: true})
	return db, New(db, logger.Nop()).WithClock(func() time.Time { return now })
}

func put(t *testing.T, db *memory.DB, item, loc, batch, qty string, expiry *time.Time) {
	t.Helper()
	_, err := db.Stock().ApplyDelta(context.Background(), domain.StockKey{ItemID: item, LocationID: loc, Batch: batch}, dec(qty), expiry)
	require.NoError(t, err)
}

func TestAvailability(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	put(t, db, "flour", "w1", "A", "5", nil)
	put(t, db, "flour", "w1", "B", "3", nil)
	put(t, db, "flour", "k1", "", "2", nil)
	_, err := db.Stock().AdjustReserved(ctx, domain.StockKey{ItemID: "flour", LocationID: "w1", Batch: "A"}, dec("4"))
	require.NoError(t, err)

	all, err := svc.Availability(ctx, "flour", nil)
	require.NoError(t, err)
	assert.True(t, all.Quantity.Equal(dec("10")))
	assert.True(t, all.Reserved.Equal(dec("4")))
	assert.True(t, all.Available.Equal(dec("6")))

	w1, err := svc.Availability(ctx, "flour", ptr("w1"))
	require.NoError(t, err)
	assert.True(t, w1.Available.Equal(dec("4")))

	again, err := svc.Availability(ctx, "flour", nil)
	require.NoError(t, err)
	assert.Equal(t, all, again, "reads are repeatable")

	_, err = svc.Availability(ctx, "ghost", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = svc.Availability(ctx, "", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestNeedsReorder(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	put(t, db, "flour", "w1", "", "10", nil)
	put(t, db, "sugar", "w1", "", "21", nil)

	reorder, err := svc.NeedsReorder(ctx, "flour")
	require.NoError(t, err)
	assert.True(t, reorder, "available equal to the reorder point triggers reorder")

	reorder, err = svc.NeedsReorder(ctx, "sugar")
	require.NoError(t, err)
	assert.False(t, reorder)
}

func TestLowStock_SortedByDeficit(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	put(t, db, "flour", "w1", "", "4", nil)
	put(t, db, "flour", "k1", "", "1", nil)
	put(t, db, "sugar", "w1", "", "2", nil)
	put(t, db, "salt", "w1", "", "5", nil)

	deficits, err := svc.LowStock(ctx, nil)
	require.NoError(t, err)
	require.Len(t, deficits, 2)

	assert.Equal(t, "sugar", deficits[0].Item.ID)
	assert.True(t, deficits[0].Deficit.Equal(dec("18")))
	assert.Equal(t, "flour", deficits[1].Item.ID)
	assert.True(t, deficits[1].Deficit.Equal(dec("5")))
	assert.True(t, deficits[1].TotalAvailable.Equal(dec("5")))
	require.Len(t, deficits[1].Locations, 2)
	assert.Equal(t, "k1", deficits[1].Locations[0].LocationID)

	atKitchen, err := svc.LowStock(ctx, ptr("k1"))
	require.NoError(t, err)
	require.Len(t, atKitchen, 3)
	assert.Equal(t, "sugar", atKitchen[0].Item.ID)
	assert.True(t, atKitchen[0].Deficit.Equal(dec("20")))
	assert.Empty(t, atKitchen[0].Locations)
}

func TestExpiringSoon_Window(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	put(t, db, "flour", "w1", "expired", "1", ptr(now.Add(-time.Hour)))
	put(t, db, "flour", "w1", "in-3d", "1", ptr(now.AddDate(0, 0, 3)))
	put(t, db, "flour", "w1", "in-1d", "1", ptr(now.AddDate(0, 0, 1)))
	put(t, db, "flour", "w1", "edge", "1", ptr(now.AddDate(0, 0, 7)))
	put(t, db, "flour", "w1", "later", "1", ptr(now.AddDate(0, 0, 8)))
	put(t, db, "flour", "w1", "undated", "1", nil)
	put(t, db, "sugar", "k1", "in-2d", "1", ptr(now.AddDate(0, 0, 2)))
	put(t, db, "sugar", "k1", "empty", "1", ptr(now.AddDate(0, 0, 2)))
	_, err := db.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "sugar", LocationID: "k1", Batch: "empty"}, dec("-1"), nil)
	require.NoError(t, err)

	recs, err := svc.ExpiringSoon(ctx, 7, nil)
	require.NoError(t, err)
	var batches []string
	for _, r := range recs {
		batches = append(batches, r.Batch)
	}
	assert.Equal(t, []string{"in-1d", "in-2d", "in-3d", "edge"}, batches)

	recs, err = svc.ExpiringSoon(ctx, 7, ptr("k1"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "in-2d", recs[0].Batch)

	_, err = svc.ExpiringSoon(ctx, -1, nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestReconcile(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	key := domain.StockKey{ItemID: "flour", LocationID: "w1"}

	put(t, db, "flour", "w1", "", "7", nil)
	require.NoError(t, db.Ledger().Append(ctx, &domain.LedgerEntry{
		ItemID: "flour", LocationID: "w1", Change: dec("7"), Balance: dec("7"), MutationType: domain.MutationReceipt,
	}))

	rec, err := svc.Reconcile(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.True(t, rec.Drift.IsZero())

	// a write that bypassed the ledger
	put(t, db, "flour", "w1", "", "2", nil)
	rec, err = svc.Reconcile(ctx, key)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.True(t, rec.Drift.Equal(dec("2")))

	_, err = svc.Reconcile(ctx, domain.StockKey{ItemID: "flour", LocationID: "k1"})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLedgerHistory_Paging(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Ledger().Append(ctx, &domain.LedgerEntry{
			ItemID: "flour", LocationID: "w1", Change: dec("1"), Balance: decimal.NewFromInt(int64(i + 1)), MutationType: domain.MutationReceipt,
		}))
	}

	page, err := svc.LedgerHistory(ctx, domain.LedgerFilter{ItemID: ptr("flour"), Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Balance.Equal(dec("2")))
	assert.Less(t, page[0].Seq, page[1].Seq)

	all, err := svc.LedgerHistory(ctx, domain.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = svc.LedgerHistory(ctx, domain.LedgerFilter{MutationType: ptr(domain.MutationType("TELEPORT"))})
	assert.ErrorIs(t, err, errors.ErrValidation)
}
