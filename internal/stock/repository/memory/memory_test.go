package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/repository"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestApplyDelta_CreatesRowOnPositiveDelta(t *testing.T) {
	db := New()
	ctx := context.Background()
	key := domain.StockKey{ItemID: "x", LocationID: "l", Batch: "A"}
	exp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := db.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		rec, err := s.Stock().ApplyDelta(ctx, key, dec(5), &exp)
		require.NoError(t, err)
		assert.True(t, rec.Quantity.Equal(dec(5)))
		assert.Equal(t, exp, *rec.ExpiryDate)
		return nil
	})
	require.NoError(t, err)

	rec, err := db.Stock().Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec(5)))
}

func TestApplyDelta_NegativeGuard(t *testing.T) {
	db := New()
	ctx := context.Background()
	key := domain.StockKey{ItemID: "x", LocationID: "l"}

	_, err := db.Stock().ApplyDelta(ctx, key, dec(-1), nil)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)

	_, err = db.Stock().ApplyDelta(ctx, key, dec(2), nil)
	require.NoError(t, err)

	_, err = db.Stock().ApplyDelta(ctx, key, dec(-3), nil)
	ise, ok := errors.AsInsufficientStock(err)
	require.True(t, ok)
	assert.True(t, ise.Shortfall().Equal(dec(1)))

	_, err = db.Stock().AdjustReserved(ctx, key, dec(3))
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)
	_, err = db.Stock().AdjustReserved(ctx, key, dec(2))
	require.NoError(t, err)
	_, err = db.Stock().ApplyDelta(ctx, key, dec(-1), nil)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock, "reserved stock cannot be removed")
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := New()
	ctx := context.Background()
	key := domain.StockKey{ItemID: "x", LocationID: "l"}

	boom := fmt.Errorf("boom")
	err := db.InTx(ctx, func(ctx context.Context, s repository.Store) error {
		if _, err := s.Stock().ApplyDelta(ctx, key, dec(10), nil); err != nil {
			return err
		}
		if err := s.Ledger().Append(ctx, &domain.LedgerEntry{ItemID: "x", LocationID: "l", Change: dec(10), Balance: dec(10)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = db.Stock().Get(ctx, key)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	entries, err := db.Ledger().List(ctx, domain.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 0, db.Commits())
}

func TestInTx_InjectedConflict(t *testing.T) {
	db := New()
	db.InjectConflicts(1)
	ctx := context.Background()

	op := func(ctx context.Context, s repository.Store) error {
		_, err := s.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "x", LocationID: "l"}, dec(1), nil)
		return err
	}

	err := db.InTx(ctx, op)
	assert.True(t, errors.IsRetriable(err))
	require.NoError(t, db.InTx(ctx, op))

	rec, err := db.Stock().Get(ctx, domain.StockKey{ItemID: "x", LocationID: "l"})
	require.NoError(t, err)
	assert.True(t, rec.Quantity.Equal(dec(1)))
}

func TestListEligible_FEFOOrder(t *testing.T) {
	db := New()
	ctx := context.Background()
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, _ = db.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "x", LocationID: "l", Batch: "undated"}, dec(1), nil)
	_, _ = db.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "x", LocationID: "l", Batch: "B"}, dec(10), &feb)
	_, _ = db.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "x", LocationID: "l", Batch: "A"}, dec(5), &jan)
	_, _ = db.Stock().ApplyDelta(ctx, domain.StockKey{ItemID: "x", LocationID: "other", Batch: "A"}, dec(5), &jan)
	empty := domain.StockKey{ItemID: "x", LocationID: "l", Batch: "empty"}
	_, _ = db.Stock().ApplyDelta(ctx, empty, dec(1), &jan)
	_, _ = db.Stock().ApplyDelta(ctx, empty, dec(-1), nil)

	recs, err := db.Stock().ListEligible(ctx, "x", "l", nil)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "A", recs[0].Batch)
	assert.Equal(t, "B", recs[1].Batch)
	assert.Equal(t, "undated", recs[2].Batch)

	b := "B"
	recs, err = db.Stock().ListEligible(ctx, "x", "l", &b)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "B", recs[0].Batch)
}

func TestLedger_SeqAndSum(t *testing.T) {
	db := New()
	ctx := context.Background()
	key := domain.StockKey{ItemID: "x", LocationID: "l"}

	for _, c := range []int64{5, -2, 4} {
		e := &domain.LedgerEntry{ItemID: key.ItemID, LocationID: key.LocationID, Change: dec(c)}
		require.NoError(t, db.Ledger().Append(ctx, e))
	}

	entries, err := db.Ledger().List(ctx, domain.LedgerFilter{ItemID: &key.ItemID, Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Seq)

	sum, err := db.Ledger().Sum(ctx, key)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec(7)))
}

func TestAudit_ClaimAndMark(t *testing.T) {
	db := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Audit().Append(ctx, &domain.AuditEvent{Action: domain.ActionAdjust}))
	}

	claimed, err := db.Audit().ClaimUnpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.NoError(t, db.Audit().MarkPublished(ctx, []string{claimed[0].ID, claimed[1].ID}, time.Now()))

	rest, err := db.Audit().ClaimUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestDocuments_DuplicateNumber(t *testing.T) {
	db := New()
	ctx := context.Background()

	require.NoError(t, db.Deliveries().Create(ctx, &domain.DeliveryOrder{Number: "DO-202401-0001", Status: domain.DeliveryPending}))
	err := db.Deliveries().Create(ctx, &domain.DeliveryOrder{Number: "DO-202401-0001", Status: domain.DeliveryPending})
	assert.ErrorIs(t, err, errors.ErrConflict)
}
