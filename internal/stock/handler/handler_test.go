package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/engine"
	"github.com/stockledger/stockledger-backend/internal/stock/handler"
	"github.com/stockledger/stockledger-backend/internal/stock/query"
	"github.com/stockledger/stockledger-backend/internal/stock/repository/memory"
	"github.com/stockledger/stockledger-backend/internal/stock/sequence"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu sync.Mutex
	n  int64
}

func (c *counter) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return sequence.Format(prefix, at, c.n), nil
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
	Meta    *httputil.Meta      `json:"meta"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	db := memory.New()
	db.AddItem(domain.Item{ID: "flour", SKU: "F-1", Name: "Flour", Unit: "kg", ReorderPoint: decimal.NewFromInt(10)})
	db.AddLocation(domain.Location{ID: "k1", Name: "Kitchen", Type: domain.LocationKitchen, Active: true})

	log := logger.Nop()
	eng := engine.New(db, &counter{}, log)
	q := query.New(db, log)

	r := chi.NewRouter()
	r.Use(httputil.Actor)
	r.Route("/api/v1/stock", func(r chi.Router) {
		handler.Mount(r, handler.NewStockHandler(eng, q, 30, log), handler.NewDocumentHandler(eng, log))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := testutil.NewHTTPRequest(method, path, body)
	testutil.WithUserHeaders(req, "user-42", "cook@example.com")
	rr := testutil.ExecuteRequest(h, req)

	var env envelope
	testutil.ParseJSONBody(t, rr, &env)
	return rr, env
}

func receive(t *testing.T, h http.Handler, batch, qty, expiry string) {
	t.Helper()
	body := map[string]interface{}{
		"item_id":     "flour",
		"location_id": "k1",
		"batch":       batch,
		"quantity":    qty,
	}
	if expiry != "" {
		body["expiry_date"] = expiry
	}
	rr, _ := do(t, h, http.MethodPost, "/api/v1/stock/receipts", body)
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

func TestReceiveAndAvailability(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "A", "5", "2024-01-01T00:00:00Z")
	receive(t, h, "B", "10", "2024-02-01T00:00:00Z")

	rr, env := do(t, h, http.MethodGet, "/api/v1/stock/availability?item_id=flour&location_id=k1", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var avail domain.Availability
	require.NoError(t, json.Unmarshal(env.Data, &avail))
	assert.True(t, avail.Available.Equal(decimal.NewFromInt(15)))
}

func TestAllocate_FEFOAndShortfall(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "A", "5", "2024-01-01T00:00:00Z")
	receive(t, h, "B", "10", "2024-02-01T00:00:00Z")

	alloc := func(qty string) (*httptest.ResponseRecorder, envelope) {
		return do(t, h, http.MethodPost, "/api/v1/stock/allocations", map[string]interface{}{
			"item_id":       "flour",
			"location_id":   "k1",
			"quantity":      qty,
			"mutation_type": "DELIVERY",
			"reference":     map[string]string{"type": "DELIVERY_ORDER", "id": "do-1"},
		})
	}

	rr, env := alloc("8")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var entries []domain.LedgerEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Batch)
	assert.Equal(t, "user-42", entries[0].Actor)

	rr, env = alloc("20")
	testutil.AssertStatus(t, rr, http.StatusConflict)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(t, "7", env.Error.Details["available"])
	assert.Equal(t, "13", env.Error.Details["shortfall"])
}

func TestReceive_RejectsInvalidBody(t *testing.T) {
	h := newRouter(t)

	rr, env := do(t, h, http.MethodPost, "/api/v1/stock/receipts", map[string]interface{}{
		"item_id":     "flour",
		"location_id": "k1",
		"quantity":    "0",
	})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rr, env = do(t, h, http.MethodPost, "/api/v1/stock/receipts", map[string]interface{}{
		"item_id": "flour",
		"colour":  "white",
	})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestDeliveryRoutes(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "", "10", "")

	rr, env := do(t, h, http.MethodPost, "/api/v1/stock/deliveries", map[string]interface{}{
		"source_location_id": "k1",
		"destination":        "Outlet",
		"lines":              []map[string]interface{}{{"item_id": "flour", "quantity": "4"}},
	})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var order domain.DeliveryOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, domain.DeliveryPending, order.Status)

	base := "/api/v1/stock/deliveries/" + order.ID
	rr, _ = do(t, h, http.MethodPost, base+"/confirm", nil)
	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertBodyContains(t, rr, "INVALID_STATE_TRANSITION")

	rr, _ = do(t, h, http.MethodPost, base+"/dispatch", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr, env = do(t, h, http.MethodPost, base+"/confirm", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var result struct {
		Document domain.DeliveryOrder `json:"document"`
		Entries  []domain.LedgerEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, domain.DeliveryDelivered, result.Document.Status)
	require.Len(t, result.Entries, 1)
	assert.True(t, result.Entries[0].Change.Equal(decimal.NewFromInt(-4)))

	rr, _ = do(t, h, http.MethodGet, "/api/v1/stock/deliveries/missing", nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestLedgerAndReconcile(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "A", "5", "")
	receive(t, h, "A", "2", "")

	rr, env := do(t, h, http.MethodGet, "/api/v1/stock/ledger?item_id=flour&limit=1", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)
	assert.Equal(t, 1, env.Meta.Limit)

	rr, _ = do(t, h, http.MethodGet, "/api/v1/stock/ledger?mutation_type=STOLEN", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr, env = do(t, h, http.MethodGet, "/api/v1/stock/reconcile?item_id=flour&location_id=k1&batch=A", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var rec domain.Reconciliation
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.True(t, rec.LedgerSum.Equal(decimal.NewFromInt(7)))

	rr, _ = do(t, h, http.MethodGet, "/api/v1/stock/reconcile?item_id=flour", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestReorderAndLowStock(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "", "4", "")

	rr, env := do(t, h, http.MethodGet, "/api/v1/stock/items/flour/reorder", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var reorder struct {
		NeedsReorder bool `json:"needs_reorder"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reorder))
	assert.True(t, reorder.NeedsReorder)

	rr, env = do(t, h, http.MethodGet, "/api/v1/stock/low-stock", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, 1, env.Meta.Count)

	rr, _ = do(t, h, http.MethodGet, "/api/v1/stock/expiring?days=abc", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestReservations(t *testing.T) {
	h := newRouter(t)
	receive(t, h, "A", "10", "")

	body := func(qty string) map[string]interface{} {
		return map[string]interface{}{"item_id": "flour", "location_id": "k1", "batch": "A", "quantity": qty}
	}

	rr, env := do(t, h, http.MethodPost, "/api/v1/stock/reservations", body("6"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var rec domain.StockRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.True(t, rec.Reserved.Equal(decimal.NewFromInt(6)))

	rr, env = do(t, h, http.MethodPost, "/api/v1/stock/reservations", body("5"))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	rr, _ = do(t, h, http.MethodPost, "/api/v1/stock/reservations/release", body("7"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr, env = do(t, h, http.MethodPost, "/api/v1/stock/reservations/release", body("6"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.True(t, rec.Reserved.IsZero())
}
