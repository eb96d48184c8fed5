// Package handler exposes the movement engine and the stock queries over
// HTTP. Handlers decode, delegate and encode; every rule lives in the
// engine.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/engine"
	"github.com/stockledger/stockledger-backend/internal/stock/query"
	"github.com/stockledger/stockledger-backend/pkg/errors"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/validation"
)

// StockHandler handles stock movement and query endpoints
type StockHandler struct {
	engine     *engine.Engine
	query      *query.Service
	expiryDays int
	logger     *logger.Logger
}

// NewStockHandler creates a new stock handler. expiryDays is the default
// window of the expiring listing.
func NewStockHandler(eng *engine.Engine, q *query.Service, expiryDays int, log *logger.Logger) *StockHandler {
	return &StockHandler{
		engine:     eng,
		query:      q,
		expiryDays: expiryDays,
		logger:     log,
	}
}

// Movement handlers

func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req engine.ReceiveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.engine.ReceiveStock(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, rec)
}

func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req engine.AdjustRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.engine.AdjustStock(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rec)
}

// Allocate draws stock in first-expired-first-out order.
func (h *StockHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req engine.AllocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.engine.AllocateFEFO(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, entries)
}

func (h *StockHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.engine.Reserve)
}

func (h *StockHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.reservation(w, r, h.engine.Unreserve)
}

func (h *StockHandler) reservation(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, req engine.ReserveRequest) (*domain.StockRecord, error)) {
	var req engine.ReserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := apply(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rec)
}

// Query handlers

func (h *StockHandler) Availability(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		httputil.Error(w, validation.Field("item_id", "is required"))
		return
	}

	avail, err := h.query.Availability(r.Context(), itemID, httputil.QueryString(r, "location_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, avail)
}

func (h *StockHandler) NeedsReorder(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	needs, err := h.query.NeedsReorder(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"item_id":       itemID,
		"needs_reorder": needs,
	})
}

func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	deficits, err := h.query.LowStock(r.Context(), httputil.QueryString(r, "location_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, deficits, &httputil.Meta{Count: len(deficits)})
}

func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, err := httputil.QueryInt(r, "days", h.expiryDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	recs, err := h.query.ExpiringSoon(r.Context(), days, httputil.QueryString(r, "location_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, recs, &httputil.Meta{Count: len(recs)})
}

func (h *StockHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filter := domain.LedgerFilter{
		ItemID:      httputil.QueryString(r, "item_id"),
		LocationID:  httputil.QueryString(r, "location_id"),
		Batch:       httputil.QueryString(r, "batch"),
		ReferenceID: httputil.QueryString(r, "reference_id"),
		Limit:       limit,
		Offset:      offset,
	}
	if mt := httputil.QueryString(r, "mutation_type"); mt != nil {
		t := domain.MutationType(*mt)
		filter.MutationType = &t
	}

	entries, err := h.query.LedgerHistory(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{
		Limit:  limit,
		Offset: offset,
		Count:  len(entries),
	})
}

// Reconcile compares one key's quantity with the sum of its ledger.
func (h *StockHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := domain.StockKey{
		ItemID:     q.Get("item_id"),
		LocationID: q.Get("location_id"),
		Batch:      q.Get("batch"),
	}
	if key.ItemID == "" || key.LocationID == "" {
		httputil.Error(w, errors.Validation(map[string]string{
			"item_id":     "is required",
			"location_id": "is required",
		}))
		return
	}

	rec, err := h.query.Reconcile(r.Context(), key)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, rec)
}
