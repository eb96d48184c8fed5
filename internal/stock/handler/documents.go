package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/internal/stock/engine"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
)

// DocumentHandler handles delivery order, goods receipt and work order endpoints
type DocumentHandler struct {
	engine *engine.Engine
	logger *logger.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(eng *engine.Engine, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		engine: eng,
		logger: log,
	}
}

// MovementResult is returned by transitions that move stock.
type MovementResult struct {
	Document interface{}          `json:"document"`
	Entries  []domain.LedgerEntry `json:"entries"`
}

type qcRequest struct {
	Notes string `json:"notes"`
}

// Delivery order handlers

func (h *DocumentHandler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateDeliveryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.engine.CreateDeliveryOrder(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, order)
}

func (h *DocumentHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetDeliveryOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

func (h *DocumentHandler) DispatchDelivery(w http.ResponseWriter, r *http.Request) {
	h.deliveryTransition(w, r, h.engine.DispatchDelivery)
}

func (h *DocumentHandler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	h.deliveryTransition(w, r, h.engine.CancelDelivery)
}

// ConfirmDelivery marks the order delivered and draws every line from stock.
func (h *DocumentHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	order, entries, err := h.engine.ConfirmDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MovementResult{Document: order, Entries: entries})
}

func (h *DocumentHandler) deliveryTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.DeliveryOrder, error)) {
	order, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

// Goods receipt handlers

func (h *DocumentHandler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateReceiptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.engine.CreateGoodsReceipt(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, receipt)
}

func (h *DocumentHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.engine.GetGoodsReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, receipt)
}

// PassReceipt records a passed quality check and receives every line.
func (h *DocumentHandler) PassReceipt(w http.ResponseWriter, r *http.Request) {
	var req qcRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, entries, err := h.engine.PassGoodsReceipt(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MovementResult{Document: receipt, Entries: entries})
}

func (h *DocumentHandler) FailReceipt(w http.ResponseWriter, r *http.Request) {
	var req qcRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.engine.FailGoodsReceipt(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, receipt)
}

// Work order handlers

func (h *DocumentHandler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req engine.CreateWorkOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.engine.CreateWorkOrder(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, order)
}

func (h *DocumentHandler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetWorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}

func (h *DocumentHandler) StartWorkOrder(w http.ResponseWriter, r *http.Request) {
	h.workOrderTransition(w, r, h.engine.StartWorkOrder)
}

func (h *DocumentHandler) CompleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	h.workOrderTransition(w, r, h.engine.CompleteWorkOrder)
}

func (h *DocumentHandler) CancelWorkOrder(w http.ResponseWriter, r *http.Request) {
	h.workOrderTransition(w, r, h.engine.CancelWorkOrder)
}

// RecordOutput consumes the scaled recipe and adds the produced units.
func (h *DocumentHandler) RecordOutput(w http.ResponseWriter, r *http.Request) {
	var req engine.RecordOutputRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, entries, err := h.engine.RecordOutput(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, MovementResult{Document: order, Entries: entries})
}

func (h *DocumentHandler) workOrderTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.WorkOrder, error)) {
	order, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, order)
}
