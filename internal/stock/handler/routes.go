package handler

import "github.com/go-chi/chi/v5"

// Mount registers the stock routes on r.
func Mount(r chi.Router, stock *StockHandler, docs *DocumentHandler) {
	r.Post("/receipts", stock.Receive)
	r.Post("/adjustments", stock.Adjust)
	r.Post("/allocations", stock.Allocate)
	r.Post("/reservations", stock.Reserve)
	r.Post("/reservations/release", stock.Release)

	r.Get("/availability", stock.Availability)
	r.Get("/items/{id}/reorder", stock.NeedsReorder)
	r.Get("/low-stock", stock.LowStock)
	r.Get("/expiring", stock.Expiring)
	r.Get("/ledger", stock.Ledger)
	r.Get("/reconcile", stock.Reconcile)

	r.Route("/deliveries", func(r chi.Router) {
		r.Post("/", docs.CreateDelivery)
		r.Get("/{id}", docs.GetDelivery)
		r.Post("/{id}/dispatch", docs.DispatchDelivery)
		r.Post("/{id}/confirm", docs.ConfirmDelivery)
		r.Post("/{id}/cancel", docs.CancelDelivery)
	})

	r.Route("/goods-receipts", func(r chi.Router) {
		r.Post("/", docs.CreateReceipt)
		r.Get("/{id}", docs.GetReceipt)
		r.Post("/{id}/pass", docs.PassReceipt)
		r.Post("/{id}/fail", docs.FailReceipt)
	})

	r.Route("/work-orders", func(r chi.Router) {
		r.Post("/", docs.CreateWorkOrder)
		r.Get("/{id}", docs.GetWorkOrder)
		r.Post("/{id}/start", docs.StartWorkOrder)
		r.Post("/{id}/complete", docs.CompleteWorkOrder)
		r.Post("/{id}/cancel", docs.CancelWorkOrder)
		r.Post("/{id}/output", docs.RecordOutput)
	})
}
