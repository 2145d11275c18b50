package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"radagast/internal/invoice/controller"
)

func NewRouter(invoiceCtrl *controller.InvoiceController, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", invoiceCtrl.CreateInvoice)
		r.Get("/{invoiceId}", invoiceCtrl.GetInvoice)
		r.Post("/{invoiceId}/confirm-allocation", invoiceCtrl.ConfirmAllocation)
		r.Post("/{invoiceId}/release-reservation", invoiceCtrl.ReleaseReservation)
	})

	return r
}
