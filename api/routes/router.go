package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orlcnr/mesa-core/api/controllers"
	"github.com/orlcnr/mesa-core/api/middleware"
	"github.com/orlcnr/mesa-core/internal/cashier"
	"github.com/orlcnr/mesa-core/internal/orders"
	"github.com/orlcnr/mesa-core/internal/payments"
	"github.com/orlcnr/mesa-core/internal/stock"
	"github.com/orlcnr/mesa-core/internal/tables"
	"github.com/orlcnr/mesa-core/pkg/config"
	"github.com/orlcnr/mesa-core/pkg/db"
	"github.com/orlcnr/mesa-core/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	registry *prometheus.Registry,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	stockSvc stock.Service,
	cashierSvc cashier.Service,
	tablesSvc tables.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/{orderID}", controllers.OrderGet(ordersSvc, logg))
			r.Put("/{orderID}/items", controllers.OrderUpdateItems(ordersSvc, logg))
			r.Put("/{orderID}/status", controllers.OrderUpdateStatus(ordersSvc, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(ordersSvc, logg))
			r.Post("/{orderID}/transfer", controllers.OrderTransfer(tablesSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(paymentsSvc, logg))
			r.Post("/split", controllers.PaymentCreateSplit(paymentsSvc, logg))
			r.Post("/{paymentID}/revert", controllers.PaymentRevert(paymentsSvc, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/movements", controllers.StockMovementRecord(stockSvc, logg))
			r.Post("/bulk-adjust", controllers.StockBulkAdjust(stockSvc, logg))
		})

		r.Route("/cash-sessions", func(r chi.Router) {
			r.Post("/", controllers.CashSessionOpen(cashierSvc, logg))
			r.Post("/{sessionID}/close", controllers.CashSessionClose(cashierSvc, logg))
			r.Post("/{sessionID}/movements", controllers.CashMovementRecord(cashierSvc, logg))
		})
	})

	return r
}
