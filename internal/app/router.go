package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocity-dms/velocity-dms/internal/billing"
	"github.com/velocity-dms/velocity-dms/internal/catalog"
	"github.com/velocity-dms/velocity-dms/internal/customerorder"
	"github.com/velocity-dms/velocity-dms/internal/customers"
	"github.com/velocity-dms/velocity-dms/internal/dealerorder"
	"github.com/velocity-dms/velocity-dms/internal/delivery"
	"github.com/velocity-dms/velocity-dms/internal/gateway"
	"github.com/velocity-dms/velocity-dms/internal/inventory"
	"github.com/velocity-dms/velocity-dms/internal/quotation"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Pool   *pgxpool.Pool

	CatalogHandler       *catalog.Handler
	CustomersHandler     *customers.Handler
	DealerOrderHandler   *dealerorder.Handler
	CustomerOrderHandler *customerorder.Handler
	QuotationHandler     *quotation.Handler
	InventoryHandler     *inventory.Handler
	BillingHandler       *billing.Handler
	DeliveryHandler      *delivery.Handler
	GatewayHandler       *gateway.Handler
}

// NewRouter constructs the chi.Router with Velocity defaults. Entity
// handlers serve reads; every mutation goes through the gateway.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("readiness probe", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.DealerOrderHandler != nil {
			params.DealerOrderHandler.MountRoutes(r)
		}
		if params.CustomerOrderHandler != nil {
			params.CustomerOrderHandler.MountRoutes(r)
		}
		if params.QuotationHandler != nil {
			params.QuotationHandler.MountRoutes(r)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
		if params.DeliveryHandler != nil {
			params.DeliveryHandler.MountRoutes(r)
		}
		if params.GatewayHandler != nil {
			params.GatewayHandler.MountRoutes(r)
		}
	})

	return r
}
