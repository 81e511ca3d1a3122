package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fulfillment-engine/api/controllers"
	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/internal/activity"
	"github.com/angelmondragon/fulfillment-engine/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-engine/internal/stock"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/metrics"
	"github.com/angelmondragon/fulfillment-engine/pkg/redis"
)

// Deps carries everything the HTTP surface is wired to. Redis and the
// metrics handler are optional.
type Deps struct {
	DB                 db.Pinger
	Redis              *redis.Client
	Fulfillment        fulfillment.Service
	Activity           activity.Recorder
	Stock              *stock.Reader
	FulfillmentMetrics *metrics.FulfillmentMetrics
	HTTPMetrics        *metrics.HTTPMetrics
	MetricsHandler     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"database": deps.DB}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if cfg.Metrics.Enabled && deps.MetricsHandler != nil {
		r.Handle(cfg.Metrics.Path, deps.MetricsHandler)
	}

	idempotent := middleware.Idempotency(nil, logg)
	if deps.Redis != nil {
		idempotent = middleware.Idempotency(deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireActor(logg))

		r.Route("/transactions", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.CommitTransaction(deps.Fulfillment, deps.Activity, deps.FulfillmentMetrics, logg))
			r.Get("/", controllers.ListTransactions(deps.Fulfillment, logg))
			r.Route("/{transactionId}", func(r chi.Router) {
				r.Get("/", controllers.GetTransaction(deps.Fulfillment, logg))
				r.With(idempotent).Post("/void", controllers.VoidTransaction(deps.Fulfillment, deps.Activity, deps.FulfillmentMetrics, logg))
				r.Patch("/status", controllers.UpdateTransactionStatus(deps.Fulfillment, deps.Activity, deps.FulfillmentMetrics, logg))
				r.Get("/activity", controllers.TransactionActivity(deps.Activity, logg))
			})
		})

		r.Get("/products/{productId}/stock", controllers.ProductStock(deps.Stock, logg))
	})

	return r
}
