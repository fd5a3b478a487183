package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/database"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/http/handler"
	"github.com/sprayline/foamops-api/internal/http/middleware"
	"github.com/sprayline/foamops-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg              *config.Config
	logger           *zap.Logger
	db               *gorm.DB
	metrics          *metrics.Metrics
	gatherer         prometheus.Gatherer
	authMiddleware   *auth.Middleware
	rateLimiter      *middleware.RateLimiter
	estimateHandler  *handler.EstimateHandler
	warehouseHandler *handler.WarehouseHandler
	syncHandler      *handler.SyncHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	estimateHandler *handler.EstimateHandler,
	warehouseHandler *handler.WarehouseHandler,
	syncHandler *handler.SyncHandler,
) *Router {
	return &Router{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		metrics:          m,
		gatherer:         gatherer,
		authMiddleware:   authMiddleware,
		rateLimiter:      rateLimiter,
		estimateHandler:  estimateHandler,
		warehouseHandler: warehouseHandler,
		syncHandler:      syncHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger, rt.metrics))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := database.Ping(ctx, rt.db); err != nil {
			rt.logger.Error("database health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"service": "database",
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"driver":  rt.db.Dialector.Name(),
		})
	})

	if rt.cfg.Metrics.Enabled && rt.gatherer != nil {
		path := rt.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.LimitByUser)

		r.Route("/estimates", func(r chi.Router) {
			r.Get("/", rt.estimateHandler.List)
			r.Post("/", rt.estimateHandler.Create)
			r.Get("/{id}", rt.estimateHandler.GetByID)
			r.Put("/{id}", rt.estimateHandler.Update)
			r.Delete("/{id}", rt.estimateHandler.Delete)

			// Lifecycle
			r.Get("/{id}/shortage", rt.estimateHandler.Shortage)
			r.Post("/{id}/work-order", rt.estimateHandler.ConfirmWorkOrder)
			r.Post("/{id}/start", rt.estimateHandler.Start)
			r.Post("/{id}/complete", rt.estimateHandler.Complete)
			r.Post("/{id}/invoice", rt.estimateHandler.Invoice)
			r.Post("/{id}/paid", rt.estimateHandler.Paid)
			r.Post("/{id}/archive", rt.estimateHandler.Archive)
		})

		r.Get("/warehouse", rt.warehouseHandler.Get)
		r.Get("/purchase-orders", rt.warehouseHandler.ListPurchaseOrders)
		r.Get("/usage-log", rt.warehouseHandler.ListUsage)
		r.Get("/settings", rt.syncHandler.GetSettings)
		r.Get("/sync/snapshot", rt.syncHandler.Pull)
		r.Put("/sync/snapshot", rt.syncHandler.Push)

		// Office only
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireRole(domain.RoleAdmin))

			r.Put("/warehouse", rt.warehouseHandler.Update)
			r.Post("/purchase-orders", rt.warehouseHandler.ReceivePurchaseOrder)
			r.Get("/profit-loss", rt.warehouseHandler.ListProfitLoss)
			r.Patch("/settings", rt.syncHandler.UpdateSettings)
		})
	})

	return r
}
