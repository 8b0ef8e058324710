package api

import (
	"context"
	"customer-service/internal/api/handler"
	mw "customer-service/internal/api/middleware"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"log/slog"
	"net/http"

	_ "customer-service/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// SetupRouter wires middleware and routes. ctx bounds the lifetime of the
// rate limiter's background sweeper.
func SetupRouter(ctx context.Context, customerService customer.CustomerService, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(ctx, router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupCustomerRoutes(router, customerService, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(ctx context.Context, router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}
	router.Use(mw.NewRateLimiterMiddleware(ctx, cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupCustomerRoutes(r chi.Router, svc customer.CustomerService, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	r.Route("/api/customers", func(r chi.Router) {
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Get("/type/{type}", h.ListCustomersByType)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Put("/", h.UpdateCustomer)
			r.Delete("/", h.DeleteCustomer)
			r.Put("/vip-pym", h.UpdateVipPymStatus)
		})
	})
}
