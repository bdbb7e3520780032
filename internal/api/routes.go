// Package api assembles the HTTP surface of the integration layer: the
// provider webhook endpoint plus operational probes and metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/checkpointhq/checkpoint/internal/observability"
	"github.com/checkpointhq/checkpoint/internal/webhook"
)

type RouterConfig struct {
	PaymentWebhook *webhook.Handler
	HealthHandler  *observability.HealthHandler
	Metrics        *observability.Metrics
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if cfg.Logger != nil {
		r.Use(observability.LoggingMiddleware(cfg.Logger))
	}

	if cfg.Metrics != nil {
		r.Use(observability.MetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/ready", cfg.HealthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Method(http.MethodPost, "/payments", cfg.PaymentWebhook)
	})

	return r
}
