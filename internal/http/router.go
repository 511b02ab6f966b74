// Package http служебный HTTP-сервер: проверка готовности и метрики.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/handlers/health"
)

// NewRouter регистрирует /health и /metrics.
func NewRouter(logger *slog.Logger, db health.Pinger, gatherer prometheus.Gatherer, timeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, db, timeout).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// NewServer собирает http.Server с таймаутами из конфига.
func NewServer(cfg config.HTTPServer, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      handler,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
