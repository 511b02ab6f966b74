// Package health обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/http/response"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
)

// Pinger проверка доступности зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log     *slog.Logger
	db      Pinger
	timeout time.Duration
}

func New(log *slog.Logger, db Pinger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{
		log:     log,
		db:      db,
		timeout: timeout,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	log := h.log.With(slog.String("op", op))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Error("database is not reachable", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not reachable"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"database": "ok",
	}))
}
