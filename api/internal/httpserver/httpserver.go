// Package httpserver exposes the health check and the Telegram webhook.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Pinger is a backing store that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// Ping is checked by /healthz when set.
	Ping Pinger
	// WebhookPath receives Telegram updates when Updates is set.
	WebhookPath string
	Updates     chan<- tgbotapi.Update
	Log         *slog.Logger
}

// New builds the HTTP router.
func New(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", healthz(opts.Ping))
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("relief check-in bot"))
	})
	if opts.Updates != nil && opts.WebhookPath != "" {
		r.Post(opts.WebhookPath, webhook(opts.Updates, log))
	}
	return r
}

func healthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// webhook decodes an update and queues it for the single consumer that
// keeps per-chat ordering.
func webhook(updates chan<- tgbotapi.Update, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			log.Warn("webhook: bad update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case updates <- upd:
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
}
