package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const webhookPath = "/webhook"

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// newHTTPHandler mounts health, metrics and, when updates is non-nil, the Telegram webhook.
func newHTTPHandler(log *zap.Logger, db Pinger, metrics http.Handler, updates chan<- tgbotapi.Update) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	if updates != nil {
		r.Post(webhookPath, func(w http.ResponseWriter, req *http.Request) {
			var upd tgbotapi.Update
			if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
				log.Warn("bad webhook payload", zap.Error(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			select {
			case updates <- upd:
				w.WriteHeader(http.StatusOK)
			case <-req.Context().Done():
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
