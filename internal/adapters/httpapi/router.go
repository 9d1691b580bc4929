// Package httpapi exposes payout settlement operations over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// OperatorHeader carries the identity of the operator making a change.
const OperatorHeader = "X-Operator-ID"

// NewRouter wires the payout API.
func NewRouter(h *Handlers, baseLogger *zerolog.Logger) http.Handler {
	log := baseLogger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})

	r.Route("/wallets", func(r chi.Router) {
		r.Post("/", h.CreateWallet)
		r.Get("/{id}", h.GetWallet)
	})

	r.Route("/payouts", func(r chi.Router) {
		r.Post("/", h.CreatePayout)
		r.Get("/", h.ListPayouts)
		r.Get("/{id}", h.GetPayout)

		r.Group(func(r chi.Router) {
			r.Use(RequireOperator)
			r.Post("/{id}/approve", h.Approve)
			r.Post("/{id}/reject", h.Reject)
			r.Post("/{id}/verify", h.Verify)
			r.Post("/{id}/mark-transferred", h.MarkTransferred)
		})
	})

	return r
}
