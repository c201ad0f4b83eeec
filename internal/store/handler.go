package store

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	store Store
	log   zerolog.Logger
}

func NewHandler(s Store, log zerolog.Logger) *Handler {
	return &Handler{store: s, log: log}
}

// HandleList serves GET /deliveries/{recipient}.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	recipient := chi.URLParam(r, "recipient")
	if recipient == "" {
		http.Error(w, "recipient is required", http.StatusBadRequest)
		return
	}

	deliveries, err := h.store.ListDeliveries(recipient)
	if err != nil {
		h.log.Error().Err(err).Str("recipient", recipient).Msg("listing deliveries")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if deliveries == nil {
		deliveries = []Delivery{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(deliveries)
}

// BearerAuth rejects requests whose Authorization header does not carry
// token. An empty token rejects everything.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Routes mounts the delivery log read endpoint behind BearerAuth.
func (h *Handler) Routes(r chi.Router, token string) {
	r.With(BearerAuth(token)).Get("/deliveries/{recipient}", h.HandleList)
}
