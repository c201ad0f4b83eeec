package whatsapp

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	eventReceived = "EVENT_RECEIVED"

	maxWebhookBodySize = 1 << 20
)

// EventHandler is called with the events of one inbound message, after the
// webhook has been acknowledged. It must not block on outbound work.
type EventHandler func(events []Event)

type WebhookHandler struct {
	verifyToken string
	onEvents    EventHandler
	log         zerolog.Logger
}

func NewWebhookHandler(verifyToken string, onEvents EventHandler, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		onEvents:    onEvents,
		log:         log.With().Str("component", "webhook").Logger(),
	}
}

// ServeHTTP serves the single webhook path: GET for the subscription
// handshake, POST for event delivery.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.HandleVerify(w, r)
	case http.MethodPost:
		h.HandleIncoming(w, r)
	default:
		writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

// HandleVerify handles the GET webhook verification from Meta.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/get-started#webhook-verification
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if mode == "subscribe" && token == h.verifyToken {
		h.log.Info().Msg("webhook verified successfully")
		writeText(w, http.StatusOK, challenge)
		return
	}

	h.log.Warn().Str("mode", mode).Msg("webhook verification rejected")
	writeText(w, http.StatusForbidden, "Forbidden")
}

// HandleIncoming acknowledges a POST notification and passes its events on.
// Any body that parses as JSON is acknowledged; one that does not fit the
// payload shape is treated as carrying no message.
// Reference: https://developers.facebook.com/docs/whatsapp/cloud-api/webhooks/components
func (h *WebhookHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read payload")
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if !json.Valid(body) {
		h.log.Warn().Int("bytes", len(body)).Msg("payload is not valid JSON")
		writeText(w, http.StatusBadRequest, "Bad Request")
		return
	}

	h.log.Debug().RawJSON("payload", body).Msg("webhook received")

	// Meta only needs the 200; reply sends happen off the request.
	writeText(w, http.StatusOK, eventReceived)

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Warn().Err(err).Msg("payload does not match webhook shape")
		return
	}

	events := payload.Events()
	if len(events) == 0 {
		h.log.Debug().Msg("no messaging event found")
		return
	}
	h.onEvents(events)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
