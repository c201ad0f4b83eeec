package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/lojasmm/menubot/internal/dispatch"
	"github.com/lojasmm/menubot/internal/store"
	"github.com/lojasmm/menubot/internal/whatsapp"
	"github.com/rs/zerolog"
)

// Sender is the outbound side of the messaging API.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
	SendInteractive(ctx context.Context, to string, interactive whatsapp.Interactive) (*whatsapp.SendResponse, error)
}

// Submitter runs tasks in the background.
type Submitter interface {
	Submit(name string, task dispatch.Task)
}

// DeliveryLog records send outcomes. A nil DeliveryLog disables recording.
type DeliveryLog interface {
	SaveDelivery(d store.Delivery) error
}

type Handler struct {
	wa         Sender
	dispatcher Submitter
	deliveries DeliveryLog
	log        zerolog.Logger
}

func NewHandler(wa Sender, dispatcher Submitter, deliveries DeliveryLog, log zerolog.Logger) *Handler {
	return &Handler{
		wa:         wa,
		dispatcher: dispatcher,
		deliveries: deliveries,
		log:        log.With().Str("component", "bot").Logger(),
	}
}

// HandleEvents schedules the replies for one inbound message. The events run
// in order inside a single background task.
func (h *Handler) HandleEvents(events []whatsapp.Event) {
	if len(events) == 0 {
		return
	}
	h.dispatcher.Submit("reply", func(ctx context.Context) {
		for _, ev := range events {
			h.handleEvent(ctx, ev)
		}
	})
}

func (h *Handler) handleEvent(ctx context.Context, ev whatsapp.Event) {
	switch ev := ev.(type) {
	case whatsapp.TextEvent:
		text := strings.ToLower(ev.Body)
		h.log.Info().Str("from", ev.From).Str("text", text).Msg("received text message")
		if isGreeting(text) {
			h.sendMenu(ctx, ev.From)
			return
		}
		h.sendMessage(ctx, ev.From, defaultPrompt)
	case whatsapp.ButtonReplyEvent:
		h.log.Info().Str("from", ev.From).Str("button_id", ev.ButtonID).Msg("received button reply")
		h.followUp(ctx, ev.From, ev.ButtonID)
	default:
		h.log.Warn().Str("from", ev.Sender()).Msgf("unhandled event %T", ev)
	}
}

func (h *Handler) followUp(ctx context.Context, recipient, buttonID string) {
	h.sendMessage(ctx, recipient, FollowUpText(buttonID))
}

func (h *Handler) sendMenu(ctx context.Context, recipient string) {
	resp, err := h.wa.SendInteractive(ctx, recipient, mainMenu())
	h.record(recipient, store.KindInteractive, resp, err)
}

func (h *Handler) sendMessage(ctx context.Context, recipient, text string) {
	resp, err := h.wa.SendText(ctx, recipient, text)
	h.record(recipient, store.KindText, resp, err)
}

// record logs the outcome of a send. Failures stop here: the webhook has
// already been acknowledged and nothing is retried.
func (h *Handler) record(recipient string, kind store.DeliveryKind, resp *whatsapp.SendResponse, err error) {
	d := store.Delivery{Recipient: recipient, Kind: kind, Status: store.StatusSent}

	if err != nil {
		d.Status = store.StatusFailed
		d.Error = err.Error()

		var apiErr *whatsapp.APIError
		if errors.As(err, &apiErr) {
			h.log.Error().
				Str("to", recipient).
				Str("kind", string(kind)).
				Int("status", apiErr.StatusCode).
				Bytes("response", apiErr.Body).
				Msg("provider rejected message")
		} else {
			h.log.Error().Err(err).Str("to", recipient).Str("kind", string(kind)).Msg("failed to send message")
		}
	} else {
		d.ProviderMessageID = resp.MessageID()
		e := h.log.Info().Str("to", recipient).Str("kind", string(kind))
		if resp != nil && json.Valid(resp.Raw) {
			e = e.RawJSON("response", resp.Raw)
		}
		e.Msg("message sent")
	}

	if h.deliveries == nil {
		return
	}
	if err := h.deliveries.SaveDelivery(d); err != nil {
		h.log.Warn().Err(err).Str("to", recipient).Msg("failed to record delivery")
	}
}
