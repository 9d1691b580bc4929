package handlers

import (
	"PayoutRecon/internal/bot/messages"
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ForwardingHandler posts settlement events to the operator channel.
// New and approved payouts carry action buttons so admins can act from the channel.
type ForwardingHandler struct {
	log       zerolog.Logger
	bot       ports.BotClientPort
	channelID int64
}

// NewForwardingHandler creates a handler for settlement events.
func NewForwardingHandler(bot ports.BotClientPort, channelID int64, baseLogger *zerolog.Logger) *ForwardingHandler {
	return &ForwardingHandler{
		log:       baseLogger.With().Str("component", "forwarding_handler").Logger(),
		bot:       bot,
		channelID: channelID,
	}
}

// Attach subscribes the handler to every settlement topic.
func (h *ForwardingHandler) Attach(bus ports.EventBus) {
	for _, topic := range domain.SettlementTopics {
		bus.Subscribe(topic, h.HandleEvent)
	}
}

// HandleEvent is subscribed to the settlement topics on the bus.
func (h *ForwardingHandler) HandleEvent(ctx context.Context, event ports.Event) error {
	evt, ok := event.Data.(domain.SettlementEvent)
	if !ok {
		return fmt.Errorf("unexpected settlement payload %T", event.Data)
	}

	log := h.log.With().Str("payout_id", evt.PayoutID).Str("topic", event.Topic).Logger()

	// 1. Buttons follow the status the event reports
	p := &domain.Payout{ID: evt.PayoutID, Status: evt.Status}
	msg := messages.NewBuilder(h.channelID).
		WithText(messages.SettlementNotice(event.Topic, evt)).
		WithInlineButtons(messages.PayoutButtons(p, evt.QRURL)).
		Build()

	// 2. Send to the operator channel
	if _, err := h.bot.SendMessage(ctx, msg); err != nil {
		log.Error().Err(err).Msg("Failed to forward settlement event to channel")
		return err
	}

	log.Debug().Msg("Forwarded settlement event")
	return nil
}
