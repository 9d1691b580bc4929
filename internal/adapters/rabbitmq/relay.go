package rabbitmq

import (
	"PayoutRecon/internal/core/ports"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Envelope wraps each relayed event.
type Envelope struct {
	ID         string      `json:"id"`
	Topic      string      `json:"topic"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Relay subscribes to bus topics and republishes them to one exchange.
type Relay struct {
	pub      Publisher
	exchange string
	log      zerolog.Logger
	now      func() time.Time
}

func NewRelay(pub Publisher, exchange string, baseLogger *zerolog.Logger) *Relay {
	return &Relay{
		pub:      pub,
		exchange: exchange,
		log:      baseLogger.With().Str("component", "event_relay").Logger(),
		now:      time.Now,
	}
}

// Attach subscribes the relay to every topic.
func (r *Relay) Attach(bus ports.EventBus, topics ...string) {
	for _, topic := range topics {
		bus.Subscribe(topic, r.Handle)
	}
}

// Handle publishes one bus event. The routing key is the topic with ':'
// replaced by '.', e.g. "payout.transferred".
func (r *Relay) Handle(ctx context.Context, event ports.Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	env := Envelope{
		ID:         uuid.NewString(),
		Topic:      event.Topic,
		OccurredAt: r.now().UTC(),
		Payload:    event.Data,
	}

	if err := r.pub.Publish(ctx, r.exchange, RoutingKey(event.Topic), env); err != nil {
		r.log.Error().Err(err).Str("topic", event.Topic).Msg("Failed to relay event")
		return err
	}
	return nil
}

// Close releases the underlying publisher.
func (r *Relay) Close() {
	r.pub.Close()
}

func RoutingKey(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}
