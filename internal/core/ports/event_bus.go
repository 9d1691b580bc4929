package ports

import "context"

// Event is one message on the in-process bus. Settlement topics carry a
// domain.SettlementEvent, bot topics carry the raw Telegram update.
type Event struct {
	Topic string
	Data  any
}

// EventHandler reacts to one event. Returned errors are logged by the bus.
type EventHandler func(ctx context.Context, event Event) error

// EventBus fans events out to every subscriber of a topic.
type EventBus interface {
	// Publish never blocks on subscribers.
	Publish(ctx context.Context, topic string, data any) error

	Subscribe(topic string, handler EventHandler)
}
