// Package rabbitmq forwards settlement events to an AMQP topic exchange so
// services outside this process can follow payouts.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const dialTimeout = 10 * time.Second

// Publisher publishes JSON bodies to an exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// amqpChannel is the part of *amqp.Channel the producer uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// amqpConnection is the part of *amqp.Connection the producer uses.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type connection struct {
	*amqp.Connection
}

func (c connection) Channel() (amqpChannel, error) {
	return c.Connection.Channel()
}

// Producer publishes over a single AMQP channel. A closed channel is
// reopened, and a closed connection redialed, on the next publish.
type Producer struct {
	mu       sync.Mutex
	dial     func() (amqpConnection, error)
	conn     amqpConnection
	channel  amqpChannel
	declared map[string]bool
	log      zerolog.Logger
}

// NewProducer dials the broker with a bounded timeout.
func NewProducer(amqpURL string, baseLogger *zerolog.Logger) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	dial := func() (amqpConnection, error) {
		conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		if err != nil {
			return nil, err
		}
		return connection{conn}, nil
	}
	return newProducer(dial, baseLogger)
}

func newProducer(dial func() (amqpConnection, error), baseLogger *zerolog.Logger) (*Producer, error) {
	p := &Producer{
		dial:     dial,
		declared: make(map[string]bool),
		log:      baseLogger.With().Str("component", "amqp_producer").Logger(),
	}
	if err := p.reopen(); err != nil {
		p.log.Error().Err(err).Msg("Failed to connect to RabbitMQ")
		return nil, err
	}
	p.log.Info().Msg("Connected to RabbitMQ")
	return p, nil
}

// Publish declares exchange as a durable topic exchange on first use and
// publishes body as JSON. When the channel has been closed by the broker
// it is reopened and the publish retried once.
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal event body: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.channel.IsClosed() {
		if err := p.reopen(); err != nil {
			return err
		}
	}

	err = p.publishOn(ctx, exchange, routingKey, msg)
	if err == nil || !(errors.Is(err, amqp.ErrClosed) || p.channel.IsClosed()) {
		return err
	}

	p.log.Warn().Err(err).Str("exchange", exchange).Msg("AMQP channel closed, reopening")
	if err := p.reopen(); err != nil {
		return err
	}
	return p.publishOn(ctx, exchange, routingKey, msg)
}

func (p *Producer) publishOn(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[exchange] = true
	}
	return p.channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
}

// reopen opens a fresh channel, redialing first when the connection is
// gone. Declarations are per channel, so the cache is reset.
func (p *Producer) reopen() error {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial()
		if err != nil {
			return fmt.Errorf("failed to dial RabbitMQ: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

// Close closes the channel and the connection.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.log.Info().Msg("RabbitMQ connection closed")
}

// LogPublisher stands in when no broker is configured or reachable. It
// only logs what would have been published.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(baseLogger *zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: baseLogger.With().Str("component", "amqp_fallback").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.log.Debug().Str("exchange", exchange).Str("routing_key", routingKey).Interface("body", body).Msg("Would publish event")
	return nil
}

func (p *LogPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
