package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records publishes and can be closed like a broker channel
// exception would close it.
type fakeChannel struct {
	mu        sync.Mutex
	closed    bool
	declares  int
	published []string
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.declares++
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.published = append(c.published, key)
	return nil
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeConnection struct {
	closed   bool
	channels []*fakeChannel
	openErr  error
}

func (c *fakeConnection) Channel() (amqpChannel, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	ch := &fakeChannel{}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool { return c.closed }
func (c *fakeConnection) Close() error   { c.closed = true; return nil }

func newFakeProducer(t *testing.T, conns ...*fakeConnection) (*Producer, *int) {
	t.Helper()
	log := zerolog.Nop()
	dials := 0
	p, err := newProducer(func() (amqpConnection, error) {
		if dials >= len(conns) {
			return nil, errors.New("broker unreachable")
		}
		c := conns[dials]
		dials++
		return c, nil
	}, &log)
	require.NoError(t, err)
	return p, &dials
}

func TestProducer_ReopensClosedChannel(t *testing.T) {
	// 1. Setup
	conn := &fakeConnection{}
	p, dials := newFakeProducer(t, conn)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "payout_events", "payout.approved", map[string]string{"id": "p1"}))

	// 2. The broker closes the channel after the exchange was declared
	require.NoError(t, conn.channels[0].Close())

	// 3. The next publishes land on a fresh channel that declares again
	require.NoError(t, p.Publish(ctx, "payout_events", "payout.transferred", map[string]string{"id": "p1"}))
	require.NoError(t, p.Publish(ctx, "payout_events", "payout.debit_failed", map[string]string{"id": "p1"}))

	require.Len(t, conn.channels, 2)
	assert.Equal(t, []string{"payout.transferred", "payout.debit_failed"}, conn.channels[1].published)
	assert.Equal(t, 1, conn.channels[1].declares)
	assert.Equal(t, 1, *dials)
}

func TestProducer_RetriesOnceWhenPublishHitsClosedChannel(t *testing.T) {
	conn := &fakeConnection{}
	p, _ := newFakeProducer(t, conn)
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, "payout_events", "payout.approved", "a"))

	// Closed between the IsClosed check and the publish.
	p.channel = &closingChannel{fakeChannel: conn.channels[0]}

	require.NoError(t, p.Publish(ctx, "payout_events", "payout.transferred", "b"))
	require.Len(t, conn.channels, 2)
	assert.Equal(t, []string{"payout.transferred"}, conn.channels[1].published)
}

// closingChannel reports open but closes itself on publish.
type closingChannel struct {
	*fakeChannel
}

func (c *closingChannel) IsClosed() bool { return false }

func (c *closingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	_ = c.fakeChannel.Close()
	return amqp.ErrClosed
}

func TestProducer_RedialsClosedConnection(t *testing.T) {
	first := &fakeConnection{}
	second := &fakeConnection{}
	p, dials := newFakeProducer(t, first, second)
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, "payout_events", "payout.approved", "a"))

	first.closed = true
	require.NoError(t, first.channels[0].Close())

	require.NoError(t, p.Publish(ctx, "payout_events", "payout.transferred", "b"))
	assert.Equal(t, 2, *dials)
	require.Len(t, second.channels, 1)
	assert.Equal(t, []string{"payout.transferred"}, second.channels[0].published)
}

func TestProducer_ReopenFailureIsReturnedAndRecovered(t *testing.T) {
	conn := &fakeConnection{}
	p, _ := newFakeProducer(t, conn)
	ctx := context.Background()

	require.NoError(t, conn.channels[0].Close())
	conn.openErr = errors.New("channel_max reached")
	assert.Error(t, p.Publish(ctx, "payout_events", "payout.approved", "a"))

	conn.openErr = nil
	require.NoError(t, p.Publish(ctx, "payout_events", "payout.approved", "a"))
	assert.Equal(t, []string{"payout.approved"}, conn.channels[len(conn.channels)-1].published)
}

func TestProducer_MarshalErrorDoesNotReopen(t *testing.T) {
	conn := &fakeConnection{}
	p, _ := newFakeProducer(t, conn)

	err := p.Publish(context.Background(), "payout_events", "payout.approved", make(chan int))

	assert.Error(t, err)
	assert.Len(t, conn.channels, 1)
	assert.False(t, conn.channels[0].IsClosed())
}
