package eventbus

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	log := zerolog.Nop()
	bus := NewInMemoryEventBus(&log)

	var calls atomic.Int32
	var got atomic.Value
	handler := func(ctx context.Context, e ports.Event) error {
		calls.Add(1)
		got.Store(e.Data)
		return nil
	}
	bus.Subscribe(domain.TopicPayoutTransferred, handler)
	bus.Subscribe(domain.TopicPayoutTransferred, func(ctx context.Context, e ports.Event) error {
		calls.Add(1)
		return errors.New("handler failure is only logged")
	})

	evt := domain.SettlementEvent{PayoutID: "p1", Status: domain.StatusTransferred}
	require.NoError(t, bus.Publish(context.Background(), domain.TopicPayoutTransferred, evt))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Drain(ctx))

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, evt, got.Load())
}

func TestPublish_NoSubscribers(t *testing.T) {
	log := zerolog.Nop()
	bus := NewInMemoryEventBus(&log)

	assert.NoError(t, bus.Publish(context.Background(), "nobody:listens", nil))
}

func TestPublish_HandlerOutlivesPublisherContext(t *testing.T) {
	log := zerolog.Nop()
	bus := NewInMemoryEventBus(&log)

	errs := make(chan error, 1)
	bus.Subscribe(domain.TopicPayoutApproved, func(ctx context.Context, e ports.Event) error {
		errs <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, bus.Publish(ctx, domain.TopicPayoutApproved, domain.SettlementEvent{}))

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestDrain_WaitsForHandlersThenRefusesEvents(t *testing.T) {
	// 1. Setup
	log := zerolog.Nop()
	bus := NewInMemoryEventBus(&log)

	release := make(chan struct{})
	var calls atomic.Int32
	bus.Subscribe(domain.TopicPayoutApproved, func(ctx context.Context, e ports.Event) error {
		calls.Add(1)
		<-release
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), domain.TopicPayoutApproved, "p1"))

	// 2. Drain blocks while the handler runs
	drained := make(chan error, 1)
	go func() { drained <- bus.Drain(context.Background()) }()

	select {
	case <-drained:
		t.Fatal("Drain returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-drained:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Drain did not return after the handler finished")
	}

	// 3. Later events are refused and never reach the handler
	err := bus.Publish(context.Background(), domain.TopicPayoutApproved, "p2")
	assert.ErrorIs(t, err, ErrDraining)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDrain_ContextExpires(t *testing.T) {
	log := zerolog.Nop()
	bus := NewInMemoryEventBus(&log)

	release := make(chan struct{})
	defer close(release)
	bus.Subscribe(domain.TopicPayoutApproved, func(ctx context.Context, e ports.Event) error {
		<-release
		return nil
	})
	require.NoError(t, bus.Publish(context.Background(), domain.TopicPayoutApproved, "p1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Drain(ctx), context.DeadlineExceeded)
}
