// Package outbox delivers payout debit intents to the wallet ledger.
package outbox

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBatchSize  = 50
	defaultStaleAfter = 2 * time.Minute
	maxRetryDelay     = 300 * time.Second
)

// Config tunes the drain loop.
type Config struct {
	BatchSize  int
	StaleAfter time.Duration
}

// Worker debits wallets for transferred payouts. It serves the eager
// attempt made right after the status commit and the periodic drain that
// retries whatever the eager attempt could not finish.
type Worker struct {
	outbox     ports.DebitOutbox
	ledger     ports.LedgerService
	bus        ports.EventBus
	batchSize  int
	staleAfter time.Duration
	log        zerolog.Logger
}

// Ensure compliance
var _ ports.PayoutDebiter = (*Worker)(nil)

// NewWorker creates an outbox worker. bus may be nil.
func NewWorker(outbox ports.DebitOutbox, ledger ports.LedgerService, bus ports.EventBus, cfg Config, baseLogger *zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}

	return &Worker{
		outbox:     outbox,
		ledger:     ledger,
		bus:        bus,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
		log:        baseLogger.With().Str("component", "debit_outbox").Logger(),
	}
}

// Debit applies one intent. On ledger failure the intent is rescheduled
// and the ledger error returned.
func (w *Worker) Debit(ctx context.Context, intent domain.DebitIntent) error {
	log := w.log.With().Str("payout_id", intent.PayoutID).Int("attempt", intent.Attempts).Logger()

	if err := w.ledger.DebitForPayout(ctx, intent.Request()); err != nil {
		retryAfter := RetryDelay(intent.Attempts)
		if merr := w.outbox.MarkFailed(ctx, intent.PayoutID, retryAfter, err.Error()); merr != nil {
			log.Error().Err(merr).Msg("Failed to reschedule debit intent")
		}
		return err
	}

	// The ledger is idempotent on the payout, so a lost MarkDone only
	// costs one more harmless attempt.
	if err := w.outbox.MarkDone(ctx, intent.PayoutID); err != nil {
		log.Warn().Err(err).Msg("Debit applied but intent not marked done")
	}
	return nil
}

// DrainOnce claims one batch of due intents and applies them.
// It returns how many were debited successfully.
func (w *Worker) DrainOnce(ctx context.Context) (int, error) {
	intents, err := w.outbox.Claim(ctx, w.batchSize, w.staleAfter)
	if err != nil {
		return 0, err
	}
	if len(intents) == 0 {
		return 0, nil
	}

	done := 0
	for _, intent := range intents {
		if ctx.Err() != nil {
			break
		}
		if err := w.Debit(ctx, intent); err != nil {
			w.log.Error().Err(err).
				Str("payout_id", intent.PayoutID).
				Int("attempt", intent.Attempts).
				Str("inconsistency", "reconciled_undebited").
				Msg("Retried debit failed")
			w.publishFailure(ctx, intent, err)
			continue
		}
		done++
	}

	w.log.Info().Int("claimed", len(intents)).Int("debited", done).Msg("Debit outbox drained")
	return done, nil
}

func (w *Worker) publishFailure(ctx context.Context, intent domain.DebitIntent, cause error) {
	if w.bus == nil {
		return
	}
	evt := domain.SettlementEvent{
		PayoutID: intent.PayoutID,
		UserID:   intent.UserID,
		Status:   domain.StatusTransferred,
		Amount:   intent.Amount,
		Actor:    "system:debit-outbox",
		Error:    cause.Error(),
		At:       time.Now().UTC(),
	}
	if err := w.bus.Publish(ctx, domain.TopicDebitFailed, evt); err != nil {
		w.log.Warn().Err(err).Str("payout_id", intent.PayoutID).Msg("Failed to publish debit failure")
	}
}

// RetryDelay is the backoff before the next attempt: 2^attempt seconds,
// capped at five minutes.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return time.Second
	}
	delay := time.Duration(1<<min(attempt, 8)) * time.Second
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
