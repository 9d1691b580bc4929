package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const jobTimeout = 2 * time.Minute

// OutboxDrainer applies due debit intents.
type OutboxDrainer interface {
	DrainOnce(ctx context.Context) (int, error)
}

// StaleApprovedCounter counts approved payouts older than a cutoff.
type StaleApprovedCounter interface {
	CountApprovedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Jobs holds the job bodies run by the scheduler.
type Jobs struct {
	drainer OutboxDrainer
	counter StaleApprovedCounter
	// staleAfter is how long a payout may stay APPROVED before it is
	// reported. Matches the poll budget so live pollers are not counted.
	staleAfter time.Duration
	root       context.Context
	now        func() time.Time
	log        zerolog.Logger
}

// NewJobs creates the job set. Job runs derive their context from root.
func NewJobs(root context.Context, drainer OutboxDrainer, counter StaleApprovedCounter, staleAfter time.Duration, baseLogger *zerolog.Logger) *Jobs {
	return &Jobs{
		drainer:    drainer,
		counter:    counter,
		staleAfter: staleAfter,
		root:       root,
		now:        time.Now,
		log:        baseLogger.With().Str("component", "scheduler_jobs").Logger(),
	}
}

// DrainDebitOutbox retries debits that did not complete after settlement.
func (j *Jobs) DrainDebitOutbox() {
	ctx, cancel := context.WithTimeout(j.root, jobTimeout)
	defer cancel()

	n, err := j.drainer.DrainOnce(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Debit outbox drain failed")
		return
	}
	if n > 0 {
		j.log.Info().Int("debited", n).Msg("Debit outbox drain finished")
	}
}

// ReportStaleApproved logs how many payouts stayed approved past the poll
// budget without a transfer confirmation.
func (j *Jobs) ReportStaleApproved() {
	ctx, cancel := context.WithTimeout(j.root, jobTimeout)
	defer cancel()

	n, err := j.counter.CountApprovedBefore(ctx, j.now().Add(-j.staleAfter))
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to count stale approved payouts")
		return
	}
	if n == 0 {
		return
	}
	j.log.Warn().
		Int("approved_awaiting_transfer", n).
		Dur("stale_after", j.staleAfter).
		Msg("Approved payouts still awaiting transfer confirmation")
}
