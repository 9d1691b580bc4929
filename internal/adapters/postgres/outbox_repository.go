package postgres

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const maxErrorLen = 2000

var _ ports.DebitOutbox = (*outboxRepository)(nil) // Ensure compliance

type outboxRepository struct {
	db  *DB
	log zerolog.Logger
}

// NewOutboxRepository creates the debit outbox store.
func NewOutboxRepository(db *DB, baseLogger *zerolog.Logger) ports.DebitOutbox {
	return &outboxRepository{
		db:  db,
		log: baseLogger.With().Str("component", "outbox_repo").Logger(),
	}
}

// enqueueDebitTx records a debit intent inside the caller's transaction.
// A second enqueue for the same payout is a no-op.
func enqueueDebitTx(ctx context.Context, tx pgx.Tx, intent domain.DebitIntent) error {
	pid, err := uuid.Parse(intent.PayoutID)
	if err != nil {
		return err
	}
	wid, err := uuid.Parse(intent.WalletID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payout_debit_outbox (payout_id, user_id, wallet_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payout_id) DO NOTHING
	`, pid, intent.UserID, wid, intent.Amount)
	return err
}

// Claim locks due intents, plus those stuck in processing for longer than
// staleAfter, and marks them processing.
func (r *outboxRepository) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]domain.DebitIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	staleSeconds := int(staleAfter.Seconds())
	if staleSeconds <= 0 {
		staleSeconds = 120
	}

	query := `
		WITH candidates AS (
			SELECT payout_id
			FROM payout_debit_outbox
			WHERE (
				(status = 'pending' AND next_attempt_at <= NOW())
				OR (status = 'processing' AND processing_started_at < NOW() - ($2 * INTERVAL '1 second'))
			)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE payout_debit_outbox AS o
		SET status = 'processing',
			processing_started_at = NOW(),
			attempts = o.attempts + 1
		FROM candidates
		WHERE o.payout_id = candidates.payout_id
		RETURNING o.payout_id::text, o.user_id, o.wallet_id::text, o.amount,
			o.status, o.attempts, o.next_attempt_at, o.last_error
	`

	rows, err := r.db.pool.Query(ctx, query, limit, staleSeconds)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to claim debit intents")
		return nil, err
	}
	defer rows.Close()

	intents := make([]domain.DebitIntent, 0, limit)
	for rows.Next() {
		var (
			in     domain.DebitIntent
			status string
		)
		if err := rows.Scan(&in.PayoutID, &in.UserID, &in.WalletID, &in.Amount,
			&status, &in.Attempts, &in.NextAttemptAt, &in.LastError); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan debit intent")
			return nil, err
		}
		in.Status = domain.DebitIntentStatus(status)
		intents = append(intents, in)
	}
	return intents, rows.Err()
}

// MarkDone records that the ledger confirmed the debit.
func (r *outboxRepository) MarkDone(ctx context.Context, payoutID string) error {
	pid, err := uuid.Parse(payoutID)
	if err != nil {
		return domain.ErrPayoutNotFound
	}

	_, err = r.db.pool.Exec(ctx, `
		UPDATE payout_debit_outbox
		SET status = 'done',
			done_at = NOW(),
			processing_started_at = NULL,
			last_error = NULL
		WHERE payout_id = $1
	`, pid)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", payoutID).Msg("Failed to mark debit intent done")
	}
	return err
}

// MarkFailed returns the intent to pending with a retry delay.
func (r *outboxRepository) MarkFailed(ctx context.Context, payoutID string, retryAfter time.Duration, reason string) error {
	pid, err := uuid.Parse(payoutID)
	if err != nil {
		return domain.ErrPayoutNotFound
	}

	retrySeconds := int(retryAfter.Seconds())
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	if len(reason) > maxErrorLen {
		reason = reason[:maxErrorLen]
	}

	_, err = r.db.pool.Exec(ctx, `
		UPDATE payout_debit_outbox
		SET status = 'pending',
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			processing_started_at = NULL,
			last_error = $3
		WHERE payout_id = $1 AND status <> 'done'
	`, pid, retrySeconds, reason)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", payoutID).Msg("Failed to mark debit intent failed")
	}
	return err
}
