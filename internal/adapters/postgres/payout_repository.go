package postgres

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var _ ports.PayoutRepository = (*payoutRepository)(nil) // Ensure compliance

const payoutColumns = `
	id::text, user_id, wallet_id::text, amount, account_number_enc, bank_code,
	status, approved_by, approved_at, transferred_by, transfer_note,
	transferred_at, rejected_by, rejection_reason, created_at, updated_at`

type payoutRepository struct {
	db     *DB
	cipher ports.FieldCipher
	log    zerolog.Logger
}

// NewPayoutRepository creates a payout store. Destination account numbers
// are sealed with cipher before they are written.
func NewPayoutRepository(db *DB, cipher ports.FieldCipher, baseLogger *zerolog.Logger) ports.PayoutRepository {
	return &payoutRepository{
		db:     db,
		cipher: cipher,
		log:    baseLogger.With().Str("component", "payout_repo").Logger(),
	}
}

// Create inserts a new payout request.
func (r *payoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return fmt.Errorf("invalid payout id %q: %w", p.ID, err)
	}
	walletID, err := uuid.Parse(p.WalletID)
	if err != nil {
		return fmt.Errorf("invalid wallet id %q: %w", p.WalletID, domain.ErrWalletNotFound)
	}

	sealed, err := r.cipher.Seal(p.AccountNumber, p.ID)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", p.ID).Msg("Failed to seal account number")
		return err
	}

	query := `
		INSERT INTO payouts (
			id, user_id, wallet_id, amount, account_number_enc, bank_code,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.pool.Exec(ctx, query,
		id,
		p.UserID,
		walletID,
		p.Amount,
		sealed,
		p.BankCode,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrWalletNotFound
		}
		r.log.Error().Err(err).Str("payout_id", p.ID).Msg("Failed to insert payout")
	}
	return err
}

// GetByID finds a payout by its ID.
func (r *payoutRepository) GetByID(ctx context.Context, id string) (*domain.Payout, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrPayoutNotFound
	}

	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`
	p, err := r.scanPayout(r.db.pool.QueryRow(ctx, query, pid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPayoutNotFound
	}
	return p, err
}

// Transition applies t only while the stored status still equals t.From.
// Moving to TRANSFERRED also enqueues the debit intent in the same
// transaction.
func (r *payoutRepository) Transition(ctx context.Context, t domain.Transition) (*domain.Payout, error) {
	pid, err := uuid.Parse(t.PayoutID)
	if err != nil {
		return nil, domain.ErrPayoutNotFound
	}

	var set string
	args := []any{pid, string(t.From), string(t.To), t.At}
	switch t.To {
	case domain.StatusApproved:
		set = `approved_by = $5, approved_at = $4`
		args = append(args, t.Actor)
	case domain.StatusTransferred:
		set = `transferred_by = $5, transfer_note = $6, transferred_at = $4`
		args = append(args, t.Actor, t.Note)
	case domain.StatusRejected:
		set = `rejected_by = $5, rejection_reason = $6`
		args = append(args, t.Actor, t.Note)
	default:
		return nil, fmt.Errorf("unsupported transition to %s: %w", t.To, domain.ErrInvalidState)
	}

	log := r.log.With().Str("payout_id", t.PayoutID).Str("from", string(t.From)).Str("to", string(t.To)).Logger()

	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin transition")
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE payouts
		SET status = $3, updated_at = $4, ` + set + `
		WHERE id = $1 AND status = $2
		RETURNING ` + payoutColumns

	p, err := r.scanPayout(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payouts WHERE id = $1)`, pid).Scan(&exists); err != nil {
			log.Error().Err(err).Msg("Failed to check payout existence")
			return nil, err
		}
		if !exists {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, domain.ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}

	if t.To == domain.StatusTransferred {
		if err := enqueueDebitTx(ctx, tx, domain.IntentFor(p)); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue debit intent")
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to commit transition")
		return nil, err
	}
	return p, nil
}

// ListByStatus returns payouts in status, oldest first.
func (r *payoutRepository) ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE status = $1 ORDER BY created_at LIMIT $2`
	rows, err := r.db.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		r.log.Error().Err(err).Str("status", string(status)).Msg("Failed to query payouts")
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		p, err := r.scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		r.log.Error().Err(err).Msg("Error iterating payout rows")
		return nil, err
	}
	return payouts, nil
}

// CountByStatus counts payouts in status.
func (r *payoutRepository) CountByStatus(ctx context.Context, status domain.PayoutStatus) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payouts WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		r.log.Error().Err(err).Str("status", string(status)).Msg("Failed to count payouts")
	}
	return n, err
}

// CountApprovedBefore counts APPROVED payouts whose approval is older than cutoff.
func (r *payoutRepository) CountApprovedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM payouts WHERE status = $1 AND approved_at < $2`
	err := r.db.pool.QueryRow(ctx, query, string(domain.StatusApproved), cutoff).Scan(&n)
	if err != nil {
		r.log.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to count stale approved payouts")
	}
	return n, err
}

// scanPayout scans one row and opens the sealed account number.
func (r *payoutRepository) scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	var status, sealed string

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.WalletID,
		&p.Amount,
		&sealed,
		&p.BankCode,
		&status,
		&p.ApprovedBy,
		&p.ApprovedAt,
		&p.TransferredBy,
		&p.TransferNote,
		&p.TransferredAt,
		&p.RejectedBy,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.log.Error().Err(err).Msg("Failed to scan payout row")
		return nil, err
	}
	p.Status = domain.PayoutStatus(status)

	account, err := r.cipher.Open(sealed, p.ID)
	if err != nil {
		r.log.Error().Err(err).Str("payout_id", p.ID).Msg("Failed to open account number")
		return nil, err
	}
	p.AccountNumber = account

	return &p, nil
}
