package postgres

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const entryKindPayoutDebit = "payout_debit"

// Ensure compliance
var (
	_ ports.LedgerService = (*ledgerRepository)(nil)
	_ ports.WalletStore   = (*ledgerRepository)(nil)
)

type ledgerRepository struct {
	db  *DB
	log zerolog.Logger
}

// LedgerRepository is the Postgres wallet ledger.
type LedgerRepository interface {
	ports.LedgerService
	ports.WalletStore
}

// NewLedgerRepository creates the wallet ledger.
func NewLedgerRepository(db *DB, baseLogger *zerolog.Logger) LedgerRepository {
	return &ledgerRepository{
		db:  db,
		log: baseLogger.With().Str("component", "ledger_repo").Logger(),
	}
}

// CreateWallet opens a wallet with an opening balance.
func (r *ledgerRepository) CreateWallet(ctx context.Context, userID string, openingBalance int64) (*domain.Wallet, error) {
	if openingBalance < 0 {
		return nil, domain.ErrInvalidAmount
	}

	id := uuid.New()
	var w domain.Wallet
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, $3)
		RETURNING id::text, user_id, balance, created_at, updated_at
	`, id, userID, openingBalance).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("Failed to create wallet")
		return nil, err
	}
	return &w, nil
}

// GetWallet returns the wallet with its current balance.
func (r *ledgerRepository) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	wid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrWalletNotFound
	}

	var w domain.Wallet
	err = r.db.pool.QueryRow(ctx, `
		SELECT id::text, user_id, balance, created_at, updated_at
		FROM wallets WHERE id = $1
	`, wid).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Str("wallet_id", id).Msg("Failed to get wallet")
		return nil, err
	}
	return &w, nil
}

// DebitForPayout deducts req.Amount from the wallet once per payout.
// A repeated call for the same payout finds the existing entry and
// succeeds without touching the balance.
func (r *ledgerRepository) DebitForPayout(ctx context.Context, req domain.DebitRequest) error {
	log := r.log.With().Str("payout_id", req.PayoutID).Str("wallet_id", req.WalletID).Logger()

	if req.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	wid, err := uuid.Parse(req.WalletID)
	if err != nil {
		return domain.ErrWalletNotFound
	}

	tx, err := r.db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin debit")
		return err
	}
	defer tx.Rollback(ctx)

	// The wallet row lock serialises debits, so the reference check
	// below cannot race with a concurrent debit of the same payout.
	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, wid).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrWalletNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to lock wallet")
		return err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallet_entries WHERE reference = $1)`, req.PayoutID).Scan(&exists); err != nil {
		log.Error().Err(err).Msg("Failed to check ledger reference")
		return err
	}
	if exists {
		log.Info().Msg("Payout already debited")
		return nil
	}

	if balance < req.Amount {
		log.Warn().Int64("balance", balance).Int64("amount", req.Amount).Msg("Insufficient balance for payout debit")
		return domain.ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = NOW() WHERE id = $1
	`, wid, req.Amount); err != nil {
		log.Error().Err(err).Msg("Failed to update wallet balance")
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_entries (wallet_id, amount, kind, reference)
		VALUES ($1, $2, $3, $4)
	`, wid, -req.Amount, entryKindPayoutDebit, req.PayoutID); err != nil {
		log.Error().Err(err).Msg("Failed to insert ledger entry")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to commit debit")
		return err
	}

	log.Info().Int64("amount", req.Amount).Msg("Wallet debited for payout")
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
