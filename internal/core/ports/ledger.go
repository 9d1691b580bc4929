package ports

import (
	"PayoutRecon/internal/core/domain"
	"context"
	"time"
)

// LedgerService owns wallet balances.
// DebitForPayout must be idempotent on req.PayoutID: a repeated call for an
// already debited payout succeeds without deducting twice.
type LedgerService interface {
	DebitForPayout(ctx context.Context, req domain.DebitRequest) error
}

// WalletStore opens and reads wallets.
type WalletStore interface {
	CreateWallet(ctx context.Context, userID string, openingBalance int64) (*domain.Wallet, error)

	// GetWallet returns the wallet, or domain.ErrWalletNotFound.
	GetWallet(ctx context.Context, id string) (*domain.Wallet, error)
}

// DebitOutbox stores debit intents until the ledger confirms them.
type DebitOutbox interface {
	// Claim locks up to limit due intents (and intents stuck in processing
	// longer than staleAfter) and returns them with Attempts incremented.
	Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]domain.DebitIntent, error)

	MarkDone(ctx context.Context, payoutID string) error

	MarkFailed(ctx context.Context, payoutID string, retryAfter time.Duration, reason string) error
}

// PayoutDebiter performs the ledger side of the commit sequence.
type PayoutDebiter interface {
	Debit(ctx context.Context, intent domain.DebitIntent) error
}
