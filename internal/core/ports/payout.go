package ports

import (
	"PayoutRecon/internal/core/domain"
	"context"
	"time"
)

// PayoutRepository defines the persistence operations for payouts.
type PayoutRepository interface {
	// Create saves a new payout request.
	Create(ctx context.Context, payout *domain.Payout) error

	// GetByID returns the payout, or domain.ErrPayoutNotFound.
	GetByID(ctx context.Context, id string) (*domain.Payout, error)

	// Transition applies a conditional status change and returns the
	// updated payout. It returns domain.ErrStatusConflict when the stored
	// status no longer equals t.From. A transition to TRANSFERRED also
	// records the debit intent atomically with the status change.
	Transition(ctx context.Context, t domain.Transition) (*domain.Payout, error)

	// ListByStatus returns payouts in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]*domain.Payout, error)

	CountByStatus(ctx context.Context, status domain.PayoutStatus) (int, error)

	// CountApprovedBefore counts APPROVED payouts approved before cutoff.
	CountApprovedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
