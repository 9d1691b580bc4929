package ports

import (
	"PayoutRecon/internal/core/domain"
	"context"
)

// TransactionFeed lists the operator account's recent outgoing transfers.
type TransactionFeed interface {
	ListRecentOutgoing(ctx context.Context, limit int) (domain.FeedBatch, error)
}
