package domain

import "time"

// DebitRequest asks the ledger to deduct a settled payout from a wallet.
// PayoutID doubles as the idempotency reference.
type DebitRequest struct {
	PayoutID string
	UserID   string
	WalletID string
	Amount   int64
}

// DebitIntentStatus tracks an outbox row.
type DebitIntentStatus string

const (
	IntentPending    DebitIntentStatus = "pending"
	IntentProcessing DebitIntentStatus = "processing"
	IntentDone       DebitIntentStatus = "done"
)

// DebitIntent is the outbox record written together with the
// APPROVED -> TRANSFERRED transition.
type DebitIntent struct {
	PayoutID      string
	UserID        string
	WalletID      string
	Amount        int64
	Status        DebitIntentStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     *string
}

// IntentFor builds the debit intent for a transferred payout.
func IntentFor(p *Payout) DebitIntent {
	return DebitIntent{
		PayoutID: p.ID,
		UserID:   p.UserID,
		WalletID: p.WalletID,
		Amount:   p.Amount,
		Status:   IntentPending,
	}
}

// Request converts the intent into a ledger call.
func (i DebitIntent) Request() DebitRequest {
	return DebitRequest{
		PayoutID: i.PayoutID,
		UserID:   i.UserID,
		WalletID: i.WalletID,
		Amount:   i.Amount,
	}
}

// Wallet is a user's balance in minor units.
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
