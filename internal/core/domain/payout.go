package domain

import (
	"time"
)

// PayoutStatus is a custom type for our payout state machine ENUM
type PayoutStatus string

const (
	StatusRequested   PayoutStatus = "REQUESTED"
	StatusPending     PayoutStatus = "PENDING" // Legacy synonym of REQUESTED
	StatusApproved    PayoutStatus = "APPROVED"
	StatusTransferred PayoutStatus = "TRANSFERRED"
	StatusRejected    PayoutStatus = "REJECTED"
)

// IsAwaitingReview reports whether an operator can still approve or reject.
func (s PayoutStatus) IsAwaitingReview() bool {
	return s == StatusRequested || s == StatusPending
}

// IsTerminal reports whether no further transition is permitted.
func (s PayoutStatus) IsTerminal() bool {
	return s == StatusTransferred || s == StatusRejected
}

// Payout represents one withdrawal request.
type Payout struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	WalletID        string       `json:"wallet_id"`
	Amount          int64        `json:"amount"` // Minor currency units
	AccountNumber   string       `json:"account_number"`
	BankCode        string       `json:"bank_code"`
	Status          PayoutStatus `json:"status"`
	ApprovedBy      *string      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time   `json:"approved_at,omitempty"`
	TransferredBy   *string      `json:"transferred_by,omitempty"` // System actor or operator
	TransferNote    *string      `json:"transfer_note,omitempty"`
	TransferredAt   *time.Time   `json:"transferred_at,omitempty"`
	RejectedBy      *string      `json:"rejected_by,omitempty"`
	RejectionReason *string      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewPayout holds the fields a client supplies when requesting a payout.
type NewPayout struct {
	UserID        string `json:"user_id"`
	WalletID      string `json:"wallet_id"`
	Amount        int64  `json:"amount"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

// Transition describes one conditional status change.
// It only succeeds while the stored status still equals From.
type Transition struct {
	PayoutID string
	From     PayoutStatus
	To       PayoutStatus
	Actor    string
	Note     string // Transfer note or rejection reason
	At       time.Time
}

// ApproveResult is returned to the operator after an approval.
type ApproveResult struct {
	Payout *Payout `json:"payout"`
	Token  string  `json:"token"`
	QRURL  string  `json:"qr_url"`
}

// VerifyOutcome explains how an on-demand verification ended.
type VerifyOutcome string

const (
	OutcomeAlreadySettled    VerifyOutcome = "already_settled"
	OutcomeSettled           VerifyOutcome = "settled"
	OutcomeNoMatch           VerifyOutcome = "no_match"
	OutcomeFeedNotConfigured VerifyOutcome = "feed_not_configured"
	OutcomeFeedUnavailable   VerifyOutcome = "feed_unavailable"
)

// VerifyResult is the structured answer of an on-demand verification.
type VerifyResult struct {
	Matched       bool          `json:"matched"`
	Status        PayoutStatus  `json:"status"`
	Outcome       VerifyOutcome `json:"outcome"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Payout        *Payout       `json:"payout"`
}
