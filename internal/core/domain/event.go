package domain

import "time"

// Event bus topics for settlement events.
const (
	TopicPayoutRequested   = "payout:requested"
	TopicPayoutApproved    = "payout:approved"
	TopicPayoutRejected    = "payout:rejected"
	TopicPayoutTransferred = "payout:transferred"
	TopicDebitFailed       = "payout:debit_failed"
)

// SettlementTopics lists every topic the reconciler publishes.
var SettlementTopics = []string{
	TopicPayoutRequested,
	TopicPayoutApproved,
	TopicPayoutRejected,
	TopicPayoutTransferred,
	TopicDebitFailed,
}

// SettlementEvent is the payload published on every settlement topic.
type SettlementEvent struct {
	PayoutID string       `json:"payout_id"`
	UserID   string       `json:"user_id"`
	Status   PayoutStatus `json:"status"`
	Amount   int64        `json:"amount"`
	Actor    string       `json:"actor"`
	Note     string       `json:"note,omitempty"`
	QRURL    string       `json:"qr_url,omitempty"`
	Error    string       `json:"error,omitempty"`
	At       time.Time    `json:"at"`
}
