package messages

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

// ParseMode is used for every operator message.
const ParseMode = "HTML"

// Callback actions carried in "payout_<action>_<id>" button data.
const (
	CallbackPrefix = "payout_"

	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionVerify  = "verify"
	ActionPaid    = "paid"
)

// CallbackData builds the button payload for an action on a payout.
func CallbackData(action, payoutID string) string {
	return CallbackPrefix + action + "_" + payoutID
}

// ParseCallback splits button data back into action and payout ID.
func ParseCallback(data string) (action, payoutID string, ok bool) {
	rest, found := strings.CutPrefix(data, CallbackPrefix)
	if !found {
		return "", "", false
	}
	action, payoutID, found = strings.Cut(rest, "_")
	if !found || action == "" || payoutID == "" {
		return "", "", false
	}
	return action, payoutID, true
}

// FormatAmount renders minor units with thousands separators.
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

// PayoutSummary renders a payout card for operators.
func PayoutSummary(p *domain.Payout, paymentToken string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Payout</b> <code>%s</code>\n", esc(p.ID))
	fmt.Fprintf(&b, "Status: <b>%s</b>\n", esc(string(p.Status)))
	fmt.Fprintf(&b, "Amount: %s\n", FormatAmount(p.Amount))
	fmt.Fprintf(&b, "User: <code>%s</code>\n", esc(p.UserID))
	fmt.Fprintf(&b, "Account: <code>%s</code> (%s)\n", esc(p.AccountNumber), esc(p.BankCode))
	if paymentToken != "" {
		fmt.Fprintf(&b, "Transfer content: <code>%s</code>\n", esc(paymentToken))
	}
	if p.ApprovedBy != nil {
		fmt.Fprintf(&b, "Approved by %s\n", esc(*p.ApprovedBy))
	}
	if p.TransferredBy != nil {
		fmt.Fprintf(&b, "Transferred by %s", esc(*p.TransferredBy))
		if p.TransferredAt != nil {
			fmt.Fprintf(&b, " at %s", p.TransferredAt.UTC().Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	if p.TransferNote != nil && *p.TransferNote != "" {
		fmt.Fprintf(&b, "Note: %s\n", esc(*p.TransferNote))
	}
	if p.RejectionReason != nil {
		fmt.Fprintf(&b, "Rejected: %s\n", esc(*p.RejectionReason))
	}
	return strings.TrimRight(b.String(), "\n")
}

// PayoutButtons returns the actions an operator can take in the payout's
// current status. Terminal payouts get none.
func PayoutButtons(p *domain.Payout, qrURL string) [][]ports.Button {
	switch {
	case p.Status.IsAwaitingReview():
		return [][]ports.Button{{
			{Text: "✅ Approve", Data: CallbackData(ActionApprove, p.ID)},
			{Text: "❌ Reject", Data: CallbackData(ActionReject, p.ID)},
		}}
	case p.Status == domain.StatusApproved:
		rows := [][]ports.Button{{
			{Text: "🔎 Verify", Data: CallbackData(ActionVerify, p.ID)},
			{Text: "💸 Mark paid", Data: CallbackData(ActionPaid, p.ID)},
		}}
		if qrURL != "" {
			rows = append(rows, []ports.Button{{Text: "QR code", URL: qrURL}})
		}
		return rows
	default:
		return nil
	}
}

// VerifyNotice is the short callback answer after a verification.
func VerifyNotice(res *domain.VerifyResult) string {
	switch res.Outcome {
	case domain.OutcomeSettled:
		return "Transfer found, payout settled"
	case domain.OutcomeAlreadySettled:
		return "Already settled"
	case domain.OutcomeFeedNotConfigured:
		return "Bank feed is not configured"
	case domain.OutcomeFeedUnavailable:
		return "Bank feed unavailable, try again"
	default:
		return "No matching transfer yet"
	}
}

// SettlementNotice renders a settlement event for the operator channel.
func SettlementNotice(topic string, evt domain.SettlementEvent) string {
	var head string
	switch topic {
	case domain.TopicPayoutRequested:
		head = "🔵 New payout request"
	case domain.TopicPayoutApproved:
		head = "🟡 Payout approved"
	case domain.TopicPayoutRejected:
		head = "⚪ Payout rejected"
	case domain.TopicPayoutTransferred:
		head = "🟢 Payout transferred"
	case domain.TopicDebitFailed:
		head = "🔴 Ledger debit failed"
	default:
		head = esc(topic)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", head)
	fmt.Fprintf(&b, "ID: <code>%s</code>\n", esc(evt.PayoutID))
	fmt.Fprintf(&b, "Amount: %s\n", FormatAmount(evt.Amount))
	if evt.Actor != "" {
		fmt.Fprintf(&b, "By: %s\n", esc(evt.Actor))
	}
	if evt.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", esc(evt.Note))
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, "Error: <code>%s</code>\n", esc(evt.Error))
	}
	return strings.TrimRight(b.String(), "\n")
}

func esc(s string) string {
	return html.EscapeString(s)
}
