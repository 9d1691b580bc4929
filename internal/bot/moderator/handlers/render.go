package handlers

import (
	"PayoutRecon/internal/bot/messages"
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/services/token"
	"errors"
)

// card renders a payout with the buttons its status allows.
// Approved payouts also show the transfer content and QR link.
func card(chatID int64, p *domain.Payout, qrTemplate string) *messages.Builder {
	var paymentToken, qrURL string
	if p.Status == domain.StatusApproved {
		paymentToken = token.TokenFor(p.ID)
		qrURL = token.QRURLFor(*p, qrTemplate)
	}

	return messages.NewBuilder(chatID).
		WithText(messages.PayoutSummary(p, paymentToken)).
		WithInlineButtons(messages.PayoutButtons(p, qrURL))
}

// describe turns a service error into a short operator-facing message.
func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrPayoutNotFound):
		return "Payout not found"
	case errors.Is(err, domain.ErrInvalidState):
		return "Payout is not in a state that allows this"
	case errors.Is(err, domain.ErrStatusConflict):
		return "Payout changed at the same time, refreshed"
	case errors.Is(err, errUnknownAction):
		return "Unknown action"
	case errors.Is(err, domain.ErrReasonRequired):
		return "A rejection reason is required"
	default:
		return "Something went wrong, check the logs"
	}
}

// refreshable reports whether the card should be re-rendered after err.
func refreshable(err error) bool {
	return errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrStatusConflict)
}
