// Package token derives the payment-identification content a transfer must
// carry, and renders it into a QR-payable link.
package token

import (
	"PayoutRecon/internal/core/domain"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Prefix starts every payment token.
	Prefix = "PAYOUT"

	idChars = 8

	// DefaultBankCode is used when a payout has no destination bank code.
	DefaultBankCode = "MB"

	DefaultQRTemplate = "https://qr.sepay.vn/img?acc={account}&bank={bank}&amount={amount}&des={content}"
)

// TokenFor returns "PAYOUT" followed by the upper-cased first 8 characters
// of the payout ID. Shorter IDs are used whole.
func TokenFor(payoutID string) string {
	head := payoutID
	if len(head) > idChars {
		head = head[:idChars]
	}
	return Prefix + strings.ToUpper(head)
}

// QRURLFor substitutes the payout's destination, amount and token into
// templateURL. A missing account yields an empty substitution.
func QRURLFor(p domain.Payout, templateURL string) string {
	if templateURL == "" {
		templateURL = DefaultQRTemplate
	}

	bank := p.BankCode
	if bank == "" {
		bank = DefaultBankCode
	}

	r := strings.NewReplacer(
		"{account}", url.QueryEscape(p.AccountNumber),
		"{bank}", url.QueryEscape(bank),
		"{amount}", strconv.FormatInt(p.Amount, 10),
		"{content}", url.QueryEscape(TokenFor(p.ID)),
	)
	return r.Replace(templateURL)
}
