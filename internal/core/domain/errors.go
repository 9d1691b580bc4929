package domain

import "errors"

var (
	// ErrPayoutNotFound is returned when no payout has the given ID.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrInvalidState is returned when an operation is not allowed in the
	// payout's current status (e.g. verifying a REQUESTED payout).
	ErrInvalidState = errors.New("payout is not in a valid state for this operation")

	// ErrStatusConflict is returned by a conditional transition whose
	// expected current status no longer holds.
	ErrStatusConflict = errors.New("payout status changed concurrently")

	ErrReasonRequired      = errors.New("rejection reason is required")
	ErrIncompleteRequest   = errors.New("payout request is missing user, wallet or destination account")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrWalletNotFound      = errors.New("wallet not found")
)
