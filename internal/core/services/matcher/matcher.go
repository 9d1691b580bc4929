// Package matcher decides whether a batch of feed transactions contains the
// transfer expected for a payout.
package matcher

import (
	"PayoutRecon/internal/core/domain"
	"strings"
)

// FindMatch returns the first entry whose outgoing amount equals amount and
// whose content contains token, ignoring case. Feed order decides ties.
func FindMatch(entries []domain.FeedEntry, amount int64, token string) (domain.FeedEntry, bool) {
	if token == "" {
		return domain.FeedEntry{}, false
	}
	want := strings.ToUpper(token)

	for _, e := range entries {
		if e.AmountOut != amount {
			continue
		}
		if strings.Contains(strings.ToUpper(e.Content), want) {
			return e, true
		}
	}
	return domain.FeedEntry{}, false
}
