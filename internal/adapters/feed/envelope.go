package feed

import (
	"PayoutRecon/internal/core/domain"
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrMalformedResponse is returned when no known envelope fits the body.
var ErrMalformedResponse = errors.New("malformed feed response")

// rawEntry is one transaction as the gateway sends it. ID and amount may
// arrive as strings or numbers.
type rawEntry struct {
	ID                 json.RawMessage `json:"id"`
	AmountOut          json.RawMessage `json:"amount_out"`
	TransactionContent *string         `json:"transaction_content"`
	Content            *string         `json:"content"`
	Description        *string         `json:"description"`
}

// envelopeParser extracts the transaction list from one response shape.
// ok is false when the body does not have that shape.
type envelopeParser func(body []byte) (entries []rawEntry, ok bool)

// envelopeParsers are tried in order; the first that fits wins.
var envelopeParsers = []envelopeParser{
	parseFlatArray,
	parseTransactionsObject,
	parseDataTransactions,
}

func decodeEnvelope(body []byte) ([]rawEntry, error) {
	for _, parse := range envelopeParsers {
		if entries, ok := parse(body); ok {
			return entries, nil
		}
	}
	return nil, ErrMalformedResponse
}

func parseFlatArray(body []byte) ([]rawEntry, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var entries []rawEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func parseTransactionsObject(body []byte) ([]rawEntry, bool) {
	var env struct {
		Transactions *[]rawEntry `json:"transactions"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Transactions == nil {
		return nil, false
	}
	return *env.Transactions, true
}

func parseDataTransactions(body []byte) ([]rawEntry, bool) {
	var env struct {
		Data *struct {
			Transactions *[]rawEntry `json:"transactions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Data == nil || env.Data.Transactions == nil {
		return nil, false
	}
	return *env.Data.Transactions, true
}

// toEntry converts the raw entry. ok is false when the amount could not be
// represented in minor units; the entry then carries amount 0.
func (r rawEntry) toEntry(scale int32) (domain.FeedEntry, bool) {
	entry := domain.FeedEntry{
		ID:      scalarString(r.ID),
		Content: r.content(),
	}

	amount, ok := parseMinorUnits(r.AmountOut, scale)
	entry.AmountOut = amount
	return entry, ok
}

func (r rawEntry) content() string {
	for _, c := range []*string{r.TransactionContent, r.Content, r.Description} {
		if c != nil && *c != "" {
			return *c
		}
	}
	return ""
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseMinorUnits(raw json.RawMessage, scale int32) (int64, bool) {
	text := scalarString(raw)
	if text == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, false
	}
	d = d.Shift(scale)
	if !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}
