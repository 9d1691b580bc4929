package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawEntry_ToEntry(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		scale      int32
		wantID     string
		wantAmount int64
		wantOK     bool
		wantText   string
	}{
		{
			name:       "numeric id and amount",
			raw:        `{"id":42,"amount_out":150000,"transaction_content":"x"}`,
			wantID:     "42",
			wantAmount: 150000,
			wantOK:     true,
			wantText:   "x",
		},
		{
			name:       "decimal string amount",
			raw:        `{"id":"a","amount_out":"150000.00","content":"fallback"}`,
			wantID:     "a",
			wantAmount: 150000,
			wantOK:     true,
			wantText:   "fallback",
		},
		{
			name:       "scaled amount",
			raw:        `{"id":"b","amount_out":"12.34","description":"desc"}`,
			scale:      2,
			wantID:     "b",
			wantAmount: 1234,
			wantOK:     true,
			wantText:   "desc",
		},
		{
			name:   "fractional amount is unusable",
			raw:    `{"id":"c","amount_out":"10.5"}`,
			wantID: "c",
			wantOK: false,
		},
		{
			name:   "garbage amount is unusable",
			raw:    `{"id":"d","amount_out":"ten"}`,
			wantID: "d",
			wantOK: false,
		},
		{
			name:       "primary content wins over fallbacks",
			raw:        `{"id":"e","amount_out":1,"transaction_content":"primary","content":"secondary"}`,
			wantID:     "e",
			wantAmount: 1,
			wantOK:     true,
			wantText:   "primary",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var r rawEntry
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &r))

			entry, ok := r.toEntry(tc.scale)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantID, entry.ID)
			assert.Equal(t, tc.wantAmount, entry.AmountOut)
			assert.Equal(t, tc.wantText, entry.Content)
		})
	}
}

func TestDecodeEnvelope_EmptyTransactions(t *testing.T) {
	entries, err := decodeEnvelope([]byte(`{"transactions":[]}`))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
