package messages

import (
	"PayoutRecon/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackData_RoundTrip(t *testing.T) {
	id := "3f2b8c1e-0000-4000-8000-000000000001"
	action, payoutID, ok := ParseCallback(CallbackData(ActionVerify, id))

	require.True(t, ok)
	assert.Equal(t, ActionVerify, action)
	assert.Equal(t, id, payoutID)
}

func TestParseCallback_Rejects(t *testing.T) {
	tests := []string{
		"",
		"approval_accept_1",
		"payout_",
		"payout_verify",
		"payout__123",
		"payout_verify_",
	}

	for _, data := range tests {
		t.Run(data, func(t *testing.T) {
			_, _, ok := ParseCallback(data)
			assert.False(t, ok)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		150000:   "150,000",
		1234567:  "1,234,567",
		-150001:  "-150,001",
	}

	for in, want := range tests {
		assert.Equal(t, want, FormatAmount(in))
	}
}

func TestPayoutButtons_ByStatus(t *testing.T) {
	p := &domain.Payout{ID: "p1", Status: domain.StatusRequested}
	rows := PayoutButtons(p, "https://qr")
	require.Len(t, rows, 1)
	assert.Equal(t, "payout_approve_p1", rows[0][0].Data)
	assert.Equal(t, "payout_reject_p1", rows[0][1].Data)

	p.Status = domain.StatusPending
	assert.Len(t, PayoutButtons(p, ""), 1)

	p.Status = domain.StatusApproved
	rows = PayoutButtons(p, "https://qr")
	require.Len(t, rows, 2)
	assert.Equal(t, "payout_verify_p1", rows[0][0].Data)
	assert.Equal(t, "payout_paid_p1", rows[0][1].Data)
	assert.Equal(t, "https://qr", rows[1][0].URL)

	assert.Len(t, PayoutButtons(p, ""), 1)

	p.Status = domain.StatusTransferred
	assert.Nil(t, PayoutButtons(p, "https://qr"))
	p.Status = domain.StatusRejected
	assert.Nil(t, PayoutButtons(p, ""))
}

func TestPayoutSummary_EscapesHTML(t *testing.T) {
	reason := "<script>bad</script>"
	p := &domain.Payout{
		ID:              "p1",
		UserID:          "u1",
		Amount:          150000,
		AccountNumber:   "0123",
		BankCode:        "MB",
		Status:          domain.StatusRejected,
		RejectionReason: &reason,
	}

	text := PayoutSummary(p, "")
	assert.Contains(t, text, "150,000")
	assert.Contains(t, text, "&lt;script&gt;")
	assert.NotContains(t, text, "<script>")
	assert.NotContains(t, text, "Transfer content")
}

func TestSettlementNotice(t *testing.T) {
	text := SettlementNotice(domain.TopicDebitFailed, domain.SettlementEvent{
		PayoutID: "p1",
		Amount:   5000,
		Actor:    "system:reconciler",
		Error:    "insufficient wallet balance",
	})

	assert.Contains(t, text, "Ledger debit failed")
	assert.Contains(t, text, "5,000")
	assert.Contains(t, text, "insufficient wallet balance")
}

func TestBuilder_BuildEdit_ClearsKeyboard(t *testing.T) {
	edit := NewBuilder(42).WithText("done").WithInlineButtons(nil).BuildEdit(7)

	assert.Equal(t, int64(42), edit.ChatID)
	assert.Equal(t, 7, edit.MessageID)
	assert.Equal(t, ParseMode, edit.ParseMode)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Empty(t, edit.ReplyMarkup.Buttons)
}
