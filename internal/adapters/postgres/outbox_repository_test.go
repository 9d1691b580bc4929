package postgres

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestOutbox_ClaimFailDone(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)
	outbox := NewOutboxRepository(testDB, &nop)

	// 1. Setup: a transferred payout has a pending intent
	w := createTestWallet(t, 1_000_000)
	p := createTestPayout(t, repo, w, domain.StatusApproved)
	if _, err := repo.Transition(t.Context(), domain.Transition{
		PayoutID: p.ID, From: domain.StatusApproved, To: domain.StatusTransferred, Actor: "op", At: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	// 2. Claim picks it up
	claimed := claimFor(t, outbox, p.ID)
	if claimed == nil {
		t.Fatal("intent was not claimed")
	}
	if claimed.Attempts != 1 || claimed.Amount != p.Amount || claimed.WalletID != w.ID {
		t.Errorf("Unexpected intent: %+v", claimed)
	}

	// 3. While processing and not stale, it is not claimed again
	if again := claimFor(t, outbox, p.ID); again != nil {
		t.Error("processing intent was claimed twice")
	}

	// 4. Failed intents wait for their retry time
	if err := outbox.MarkFailed(t.Context(), p.ID, time.Hour, "ledger down"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if again := claimFor(t, outbox, p.ID); again != nil {
		t.Error("intent claimed before its retry time")
	}

	// 5. Done intents are never claimed
	if err := outbox.MarkDone(t.Context(), p.ID); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	var status string
	if err := testDB.pool.QueryRow(t.Context(), "SELECT status FROM payout_debit_outbox WHERE payout_id = $1", uuid.MustParse(p.ID)).Scan(&status); err != nil {
		t.Fatalf("Failed to read intent: %v", err)
	}
	if status != string(domain.IntentDone) {
		t.Errorf("expected status done, got %s", status)
	}
}

// claimFor claims a batch and returns the intent for payoutID, if any.
// Other claimed intents are released again.
func claimFor(t *testing.T, outbox ports.DebitOutbox, payoutID string) *domain.DebitIntent {
	t.Helper()
	intents, err := outbox.Claim(t.Context(), 100, time.Hour)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	var found *domain.DebitIntent
	for i := range intents {
		if intents[i].PayoutID == payoutID {
			found = &intents[i]
			continue
		}
		_ = outbox.MarkFailed(t.Context(), intents[i].PayoutID, time.Second, "released by test")
	}
	return found
}
