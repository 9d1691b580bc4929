package postgres

import (
	"PayoutRecon/internal/core/domain"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestPayoutRepository_CreateAndGet(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)

	// 1. Setup
	w := createTestWallet(t, 1_000_000)
	p := createTestPayout(t, repo, w, domain.StatusRequested)

	// 2. The stored account number must be sealed
	var stored string
	if err := testDB.pool.QueryRow(t.Context(), "SELECT account_number_enc FROM payouts WHERE id = $1", uuid.MustParse(p.ID)).Scan(&stored); err != nil {
		t.Fatalf("Failed to read raw row: %v", err)
	}
	if stored == p.AccountNumber {
		t.Fatal("Account number was stored in plaintext")
	}

	// 3. Get
	got, err := repo.GetByID(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.AccountNumber != "0123456789" || got.Status != domain.StatusRequested || got.Amount != 150000 {
		t.Errorf("Unexpected payout: %+v", got)
	}
}

func TestPayoutRepository_GetByID_NotFound(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		if _, err := repo.GetByID(t.Context(), id); !errors.Is(err, domain.ErrPayoutNotFound) {
			t.Errorf("GetByID(%q): expected ErrPayoutNotFound, got %v", id, err)
		}
	}
}

func TestPayoutRepository_Transition(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)
	w := createTestWallet(t, 1_000_000)
	p := createTestPayout(t, repo, w, domain.StatusRequested)
	now := time.Now().UTC()

	// 1. REQUESTED -> APPROVED
	approved, err := repo.Transition(t.Context(), domain.Transition{
		PayoutID: p.ID, From: domain.StatusRequested, To: domain.StatusApproved, Actor: "op-1", At: now,
	})
	if err != nil {
		t.Fatalf("approve transition failed: %v", err)
	}
	if approved.Status != domain.StatusApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != "op-1" {
		t.Errorf("Unexpected approved payout: %+v", approved)
	}

	// 2. Stale expected status conflicts
	_, err = repo.Transition(t.Context(), domain.Transition{
		PayoutID: p.ID, From: domain.StatusRequested, To: domain.StatusRejected, Actor: "op-2", Note: "late", At: now,
	})
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	// 3. APPROVED -> TRANSFERRED enqueues the debit
	transferred, err := repo.Transition(t.Context(), domain.Transition{
		PayoutID: p.ID, From: domain.StatusApproved, To: domain.StatusTransferred, Actor: "system:auto-reconcile", Note: "txn-1", At: now,
	})
	if err != nil {
		t.Fatalf("transfer transition failed: %v", err)
	}
	if transferred.TransferNote == nil || *transferred.TransferNote != "txn-1" {
		t.Errorf("Transfer note not stored: %+v", transferred)
	}

	var count int
	if err := testDB.pool.QueryRow(t.Context(), "SELECT COUNT(*) FROM payout_debit_outbox WHERE payout_id = $1", uuid.MustParse(p.ID)).Scan(&count); err != nil {
		t.Fatalf("Failed to count outbox rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 debit intent, got %d", count)
	}

	// 4. Missing payout
	_, err = repo.Transition(t.Context(), domain.Transition{
		PayoutID: uuid.NewString(), From: domain.StatusApproved, To: domain.StatusTransferred, At: now,
	})
	if !errors.Is(err, domain.ErrPayoutNotFound) {
		t.Errorf("expected ErrPayoutNotFound, got %v", err)
	}
}

func TestPayoutRepository_ConcurrentTransitionHasOneWinner(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)
	w := createTestWallet(t, 1_000_000)
	p := createTestPayout(t, repo, w, domain.StatusApproved)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Transition(t.Context(), domain.Transition{
				PayoutID: p.ID, From: domain.StatusApproved, To: domain.StatusTransferred, Actor: "racer", At: time.Now().UTC(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrStatusConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != 7 {
		t.Errorf("expected 1 win and 7 conflicts, got %d and %d", wins, conflicts)
	}
}

func TestPayoutRepository_ListAndCount(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)
	w := createTestWallet(t, 1_000_000)

	before, err := repo.CountByStatus(t.Context(), domain.StatusApproved)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}

	p := createTestPayout(t, repo, w, domain.StatusApproved)

	after, err := repo.CountByStatus(t.Context(), domain.StatusApproved)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if after != before+1 {
		t.Errorf("expected count %d, got %d", before+1, after)
	}

	list, err := repo.ListByStatus(t.Context(), domain.StatusApproved, 1000)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	found := false
	for _, item := range list {
		if item.ID == p.ID {
			found = true
		}
	}
	if !found {
		t.Error("created payout missing from ListByStatus")
	}
}

func TestPayoutRepository_CountApprovedBefore(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	repo := NewPayoutRepository(testDB, testCipher, &nop)
	w := createTestWallet(t, 1_000_000)
	now := time.Now().UTC().Truncate(time.Microsecond)

	// 1. One payout approved an hour ago, one approved just now
	old := createTestPayout(t, repo, w, domain.StatusRequested)
	fresh := createTestPayout(t, repo, w, domain.StatusRequested)
	for _, tc := range []struct {
		id string
		at time.Time
	}{{old.ID, now.Add(-time.Hour)}, {fresh.ID, now}} {
		if _, err := repo.Transition(t.Context(), domain.Transition{
			PayoutID: tc.id, From: domain.StatusRequested, To: domain.StatusApproved, Actor: "op-1", At: tc.at,
		}); err != nil {
			t.Fatalf("approve transition failed: %v", err)
		}
	}

	// 2. A cutoff between the two counts only the old approval
	between, err := repo.CountApprovedBefore(t.Context(), now.Add(-3*time.Minute))
	if err != nil {
		t.Fatalf("CountApprovedBefore failed: %v", err)
	}
	after, err := repo.CountApprovedBefore(t.Context(), now.Add(time.Second))
	if err != nil {
		t.Fatalf("CountApprovedBefore failed: %v", err)
	}
	if after-between != 1 {
		t.Errorf("expected the fresh approval to be excluded, got %d before and %d after", between, after)
	}
}
