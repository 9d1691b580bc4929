package postgres

import (
	"PayoutRecon/internal/core/domain"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestLedger_DebitForPayout_Idempotent(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	ledger := NewLedgerRepository(testDB, &nop)
	w := createTestWallet(t, 500_000)

	req := domain.DebitRequest{PayoutID: uuid.NewString(), UserID: w.UserID, WalletID: w.ID, Amount: 150_000}

	// Concurrent repeats of the same debit deduct once
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.DebitForPayout(t.Context(), req); err != nil {
				t.Errorf("DebitForPayout failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := ledger.GetWallet(t.Context(), w.ID)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if got.Balance != 350_000 {
		t.Errorf("expected balance 350000, got %d", got.Balance)
	}
}

func TestLedger_DebitForPayout_Errors(t *testing.T) {
	requireDB(t)
	nop := zerolog.Nop()
	ledger := NewLedgerRepository(testDB, &nop)
	w := createTestWallet(t, 100)

	err := ledger.DebitForPayout(t.Context(), domain.DebitRequest{PayoutID: uuid.NewString(), WalletID: w.ID, Amount: 101})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}

	err = ledger.DebitForPayout(t.Context(), domain.DebitRequest{PayoutID: uuid.NewString(), WalletID: uuid.NewString(), Amount: 1})
	if !errors.Is(err, domain.ErrWalletNotFound) {
		t.Errorf("expected ErrWalletNotFound, got %v", err)
	}

	got, err := ledger.GetWallet(t.Context(), w.ID)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if got.Balance != 100 {
		t.Errorf("balance changed after failed debit: %d", got.Balance)
	}
}
