package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

func TestDecrementBalance_InsufficientIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, &domain.User{WalletBalanceCents: 100})

	ok, err := DecrementBalance(ctx, db, u.ID, 150)
	if err != nil {
		t.Fatalf("DecrementBalance: %v", err)
	}
	if ok {
		t.Fatal("debit above balance must report ok=false")
	}
	got, _ := GetUser(ctx, db, u.ID)
	if got.WalletBalanceCents != 100 {
		t.Fatalf("failed debit must leave balance untouched, got %d", got.WalletBalanceCents)
	}

	ok, err = DecrementBalance(ctx, db, u.ID, 100)
	if err != nil || !ok {
		t.Fatalf("exact debit: ok=%v err=%v", ok, err)
	}
	got, _ = GetUser(ctx, db, u.ID)
	if got.WalletBalanceCents != 0 {
		t.Fatalf("balance = %d, want 0", got.WalletBalanceCents)
	}
}

func TestDecrementBalance_NeverGoesNegativeUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, &domain.User{WalletBalanceCents: 50})

	const attempts = 10
	const amount = int64(20)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			ok, err := DecrementBalance(ctx, db, u.ID, amount)
			if err != nil {
				t.Errorf("DecrementBalance: %v", err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 50 cents funds at most two 20-cent debits.
	if succeeded != 2 {
		t.Fatalf("%d debits succeeded, want 2", succeeded)
	}
	got, _ := GetUser(ctx, db, u.ID)
	if got.WalletBalanceCents != 10 {
		t.Fatalf("balance = %d, want 10", got.WalletBalanceCents)
	}
}

func TestAppendLedgerEntry_DuplicateRef(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, &domain.User{})

	if _, err := AppendLedgerEntry(ctx, db, u.ID, -25, domain.LedgerReasonUploadUsage, "upload:abc", `{"model":"m1"}`); err != nil {
		t.Fatalf("first append: %v", err)
	}
	_, err := AppendLedgerEntry(ctx, db, u.ID, -25, domain.LedgerReasonUploadUsage, "upload:abc", "")
	if !errors.Is(err, ErrDuplicateRef) {
		t.Fatalf("expected ErrDuplicateRef, got %v", err)
	}

	// A different user may reuse the same reference string.
	other := seedUser(t, db, &domain.User{})
	if _, err := AppendLedgerEntry(ctx, db, other.ID, -25, domain.LedgerReasonUploadUsage, "upload:abc", ""); err != nil {
		t.Fatalf("other user, same ref: %v", err)
	}
}

func TestLedgerListAndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, &domain.User{})

	for _, ref := range []string{"r1", "r2", "r3"} {
		if _, err := AppendLedgerEntry(ctx, db, u.ID, 100, domain.LedgerReasonTopup, ref, ""); err != nil {
			t.Fatalf("append %s: %v", ref, err)
		}
	}
	total, err := CountLedgerEntries(ctx, db, u.ID)
	if err != nil || total != 3 {
		t.Fatalf("count = %d err=%v, want 3", total, err)
	}
	page, err := ListLedgerPage(ctx, db, u.ID, 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}

	e, err := FindLedgerEntryByRef(ctx, db, u.ID, "r2")
	if err != nil {
		t.Fatalf("find by ref: %v", err)
	}
	if e.Reason != domain.LedgerReasonTopup {
		t.Fatalf("reason = %s", e.Reason)
	}
}
