package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newRegisteredStore(t *testing.T) (Store, string) {
	t.Helper()
	store := NewInMemory()
	walletID := uuid.NewString()
	if err := store.Register(context.Background(), walletID); err != nil {
		t.Fatalf("register: %v", err)
	}
	return store, walletID
}

func TestApplyDepositThenWithdraw(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)

	if _, err := store.Apply(ctx, Input{WalletID: walletID, Amount: 10_000, Kind: KindDeposit, IdempotencyKey: "A"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := store.Apply(ctx, Input{WalletID: walletID, Amount: -3_000, Kind: KindWithdrawal, IdempotencyKey: "B"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	balance, err := store.Balance(ctx, walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 7_000 {
		t.Fatalf("expected balance 7000, got %d", balance)
	}
}

func TestApplyReplaySameKeyDoesNotDoubleApply(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)

	first, err := store.Apply(ctx, Input{WalletID: walletID, Amount: 10_000, Kind: KindDeposit, IdempotencyKey: "A"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := store.Apply(ctx, Input{WalletID: walletID, Amount: -3_000, Kind: KindWithdrawal, IdempotencyKey: "B"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	replay, err := store.Apply(ctx, Input{WalletID: walletID, Amount: 10_000, Kind: KindDeposit, IdempotencyKey: "A"})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("expected prior transaction %s, got %s", first.ID, replay.ID)
	}

	balance, _ := store.Balance(ctx, walletID)
	if balance != 7_000 {
		t.Fatalf("replay changed balance: got %d", balance)
	}
}

func TestWithdrawInsufficientFundsLeavesBalance(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)
	SeedBalance(store, walletID, 500)

	if _, err := store.Apply(ctx, Input{WalletID: walletID, Amount: -501, Kind: KindWithdrawal, IdempotencyKey: "W"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, _ := store.Balance(ctx, walletID)
	if balance != 500 {
		t.Fatalf("failed withdrawal mutated balance: got %d", balance)
	}
}

func TestConcurrentAppliesSumExactly(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)
	SeedBalance(store, walletID, 100_000)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			amount := int64(100)
			kind := KindDeposit
			if i%2 == 1 {
				amount = -100
				kind = KindWithdrawal
			}
			if _, err := store.Apply(ctx, Input{WalletID: walletID, Amount: amount, Kind: kind, IdempotencyKey: fmt.Sprintf("k-%d", i)}); err != nil {
				t.Errorf("apply %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balance, _ := store.Balance(ctx, walletID)
	if balance != 100_000 {
		t.Fatalf("expected balance 100000 after balanced load, got %d", balance)
	}
}

func TestPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)

	pending, err := store.Begin(ctx, Input{WalletID: walletID, Amount: 5_000, Kind: KindDeposit, IdempotencyKey: "P", ExpiresAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if pending.Status != StatusPending {
		t.Fatalf("expected pending, got %s", pending.Status)
	}

	balance, _ := store.Balance(ctx, walletID)
	if balance != 0 {
		t.Fatalf("pending entry changed balance: got %d", balance)
	}

	completed, err := store.Complete(ctx, pending.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	balance, _ = store.Balance(ctx, walletID)
	if balance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", balance)
	}

	// Terminal transitions are one-shot.
	if _, err := store.Complete(ctx, pending.ID); !errors.Is(err, ErrTransactionFinal) {
		t.Fatalf("expected final error, got %v", err)
	}
	if _, err := store.Fail(ctx, pending.ID); !errors.Is(err, ErrTransactionFinal) {
		t.Fatalf("expected final error, got %v", err)
	}
	balance, _ = store.Balance(ctx, walletID)
	if balance != 5_000 {
		t.Fatalf("double settle changed balance: got %d", balance)
	}
}

func TestFindByKey(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)

	created, err := store.Apply(ctx, Input{WalletID: walletID, Amount: 1_000, Kind: KindDeposit, IdempotencyKey: "K"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	found, err := store.FindByKey(ctx, walletID, "K")
	if err != nil {
		t.Fatalf("find by key: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}

	if _, err := store.FindByKey(ctx, walletID, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// Keys are scoped per wallet.
	if _, err := store.FindByKey(ctx, uuid.NewString(), "K"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected not found for other wallet, got %v", err)
	}
}

func TestFailNeverTouchesBalance(t *testing.T) {
	ctx := context.Background()
	store, walletID := newRegisteredStore(t)

	pending, err := store.Begin(ctx, Input{WalletID: walletID, Amount: 5_000, Kind: KindDeposit, IdempotencyKey: "F"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := store.Fail(ctx, pending.ID); err != nil {
		t.Fatalf("fail: %v", err)
	}

	balance, _ := store.Balance(ctx, walletID)
	if balance != 0 {
		t.Fatalf("failed entry changed balance: got %d", balance)
	}
}
