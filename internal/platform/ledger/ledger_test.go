package ledger

import (
	"context"
	"errors"
	"testing"

	ledgerv1 "dropvest/contracts/gen/ledger/v1"
)

func TestWithdrawDepositMovesFundsOnce(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("DROP", nil)
	if err := l.Fund(ctx, "treasury", 100, "seed"); err != nil {
		t.Fatalf("fund: %v", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		asset, err := l.Withdraw(ctx, "treasury", 40, "claim-1:receive")
		if err != nil {
			t.Fatalf("withdraw attempt %d: %v", attempt, err)
		}
		if err := l.Deposit(ctx, "alice", asset); err != nil {
			t.Fatalf("deposit attempt %d: %v", attempt, err)
		}
	}

	if got := l.Balance("treasury"); got != 60 {
		t.Fatalf("expected treasury 60, got %d", got)
	}
	if got := l.Balance("alice"); got != 40 {
		t.Fatalf("expected alice 40, got %d", got)
	}
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	l := NewMemory("DROP", nil)
	_, err := l.Withdraw(context.Background(), "empty", 1, "ref")
	if !errors.Is(err, ledgerv1.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBurnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("DROP", nil)
	_ = l.Fund(ctx, "treasury", 10, "seed")

	asset, err := l.Withdraw(ctx, "treasury", 7, "claim-2:burn")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := l.Burn(ctx, asset); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := l.Burn(ctx, asset); err != nil {
		t.Fatalf("replayed burn: %v", err)
	}
	if l.Burned() != 7 {
		t.Fatalf("expected 7 burned, got %d", l.Burned())
	}
}

func TestDepositRejectsForgedAsset(t *testing.T) {
	l := NewMemory("DROP", nil)
	err := l.Deposit(context.Background(), "mallory", ledgerv1.Asset{Denom: "DROP", Amount: 1000, Reference: "forged"})
	if !errors.Is(err, ledgerv1.ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestSeedDoesNotMintTwice(t *testing.T) {
	ctx := context.Background()
	l := NewMemory("DROP", nil)
	seed := map[string]uint64{"treasury": 500, "ops": 3}

	for i := 0; i < 2; i++ {
		if err := Seed(ctx, l, seed); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}
	if l.Balance("treasury") != 500 || l.Balance("ops") != 3 {
		t.Fatalf("unexpected balances treasury=%d ops=%d", l.Balance("treasury"), l.Balance("ops"))
	}
}
