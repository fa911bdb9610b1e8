package token

import (
	"errors"
	"testing"
)

func TestTransfer(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("alice", 1000)

	if err := l.Transfer("alice", "bob", 400); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := l.BalanceOf("alice"); got != 600 {
		t.Fatalf("alice = %d, want 600", got)
	}
	if got := l.BalanceOf("bob"); got != 400 {
		t.Fatalf("bob = %d, want 400", got)
	}

	if err := l.Transfer("alice", "bob", 601); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientBalance", err)
	}
	if err := l.Transfer("alice", "bob", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount err = %v, want ErrInvalidAmount", err)
	}
}

func TestTransferFrom(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("alice", 1000)

	if err := l.TransferFrom("engine", "alice", "pot", 100); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("no allowance err = %v, want ErrInsufficientAllowance", err)
	}

	if err := l.Approve("alice", "engine", 300); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.TransferFrom("engine", "alice", "pot", 200); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := l.Allowance("alice", "engine"); got != 100 {
		t.Fatalf("allowance = %d, want 100", got)
	}
	if got := l.BalanceOf("pot"); got != 200 {
		t.Fatalf("pot = %d, want 200", got)
	}

	if err := l.TransferFrom("engine", "alice", "pot", 101); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("over allowance err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestTransferFromInsufficientBalanceKeepsAllowance(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("alice", 50)
	if err := l.Approve("alice", "engine", 500); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := l.TransferFrom("engine", "alice", "pot", 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.Allowance("alice", "engine"); got != 500 {
		t.Fatalf("allowance consumed on failed transfer: %d", got)
	}
}
