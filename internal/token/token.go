// Package token abstracts the fund ledger the lottery engine settles
// against. Production deployments bind an external ledger; the in-memory
// implementation backs tests and local runs.
package token

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when a delegated transfer
	// exceeds the approved allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Ledger is the fund movement surface the engine requires. All amounts are
// in the token's smallest unit.
type Ledger interface {
	BalanceOf(account string) int64
	Transfer(from, to string, amount int64) error
	TransferFrom(spender, from, to string, amount int64) error
	Approve(owner, spender string, amount int64) error
	Allowance(owner, spender string) int64
}

// MemoryLedger is a process-local Ledger. Safe for concurrent use.
type MemoryLedger struct {
	mu         sync.RWMutex
	balances   map[string]int64
	allowances map[string]map[string]int64
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[string]int64),
		allowances: make(map[string]map[string]int64),
	}
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (l *MemoryLedger) Mint(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// BalanceOf returns the current balance of an account.
func (l *MemoryLedger) BalanceOf(account string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// Transfer moves amount from one account to another.
func (l *MemoryLedger) Transfer(from, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

// TransferFrom moves amount on behalf of from, consuming spender's
// allowance.
func (l *MemoryLedger) TransferFrom(spender, from, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return ErrInvalidAmount
	}
	allowed := l.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s allowed %d of %s, need %d", ErrInsufficientAllowance, spender, allowed, from, amount)
	}
	if err := l.transferLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = allowed - amount
	return nil
}

// Approve sets spender's allowance over owner's funds.
func (l *MemoryLedger) Approve(owner, spender string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]int64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

// Allowance returns spender's remaining allowance over owner's funds.
func (l *MemoryLedger) Allowance(owner, spender string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner][spender]
}

func (l *MemoryLedger) transferLocked(from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if l.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientBalance, from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
