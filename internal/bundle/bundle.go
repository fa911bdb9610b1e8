// Package bundle implements the bulk-purchase bonus table. Buying at or
// above a threshold grants free bonus tickets; only the highest threshold
// reached applies, the tiers never stack.
package bundle

import (
	"errors"
	"sort"
	"sync"
)

// ErrInvalidRule rejects tier updates whose bonus would not leave at least
// one paid ticket.
var ErrInvalidRule = errors.New("bundle: invalid rule")

// Rule grants Bonus free tickets once a single purchase reaches Threshold
// paid tickets.
type Rule struct {
	Threshold int `json:"threshold" yaml:"threshold"`
	Bonus     int `json:"bonus" yaml:"bonus"`
}

// DefaultRules is the production tier table.
var DefaultRules = []Rule{
	{Threshold: 5, Bonus: 1},
	{Threshold: 10, Bonus: 3},
	{Threshold: 15, Bonus: 5},
}

// Table answers bonus-ticket queries against a sorted tier list.
type Table struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewTable copies and sorts the rules by threshold. A nil or empty slice
// yields a table that never grants bonuses.
func NewTable(rules []Rule) *Table {
	out := make([]Rule, len(rules))
	copy(out, rules)
	sort.Slice(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	return &Table{rules: out}
}

// BonusFor returns the free tickets granted for a purchase of quantity paid
// tickets. The highest threshold not exceeding quantity wins.
func (t *Table) BonusFor(quantity int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bonus := 0
	for _, r := range t.rules {
		if quantity < r.Threshold {
			break
		}
		bonus = r.Bonus
	}
	return bonus
}

// Set inserts or replaces the tier for threshold. A zero bonus removes the
// tier; the bonus must stay below the threshold so every bundle pays for
// at least one ticket.
func (t *Table) Set(threshold, bonus int) error {
	if threshold <= 0 || bonus < 0 || bonus >= threshold {
		return ErrInvalidRule
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.rules {
		if r.Threshold == threshold {
			if bonus == 0 {
				t.rules = append(t.rules[:i], t.rules[i+1:]...)
			} else {
				t.rules[i].Bonus = bonus
			}
			return nil
		}
	}
	if bonus == 0 {
		return nil
	}
	t.rules = append(t.rules, Rule{Threshold: threshold, Bonus: bonus})
	sort.Slice(t.rules, func(i, j int) bool { return t.rules[i].Threshold < t.rules[j].Threshold })
	return nil
}

// Rules returns a copy of the tier table for reporting.
func (t *Table) Rules() []Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}
