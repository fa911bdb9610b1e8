// Package pot splits incoming ticket revenue between the two lottery pots
// and the operational sinks, in basis points. Splits conserve value exactly;
// integer-division dust is routed to the burn sink so no amount is ever
// created or lost.
package pot

import "github.com/twinpot/lottery-engine/internal/domain/lottery"

// Allocation is the result of carving an amount into its destinations.
type Allocation struct {
	Self        int64 `json:"self"`
	Counterpart int64 `json:"counterpart"`
	Team        int64 `json:"team"`
	Burn        int64 `json:"burn"`
}

// Total returns the sum of all destinations. For any Split result it equals
// the input amount.
func (a Allocation) Total() int64 {
	return a.Self + a.Counterpart + a.Team + a.Burn
}

// Split carves amount according to shares. Each destination receives
// amount*bp/10000 rounded down; the remainder goes to burn.
func Split(amount int64, shares lottery.PotShares) (Allocation, error) {
	if err := shares.Validate(); err != nil {
		return Allocation{}, err
	}
	a := Allocation{
		Self:        amount * int64(shares.SelfPot) / lottery.BasisPointTotal,
		Counterpart: amount * int64(shares.CounterpartPot) / lottery.BasisPointTotal,
		Team:        amount * int64(shares.TeamWallet) / lottery.BasisPointTotal,
	}
	a.Burn = amount - a.Self - a.Counterpart - a.Team
	return a, nil
}

// Reward returns the prize for a single winning ticket: the bracket's basis
// points of the round's self pot, rounded down.
func Reward(selfPot int64, bracketBasisPoints int) int64 {
	return selfPot * int64(bracketBasisPoints) / lottery.BasisPointTotal
}

// Percent returns pct percent of amount rounded down. Pooled second-stage
// prizes are a fixed percent of the pot snapshot per winner.
func Percent(amount int64, pct int) int64 {
	return amount * int64(pct) / 100
}
