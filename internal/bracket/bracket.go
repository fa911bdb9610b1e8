// Package bracket matches ticket numbers against a drawn final number and
// folds raw randomness into the valid ticket space.
//
// A ticket lands in bracket b (0-based) when its last b+1 digit-groups all
// equal the final number's. Higher brackets pay more; only the highest
// matching bracket pays.
package bracket

import (
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/ticket"
)

// MatchedGroups counts how many trailing digit-groups of ticketNumber equal
// the corresponding groups of finalNumber. Both numbers must already be
// valid ticket encodings.
func MatchedGroups(finalNumber, ticketNumber uint32) int {
	matched := 0
	f, n := finalNumber, ticketNumber
	for i := 0; i < ticket.GroupCount; i++ {
		if f%100 != n%100 {
			break
		}
		matched++
		f /= 100
		n /= 100
	}
	return matched
}

// Bracket returns the 0-based prize bracket for a ticket, or -1 when no
// trailing group matches.
func Bracket(finalNumber, ticketNumber uint32) int {
	return MatchedGroups(finalNumber, ticketNumber) - 1
}

// Reward computes the prize owed to a single ticket out of the round's self
// pot under the given breakdown. A non-matching ticket earns zero.
func Reward(finalNumber, ticketNumber uint32, selfPot int64, breakdown lottery.Breakdown) int64 {
	b := Bracket(finalNumber, ticketNumber)
	if b < 0 {
		return 0
	}
	return selfPot * int64(breakdown[b]) / lottery.BasisPointTotal
}

// WrapDrawNumber folds a raw random word into the ticket number space. Each
// base-100 group is reduced modulo the group alphabet and shifted into
// [1,18], then repacked beneath the sentinel. The result always validates.
func WrapDrawNumber(raw uint32) uint32 {
	var groups [ticket.GroupCount]uint8
	n := raw
	for i := ticket.GroupCount - 1; i >= 0; i-- {
		groups[i] = uint8(n%100)%(ticket.GroupMax-ticket.GroupMin+1) + ticket.GroupMin
		n /= 100
	}
	out := uint32(ticket.Sentinel)
	for _, g := range groups {
		out = out*100 + uint32(g)
	}
	return out
}
