// Package ticket implements the fixed-width ticket number codec.
//
// A ticket number packs four digit-groups, each in [1,18], in base 100
// beneath a leading sentinel digit:
//
//	number = ((((1*100+g1)*100+g2)*100+g3)*100+g4)
//
// The sentinel keeps every encoded number nine digits wide so suffix
// matching against a drawn number is unambiguous.
package ticket

import (
	"fmt"
	"math/rand"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
)

const (
	// GroupCount is the number of digit-groups in a ticket number.
	GroupCount = 4

	// GroupMin and GroupMax bound each digit-group, matching the fixed
	// alphabet size of the draw.
	GroupMin = 1
	GroupMax = 18

	// Sentinel is the fixed leading marker above the four groups.
	Sentinel = 1
)

// Encode packs four digit-groups into a ticket number. Groups outside
// [GroupMin, GroupMax] yield ErrInvalidTicketNumber.
func Encode(groups [GroupCount]uint8) (uint32, error) {
	n := uint32(Sentinel)
	for i, g := range groups {
		if g < GroupMin || g > GroupMax {
			return 0, fmt.Errorf("%w: group %d out of range: %d", lottery.ErrInvalidTicketNumber, i+1, g)
		}
		n = n*100 + uint32(g)
	}
	return n, nil
}

// Decode unpacks a ticket number into its four digit-groups, most
// significant first. The number must carry the sentinel and round-trip
// through Encode.
func Decode(number uint32) ([GroupCount]uint8, error) {
	var groups [GroupCount]uint8
	n := number
	for i := GroupCount - 1; i >= 0; i-- {
		g := n % 100
		if g < GroupMin || g > GroupMax {
			return groups, fmt.Errorf("%w: %d", lottery.ErrInvalidTicketNumber, number)
		}
		groups[i] = uint8(g)
		n /= 100
	}
	if n != Sentinel {
		return groups, fmt.Errorf("%w: %d", lottery.ErrInvalidTicketNumber, number)
	}
	return groups, nil
}

// Validate reports whether a caller-supplied raw number is a well formed
// ticket number.
func Validate(number uint32) error {
	_, err := Decode(number)
	return err
}

// Generate synthesizes n valid pseudo-random ticket numbers from the given
// seed. Purchase-time numbers are deliberately not drawn from the trusted
// randomness source; only the post-hoc round draw is.
func Generate(n int, seed int64) []uint32 {
	r := rand.New(rand.NewSource(seed))
	numbers := make([]uint32, n)
	for i := range numbers {
		v := uint32(Sentinel)
		for g := 0; g < GroupCount; g++ {
			v = v*100 + uint32(r.Intn(GroupMax-GroupMin+1)+GroupMin)
		}
		numbers[i] = v
	}
	return numbers
}

// Group returns the idx-th digit-group (1-based from the most significant
// side) of an already validated number.
func Group(number uint32, idx int) uint8 {
	shift := GroupCount - idx
	n := number
	for i := 0; i < shift; i++ {
		n /= 100
	}
	return uint8(n % 100)
}
