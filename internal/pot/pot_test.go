package pot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
)

var standardShares = lottery.PotShares{SelfPot: 5000, CounterpartPot: 3000, TeamWallet: 1000, Burn: 1000}

func TestSplitStandard(t *testing.T) {
	a, err := Split(10_000, standardShares)
	require.NoError(t, err)
	assert.Equal(t, Allocation{Self: 5000, Counterpart: 3000, Team: 1000, Burn: 1000}, a)
}

func TestSplitSpecial(t *testing.T) {
	shares := lottery.PotShares{SelfPot: 0, CounterpartPot: 7000, TeamWallet: 2000, Burn: 1000}
	a, err := Split(1_000_000, shares)
	require.NoError(t, err)
	assert.Equal(t, Allocation{Self: 0, Counterpart: 700_000, Team: 200_000, Burn: 100_000}, a)
}

func TestSplitConservesDust(t *testing.T) {
	// 1234567 * 5000 / 10000 truncates; the shortfall must land in burn.
	amounts := []int64{1, 3, 7, 99, 1234567, 999_999_999}
	for _, amount := range amounts {
		a, err := Split(amount, standardShares)
		require.NoError(t, err)
		assert.Equal(t, amount, a.Total(), "Split(%d) must conserve the full amount", amount)
		assert.GreaterOrEqual(t, a.Burn, amount*int64(standardShares.Burn)/lottery.BasisPointTotal,
			"Split(%d) burn below nominal share", amount)
	}
}

func TestSplitRejectsBadShares(t *testing.T) {
	bad := lottery.PotShares{SelfPot: 5000, CounterpartPot: 3000, TeamWallet: 1000, Burn: 500}
	_, err := Split(100, bad)
	require.ErrorIs(t, err, lottery.ErrInvalidShares)
}

func TestReward(t *testing.T) {
	cases := []struct {
		pot  int64
		bp   int
		want int64
	}{
		{1_000_000, 0, 0},
		{1_000_000, 1000, 100_000},
		{1_000_000, 2500, 250_000},
		{1_000_000, 10000, 1_000_000},
		{999, 2500, 249},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Reward(tc.pot, tc.bp), "Reward(%d, %d)", tc.pot, tc.bp)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, int64(10_000), Percent(1_000_000, 1))
	assert.Equal(t, int64(0), Percent(99, 1), "Percent rounds down")
}
