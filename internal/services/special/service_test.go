package special

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/storage/memory"
	"github.com/twinpot/lottery-engine/internal/token"
)

const (
	operator    = "operator"
	specialAddr = "special-pot"
	delottoAddr = "standard-pot" // counterpart account holding prize funds
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	ledger *token.MemoryLedger
	oracle *randomness.FixedOracle
	clock  *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	ledger := token.NewMemoryLedger()
	oracle := randomness.NewFixedOracle(7)
	bridge := randomness.NewBridge(oracle, nil)
	oracle.Bind(bridge)

	svc := New(store, ledger, bridge, bundle.NewTable(bundle.DefaultRules), specialAddr, nil)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.WithClock(clock.now)

	cfg := DefaultConfig
	cfg.OperatorAddress = operator
	cfg.TeamWallet = "team"
	cfg.CounterpartAddress = delottoAddr
	cfg.BurnAddress = "burn"
	cfg.TransfererAddress = specialAddr
	if err := svc.EnsureConfig(context.Background(), cfg); err != nil {
		t.Fatalf("EnsureConfig: %v", err)
	}

	ledger.Mint("alice", 1_000_000)
	ledger.Mint("bob", 1_000_000)
	return &fixture{svc: svc, store: store, ledger: ledger, oracle: oracle, clock: clock}
}

func (f *fixture) startRound(t *testing.T) *lottery.Round {
	t.Helper()
	round, err := f.svc.StartLottery(context.Background(), operator, f.clock.t.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartLottery: %v", err)
	}
	return round
}

func (f *fixture) closeRound(t *testing.T) {
	t.Helper()
	f.clock.advance(2 * time.Hour)
	if _, err := f.svc.CloseLottery(context.Background(), operator); err != nil {
		t.Fatalf("CloseLottery: %v", err)
	}
}

func TestBuyTicketsRouting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	tickets, err := f.svc.BuyTickets(ctx, "alice", 13)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	if len(tickets) != 13 {
		t.Fatalf("tickets = %d, want 13", len(tickets))
	}
	bonus := 0
	for _, tk := range tickets {
		if tk.Bonus {
			bonus++
		}
		if tk.Number != 0 {
			t.Fatalf("flat ticket carries number %d", tk.Number)
		}
	}
	if bonus != 3 {
		t.Fatalf("bonus = %d, want 3", bonus)
	}

	// 10 paid tickets at 1000 split 0/70/20/10.
	if got := f.ledger.BalanceOf(delottoAddr); got != 7_000 {
		t.Fatalf("counterpart pot = %d, want 7000", got)
	}
	if got := f.ledger.BalanceOf("team"); got != 2_000 {
		t.Fatalf("team = %d, want 2000", got)
	}
	if got := f.ledger.BalanceOf("burn"); got != 1_000 {
		t.Fatalf("burn = %d, want 1000", got)
	}
	if got := f.ledger.BalanceOf(specialAddr); got != 0 {
		t.Fatalf("self pot = %d, want 0", got)
	}

	got, _ := f.svc.ViewRound(ctx, round.ID)
	if got.TicketCount != 13 || got.RoutedCounterpart != 7_000 {
		t.Fatalf("round accounting = %+v", got)
	}

	if _, err := f.svc.BuyTickets(ctx, "alice", 0); !errors.Is(err, lottery.ErrInvalidQuantity) {
		t.Fatalf("zero buy err = %v, want ErrInvalidQuantity", err)
	}
}

func TestPickAwardWinnersSmallPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startRound(t)

	// 5 paid + 1 bonus tickets; the bonus ticket never wins.
	tickets, err := f.svc.BuyTickets(ctx, "alice", 6)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	bonusID := int64(0)
	for _, tk := range tickets {
		if tk.Bonus {
			bonusID = tk.ID
		}
	}

	f.closeRound(t)
	set, err := f.svc.PickAwardWinners(ctx, operator)
	if err != nil {
		t.Fatalf("PickAwardWinners: %v", err)
	}

	// Pool below the cap: everyone eligible wins.
	if len(set.TicketIDs) != 5 {
		t.Fatalf("winners = %d, want 5", len(set.TicketIDs))
	}
	for _, id := range set.TicketIDs {
		if id == bonusID {
			t.Fatal("bonus ticket selected as winner")
		}
	}

	// Each winner is owed 1% of the counterpart pot snapshot.
	if set.PotSnapshot != f.ledger.BalanceOf(delottoAddr) {
		t.Fatalf("snapshot = %d", set.PotSnapshot)
	}
	if set.PerTicketPrize != set.PotSnapshot/100 {
		t.Fatalf("per ticket = %d, want %d", set.PerTicketPrize, set.PotSnapshot/100)
	}

	round, _ := f.svc.CurrentRound(ctx)
	if round.Status != lottery.RoundStatusClaimable {
		t.Fatalf("status = %s, want claimable", round.Status)
	}
}

func TestPickAwardWinnersCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startRound(t)

	// 8 buyers of 15 tickets each: 120 paid, 40 bonus.
	for i := 0; i < 8; i++ {
		buyer := string(rune('a'+i)) + "-buyer"
		f.ledger.Mint(buyer, 100_000)
		if _, err := f.svc.BuyTickets(ctx, buyer, 20); err != nil {
			t.Fatalf("BuyTickets: %v", err)
		}
	}

	f.closeRound(t)
	set, err := f.svc.PickAwardWinners(ctx, operator)
	if err != nil {
		t.Fatalf("PickAwardWinners: %v", err)
	}
	if len(set.TicketIDs) != MaxPoolWinners {
		t.Fatalf("winners = %d, want %d", len(set.TicketIDs), MaxPoolWinners)
	}

	seen := map[int64]bool{}
	for _, id := range set.TicketIDs {
		if seen[id] {
			t.Fatalf("duplicate winner %d", id)
		}
		seen[id] = true
	}
}

func TestPickAwardWinnersGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startRound(t)

	if _, err := f.svc.PickAwardWinners(ctx, operator); !errors.Is(err, lottery.ErrWrongStatus) {
		t.Fatalf("pick on open round err = %v, want ErrWrongStatus", err)
	}
	if _, err := f.svc.PickAwardWinners(ctx, "mallory"); !errors.Is(err, lottery.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClaimAwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	aliceTickets, err := f.svc.BuyTickets(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	bobTickets, err := f.svc.BuyTickets(ctx, "bob", 2)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}

	f.closeRound(t)
	set, err := f.svc.PickAwardWinners(ctx, operator)
	if err != nil {
		t.Fatalf("PickAwardWinners: %v", err)
	}
	if len(set.TicketIDs) != 5 {
		t.Fatalf("winners = %d, want 5", len(set.TicketIDs))
	}
	prize := set.PerTicketPrize
	if prize == 0 {
		t.Fatal("per ticket prize is zero")
	}

	potBefore := f.ledger.BalanceOf(delottoAddr)
	aliceBefore := f.ledger.BalanceOf("alice")

	ids := []int64{aliceTickets[0].ID, aliceTickets[1].ID}
	outcomes, err := f.svc.ClaimAwards(ctx, "alice", round.ID, ids)
	if err != nil {
		t.Fatalf("ClaimAwards: %v", err)
	}
	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("outcome %d: %v", out.TicketID, out.Err)
		}
		if out.Amount != prize {
			t.Fatalf("amount = %d, want %d", out.Amount, prize)
		}
	}
	if got := f.ledger.BalanceOf("alice"); got != aliceBefore+2*prize {
		t.Fatalf("alice = %d", got)
	}
	if got := f.ledger.BalanceOf(delottoAddr); got != potBefore-2*prize {
		t.Fatalf("pot = %d", got)
	}

	// Reclaim, foreign claim, non-winner claim.
	outcomes, _ = f.svc.ClaimAwards(ctx, "alice", round.ID, []int64{aliceTickets[0].ID})
	if !errors.Is(outcomes[0].Err, lottery.ErrAlreadyClaimed) {
		t.Fatalf("reclaim err = %v, want ErrAlreadyClaimed", outcomes[0].Err)
	}
	outcomes, _ = f.svc.ClaimAwards(ctx, "alice", round.ID, []int64{bobTickets[0].ID})
	if !errors.Is(outcomes[0].Err, lottery.ErrUnauthorized) {
		t.Fatalf("foreign claim err = %v, want ErrUnauthorized", outcomes[0].Err)
	}

	updated, _ := f.svc.ViewRound(ctx, round.ID)
	if updated.DistributedRewards != 2*prize {
		t.Fatalf("distributed = %d, want %d", updated.DistributedRewards, 2*prize)
	}
}

func TestClaimAwardsBeforePick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)
	tickets, err := f.svc.BuyTickets(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	if _, err := f.svc.ClaimAwards(ctx, "alice", round.ID, []int64{tickets[0].ID}); !errors.Is(err, lottery.ErrLotteryNotClaimable) {
		t.Fatalf("err = %v, want ErrLotteryNotClaimable", err)
	}
}

func TestDeGrandLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	if _, err := f.svc.BuyTickets(ctx, "alice", 4); err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	if _, err := f.svc.BuyTickets(ctx, "bob", 4); err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}

	prize := lottery.DeGrandPrize{
		RoundID:        round.ID,
		DrawTime:       f.clock.t.Add(3 * time.Hour),
		Title:          "anniversary",
		MaxWinnerCount: 3,
	}
	if err := f.svc.SetDeGrandPrize(ctx, "mallory", prize); !errors.Is(err, lottery.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); err != nil {
		t.Fatalf("SetDeGrandPrize: %v", err)
	}

	// Sales still running.
	if _, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0); !errors.Is(err, lottery.ErrWrongStatus) {
		t.Fatalf("pick on open round err = %v, want ErrWrongStatus", err)
	}

	f.closeRound(t)

	// Draw time not reached.
	if _, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0); !errors.Is(err, lottery.ErrLotteryNotOver) {
		t.Fatalf("early pick err = %v, want ErrLotteryNotOver", err)
	}

	f.clock.advance(2 * time.Hour)
	set, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0)
	if err != nil {
		t.Fatalf("PickDeGrandWinners: %v", err)
	}
	if len(set.TicketIDs) != 3 {
		t.Fatalf("winners = %d, want exactly 3", len(set.TicketIDs))
	}
	seen := map[int64]bool{}
	for _, id := range set.TicketIDs {
		if seen[id] {
			t.Fatalf("duplicate winner %d", id)
		}
		seen[id] = true
	}

	// The pick latches permanently.
	if _, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0); !errors.Is(err, lottery.ErrAlreadyPicked) {
		t.Fatalf("repick err = %v, want ErrAlreadyPicked", err)
	}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); !errors.Is(err, lottery.ErrAlreadyPicked) {
		t.Fatalf("edit after pick err = %v, want ErrAlreadyPicked", err)
	}

	stored, err := f.svc.ViewAwardWinners(ctx, round.ID, lottery.AwardStageDeGrand)
	if err != nil {
		t.Fatalf("ViewAwardWinners: %v", err)
	}
	if len(stored.TicketIDs) != 3 {
		t.Fatalf("stored winners = %d", len(stored.TicketIDs))
	}
}

func TestDeGrandPoolSmallerThanCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	if _, err := f.svc.BuyTickets(ctx, "alice", 2); err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	prize := lottery.DeGrandPrize{RoundID: round.ID, DrawTime: f.clock.t, MaxWinnerCount: 10}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); err != nil {
		t.Fatalf("SetDeGrandPrize: %v", err)
	}

	f.closeRound(t)
	set, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0)
	if err != nil {
		t.Fatalf("PickDeGrandWinners: %v", err)
	}
	if len(set.TicketIDs) != 2 {
		t.Fatalf("winners = %d, want the whole pool of 2", len(set.TicketIDs))
	}
}

func TestDeGrandSeedSharesRoundDraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	tickets, err := f.svc.BuyTickets(ctx, "alice", 8)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	prize := lottery.DeGrandPrize{RoundID: round.ID, DrawTime: f.clock.t, MaxWinnerCount: 4}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); err != nil {
		t.Fatalf("SetDeGrandPrize: %v", err)
	}

	f.oracle.Queue(4242)
	f.closeRound(t)
	set, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0)
	if err != nil {
		t.Fatalf("PickDeGrandWinners: %v", err)
	}

	// The grand pick is a tagged stream of the round's one draw seed, so
	// the same store replays to the same winners after a restart.
	var pool []int64
	for _, tk := range tickets {
		if !tk.Bonus {
			pool = append(pool, tk.ID)
		}
	}
	want := pickDistinct(int64(4242)^degrandSeedTag, pool, 4)
	if len(set.TicketIDs) != len(want) {
		t.Fatalf("winners = %d, want %d", len(set.TicketIDs), len(want))
	}
	for i := range want {
		if set.TicketIDs[i] != want[i] {
			t.Fatalf("winner[%d] = %d, want %d", i, set.TicketIDs[i], want[i])
		}
	}
}

func TestDeGrandWinnerCountBeforeUpgrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	if _, err := f.svc.BuyTickets(ctx, "alice", 4); err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	prize := lottery.DeGrandPrize{RoundID: round.ID, DrawTime: f.clock.t, MaxWinnerCount: 4}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); err != nil {
		t.Fatalf("SetDeGrandPrize: %v", err)
	}
	f.closeRound(t)

	// Pre-upgrade stores predate the stored winner cap and require one
	// from the caller.
	f.store.SetSchemaVersionForTest(1)
	if _, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0); !errors.Is(err, lottery.ErrInvalidQuantity) {
		t.Fatalf("missing count err = %v, want ErrInvalidQuantity", err)
	}
	set, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 2)
	if err != nil {
		t.Fatalf("PickDeGrandWinners: %v", err)
	}
	if len(set.TicketIDs) != 2 {
		t.Fatalf("winners = %d, want the argument count 2", len(set.TicketIDs))
	}
}

func TestSetDeGrandPrizeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	bad := lottery.DeGrandPrize{RoundID: round.ID, MaxWinnerCount: 0}
	if err := f.svc.SetDeGrandPrize(ctx, operator, bad); !errors.Is(err, lottery.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
	missing := lottery.DeGrandPrize{RoundID: 42, MaxWinnerCount: 1}
	if err := f.svc.SetDeGrandPrize(ctx, operator, missing); !errors.Is(err, lottery.ErrRoundNotFound) {
		t.Fatalf("err = %v, want ErrRoundNotFound", err)
	}
}

func TestViewDeLottoWinningForTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	tickets, err := f.svc.BuyTickets(ctx, "alice", 3)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	ids := []int64{tickets[0].ID, tickets[1].ID, tickets[2].ID}

	// Before the pick every ticket reads as not winning.
	wins, err := f.svc.ViewDeLottoWinningForTickets(ctx, round.ID, ids)
	if err != nil {
		t.Fatalf("ViewDeLottoWinningForTickets: %v", err)
	}
	for _, w := range wins {
		if w.Won {
			t.Fatalf("ticket %d won before pick", w.TicketID)
		}
	}

	f.closeRound(t)
	set, err := f.svc.PickAwardWinners(ctx, operator)
	if err != nil {
		t.Fatalf("PickAwardWinners: %v", err)
	}

	if _, err := f.svc.ClaimAwards(ctx, "alice", round.ID, []int64{tickets[0].ID}); err != nil {
		t.Fatalf("ClaimAwards: %v", err)
	}

	wins, err = f.svc.ViewDeLottoWinningForTickets(ctx, round.ID, append(ids, 9999))
	if err != nil {
		t.Fatalf("ViewDeLottoWinningForTickets: %v", err)
	}
	if len(wins) != 4 {
		t.Fatalf("wins = %d, want 4", len(wins))
	}
	for i, w := range wins {
		if w.TicketID == 9999 {
			if w.Won {
				t.Fatal("unknown ticket reported as winner")
			}
			continue
		}
		if !w.Won {
			t.Fatalf("ticket %d not won, pool below cap", w.TicketID)
		}
		if w.Prize != set.PerTicketPrize {
			t.Fatalf("prize = %d, want %d", w.Prize, set.PerTicketPrize)
		}
		if claimed := i == 0; w.Claimed != claimed {
			t.Fatalf("ticket %d claimed = %v, want %v", w.TicketID, w.Claimed, claimed)
		}
	}

	if _, err := f.svc.ViewDeLottoWinningForTickets(ctx, round.ID, nil); !errors.Is(err, lottery.ErrInvalidQuantity) {
		t.Fatalf("empty ids err = %v, want ErrInvalidQuantity", err)
	}
}

func TestViewDeGrandStatusForTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	round := f.startRound(t)

	tickets, err := f.svc.BuyTickets(ctx, "alice", 4)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	prize := lottery.DeGrandPrize{RoundID: round.ID, DrawTime: f.clock.t, MaxWinnerCount: 2}
	if err := f.svc.SetDeGrandPrize(ctx, operator, prize); err != nil {
		t.Fatalf("SetDeGrandPrize: %v", err)
	}
	f.closeRound(t)
	set, err := f.svc.PickDeGrandWinners(ctx, operator, round.ID, 0)
	if err != nil {
		t.Fatalf("PickDeGrandWinners: %v", err)
	}
	picked := map[int64]bool{}
	for _, id := range set.TicketIDs {
		picked[id] = true
	}

	ids := make([]int64, len(tickets))
	for i, tk := range tickets {
		ids[i] = tk.ID
	}
	wins, err := f.svc.ViewDeGrandStatusForTickets(ctx, round.ID, ids)
	if err != nil {
		t.Fatalf("ViewDeGrandStatusForTickets: %v", err)
	}
	won := 0
	for _, w := range wins {
		if w.Won != picked[w.TicketID] {
			t.Fatalf("ticket %d won = %v, want %v", w.TicketID, w.Won, picked[w.TicketID])
		}
		if w.Won {
			won++
		}
	}
	if won != 2 {
		t.Fatalf("won = %d, want 2", won)
	}
}

func TestAddressSettersLockedWhileOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startRound(t)

	if err := f.svc.SetCounterpartAddress(ctx, operator, "attacker-sink"); !errors.Is(err, lottery.ErrAlreadyOpen) {
		t.Fatalf("counterpart mid-round err = %v, want ErrAlreadyOpen", err)
	}
	if err := f.svc.SetTeamWallet(ctx, operator, "attacker-sink"); !errors.Is(err, lottery.ErrAlreadyOpen) {
		t.Fatalf("team mid-round err = %v, want ErrAlreadyOpen", err)
	}

	// The purchase still routes to the configured counterpart.
	if _, err := f.svc.BuyTickets(ctx, "alice", 1); err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	if got := f.ledger.BalanceOf("attacker-sink"); got != 0 {
		t.Fatalf("attacker-sink = %d, want 0", got)
	}
	if got := f.ledger.BalanceOf(delottoAddr); got != 700 {
		t.Fatalf("counterpart pot = %d, want 700", got)
	}

	f.closeRound(t)
	if _, err := f.svc.PickAwardWinners(ctx, operator); err != nil {
		t.Fatalf("PickAwardWinners: %v", err)
	}
	if err := f.svc.SetCounterpartAddress(ctx, operator, "new-counterpart"); err != nil {
		t.Fatalf("set after round err = %v", err)
	}
	if err := f.svc.SetTeamWallet(ctx, operator, ""); !errors.Is(err, lottery.ErrInvalidAddress) {
		t.Fatalf("empty wallet err = %v, want ErrInvalidAddress", err)
	}
}

func TestBuyTicketsRejectsUnsetDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startRound(t)

	cfg, err := f.store.GetConfig(ctx, lottery.KindSpecial)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	cfg.BurnAddress = ""
	if err := f.store.SaveConfig(ctx, lottery.KindSpecial, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	before := f.ledger.BalanceOf("alice")
	if _, err := f.svc.BuyTickets(ctx, "alice", 1); !errors.Is(err, lottery.ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	if got := f.ledger.BalanceOf("alice"); got != before {
		t.Fatalf("alice = %d, want untouched %d", got, before)
	}
	if got := f.ledger.BalanceOf(""); got != 0 {
		t.Fatalf("empty account = %d, want 0", got)
	}
}

func TestSetBundleRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetBundleRule(ctx, "mallory", 20, 8); !errors.Is(err, lottery.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if err := f.svc.SetBundleRule(ctx, operator, 20, 25); !errors.Is(err, bundle.ErrInvalidRule) {
		t.Fatalf("err = %v, want ErrInvalidRule", err)
	}
	if err := f.svc.SetBundleRule(ctx, operator, 20, 8); err != nil {
		t.Fatalf("SetBundleRule: %v", err)
	}

	f.startRound(t)
	tickets, err := f.svc.BuyTickets(ctx, "alice", 20)
	if err != nil {
		t.Fatalf("BuyTickets: %v", err)
	}
	bonus := 0
	for _, tk := range tickets {
		if tk.Bonus {
			bonus++
		}
	}
	if bonus != 8 {
		t.Fatalf("bonus = %d, want 8 under the new tier", bonus)
	}
}

func TestSelectionIsDeterministic(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	first := pickDistinct(99, ids, 4)
	second := pickDistinct(99, ids, 4)
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("same seed produced different winners")
		}
	}
	other := pickDistinct(100, ids, 4)
	same := true
	for i := range first {
		if first[i] != other[i] {
			same = false
		}
	}
	if same {
		t.Log("different seeds coincided; acceptable but unexpected")
	}
}
