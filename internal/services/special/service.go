// Package special implements the flat-ticket lottery: every ticket is an
// entry into a pooled second-stage draw paid from the linked standard
// lottery's pot, plus an optional operator-curated grand prize draw.
package special

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/metrics"
	"github.com/twinpot/lottery-engine/internal/pot"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/storage"
	"github.com/twinpot/lottery-engine/internal/token"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

const (
	// MaxPoolWinners caps the pooled second-stage draw.
	MaxPoolWinners = 100

	// WinnerSharePercent is each pooled winner's cut of the pot snapshot.
	WinnerSharePercent = 1

	// degrandSeedTag is folded into the round's draw seed so the grand
	// prize selection is a disjoint stream of the same randomness, not a
	// replay of the pooled pick.
	degrandSeedTag = int64(0x5bd1e995)
)

// DefaultConfig is the boot configuration applied when the store holds
// none. The self share is zero: every routed pot unit belongs to the
// counterpart lottery that pays the prizes.
var DefaultConfig = lottery.Config{
	TicketPrice: 1000,
	Shares:      lottery.PotShares{SelfPot: 0, CounterpartPot: 7000, TeamWallet: 2000, Burn: 1000},
}

// ClaimOutcome reports one ticket of an award claim batch.
type ClaimOutcome struct {
	TicketID int64 `json:"ticket_id"`
	Amount   int64 `json:"amount"`
	Err      error `json:"-"`
}

// Service runs the flat lottery. Prize funds live at the counterpart
// address; this service spends them under its transferer authority.
type Service struct {
	store   storage.Store
	ledger  token.Ledger
	bridge  *randomness.Bridge
	bundles *bundle.Table
	log     *logger.Logger

	// address receives this lottery's own (normally zero) pot share.
	address string

	now func() time.Time

	mu sync.Mutex
}

// New wires a special lottery service.
func New(store storage.Store, ledger token.Ledger, bridge *randomness.Bridge, bundles *bundle.Table, address string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("lottery-special")
	}
	if bundles == nil {
		bundles = bundle.NewTable(bundle.DefaultRules)
	}
	return &Service{
		store:   store,
		ledger:  ledger,
		bridge:  bridge,
		bundles: bundles,
		log:     log,
		address: address,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnsureConfig seeds the operator configuration on first boot.
func (s *Service) EnsureConfig(ctx context.Context, seed lottery.Config) error {
	if _, err := s.store.GetConfig(ctx, lottery.KindSpecial); err == nil {
		return nil
	}
	if err := seed.Shares.Validate(); err != nil {
		return err
	}
	if err := seed.ValidateAddresses(); err != nil {
		return err
	}
	return s.store.SaveConfig(ctx, lottery.KindSpecial, &seed)
}

func (s *Service) config(ctx context.Context) (*lottery.Config, error) {
	return s.store.GetConfig(ctx, lottery.KindSpecial)
}

func (s *Service) requireOperator(ctx context.Context, caller string) (*lottery.Config, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if caller != cfg.OperatorAddress {
		return nil, fmt.Errorf("%w: %s", lottery.ErrUnauthorized, caller)
	}
	return cfg, nil
}

// requireNoOpenRound blocks address changes while tickets are on sale, so
// funds already routed cannot be redirected mid-round.
func (s *Service) requireNoOpenRound(ctx context.Context) error {
	round, err := s.store.LatestRound(ctx, lottery.KindSpecial)
	if err != nil {
		return nil
	}
	if round.Status == lottery.RoundStatusOpen {
		return fmt.Errorf("%w: round %d still open", lottery.ErrAlreadyOpen, round.ID)
	}
	return nil
}

// StartLottery opens a new round ending at endTime.
func (s *Service) StartLottery(ctx context.Context, caller string, endTime time.Time) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return nil, err
	}

	if latest, err := s.store.LatestRound(ctx, lottery.KindSpecial); err == nil {
		if latest.Status != lottery.RoundStatusClaimable {
			return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrAlreadyOpen, latest.ID, latest.Status)
		}
	}

	now := s.now()
	if !endTime.After(now) {
		return nil, fmt.Errorf("%w: end time %s not in the future", lottery.ErrWrongStatus, endTime)
	}

	round := &lottery.Round{
		Kind:        lottery.KindSpecial,
		Status:      lottery.RoundStatusOpen,
		StartTime:   now,
		EndTime:     endTime.UTC(),
		TicketPrice: cfg.TicketPrice,
		Shares:      cfg.Shares,
	}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("creating round: %w", err)
	}

	metrics.RecordRoundStarted(string(lottery.KindSpecial))
	s.log.WithField("round_id", round.ID).WithField("end_time", round.EndTime).Info("lottery started")
	return round, nil
}

// BuyTickets sells quantity flat tickets to buyer. Bundle thresholds make
// the trailing tickets free; free tickets never enter the draw pools.
func (s *Service) BuyTickets(ctx context.Context, buyer string, quantity int) ([]*lottery.Ticket, error) {
	if quantity <= 0 {
		return nil, lottery.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.openRound(ctx)
	if err != nil {
		return nil, err
	}

	bonus := s.bundles.BonusFor(quantity)
	if bonus >= quantity {
		bonus = quantity - 1
	}
	paid := quantity - bonus
	cost := round.TicketPrice * int64(paid)

	alloc, err := pot.Split(cost, round.Shares)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.route(buyer, cfg, alloc); err != nil {
		return nil, err
	}

	now := s.now()
	tickets := make([]*lottery.Ticket, quantity)
	for i := range tickets {
		tickets[i] = &lottery.Ticket{
			RoundID:     round.ID,
			Owner:       buyer,
			Bonus:       i >= paid,
			PurchasedAt: now,
		}
	}
	if err := s.store.CreateTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("creating tickets: %w", err)
	}

	round.TicketCount += int64(quantity)
	round.RoutedSelf += alloc.Self
	round.RoutedCounterpart += alloc.Counterpart
	round.RoutedTeam += alloc.Team
	round.RoutedBurn += alloc.Burn
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}

	metrics.RecordTicketsSold(string(lottery.KindSpecial), paid, bonus)
	s.log.WithField("round_id", round.ID).
		WithField("buyer", buyer).
		WithField("quantity", quantity).
		WithField("bonus", bonus).
		Info("tickets sold")
	return tickets, nil
}

func (s *Service) route(buyer string, cfg *lottery.Config, alloc pot.Allocation) error {
	moves := []struct {
		to     string
		amount int64
	}{
		{s.address, alloc.Self},
		{cfg.CounterpartAddress, alloc.Counterpart},
		{cfg.TeamWallet, alloc.Team},
		{cfg.BurnAddress, alloc.Burn},
	}
	for _, m := range moves {
		if m.amount != 0 && m.to == "" {
			return fmt.Errorf("%w: routing %d to unset address", lottery.ErrTransferFailed, m.amount)
		}
	}
	for _, m := range moves {
		if m.amount == 0 {
			continue
		}
		if err := s.ledger.Transfer(buyer, m.to, m.amount); err != nil {
			return fmt.Errorf("%w: routing %d to %s: %v", lottery.ErrTransferFailed, m.amount, m.to, err)
		}
	}
	return nil
}

func (s *Service) openRound(ctx context.Context) (*lottery.Round, error) {
	round, err := s.store.LatestRound(ctx, lottery.KindSpecial)
	if err != nil {
		return nil, fmt.Errorf("%w: no open round", lottery.ErrWrongStatus)
	}
	if round.Status != lottery.RoundStatusOpen {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrWrongStatus, round.ID, round.Status)
	}
	if !s.now().Before(round.EndTime) {
		return nil, fmt.Errorf("%w: round %d sales ended", lottery.ErrWrongStatus, round.ID)
	}
	return round, nil
}

// CloseLottery stops sales once the round is over and requests the pooled
// draw's randomness.
func (s *Service) CloseLottery(ctx context.Context, caller string) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireOperator(ctx, caller); err != nil {
		return nil, err
	}

	round, err := s.store.LatestRound(ctx, lottery.KindSpecial)
	if err != nil {
		return nil, err
	}
	if round.Status != lottery.RoundStatusOpen {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrWrongStatus, round.ID, round.Status)
	}
	if s.now().Before(round.EndTime) {
		return nil, fmt.Errorf("%w: round %d ends %s", lottery.ErrLotteryNotOver, round.ID, round.EndTime)
	}

	if _, err := s.bridge.RequestDraw(ctx, string(lottery.KindSpecial), round.ID); err != nil {
		return nil, err
	}

	round.Status = lottery.RoundStatusClosed
	round.ClosedAt = s.now()
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}

	s.log.WithField("round_id", round.ID).Info("lottery closed, randomness requested")
	return round, nil
}

// drawResult fetches the round's fulfilled randomness. Requests live in
// process memory, so a Closed round seen after a restart has no request on
// file; re-issue it and read the result again.
func (s *Service) drawResult(ctx context.Context, roundID int64) (uint32, error) {
	raw, err := s.bridge.Result(string(lottery.KindSpecial), roundID)
	if errors.Is(err, randomness.ErrNoRequest) {
		if _, reqErr := s.bridge.RequestDraw(ctx, string(lottery.KindSpecial), roundID); reqErr != nil {
			return 0, fmt.Errorf("%w: %v", lottery.ErrRandomnessNotFulfilled, reqErr)
		}
		raw, err = s.bridge.Result(string(lottery.KindSpecial), roundID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", lottery.ErrRandomnessNotFulfilled, err)
	}
	return raw, nil
}

// PickAwardWinners draws the pooled second-stage winners: up to
// MaxPoolWinners distinct non-bonus tickets, each owed WinnerSharePercent
// of the counterpart pot as snapshotted now. The selection is persisted so
// every later view and claim answers identically.
func (s *Service) PickAwardWinners(ctx context.Context, caller string) (*lottery.AwardSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return nil, err
	}

	round, err := s.store.LatestRound(ctx, lottery.KindSpecial)
	if err != nil {
		return nil, err
	}
	if round.Status != lottery.RoundStatusClosed {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrWrongStatus, round.ID, round.Status)
	}

	raw, err := s.drawResult(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	pool, _, err := s.store.ListTickets(ctx, round.ID, storage.TicketFilter{ExcludeBonus: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(pool))
	for i, t := range pool {
		ids[i] = t.ID
	}

	count := MaxPoolWinners
	if len(ids) < count {
		count = len(ids)
	}
	winners := pickDistinct(int64(raw), ids, count)

	snapshot := s.ledger.BalanceOf(cfg.CounterpartAddress)
	set := &lottery.AwardSet{
		RoundID:        round.ID,
		Stage:          lottery.AwardStageDeLotto,
		TicketIDs:      winners,
		PotSnapshot:    snapshot,
		PerTicketPrize: pot.Percent(snapshot, WinnerSharePercent),
		PickedAt:       s.now(),
	}
	if err := s.store.SaveAwardSet(ctx, set); err != nil {
		return nil, fmt.Errorf("saving award set: %w", err)
	}

	round.Status = lottery.RoundStatusClaimable
	round.DrawnAt = s.now()
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}

	metrics.RecordDrawCompleted(string(lottery.KindSpecial), string(lottery.AwardStageDeLotto))
	s.log.WithField("round_id", round.ID).
		WithField("winners", len(winners)).
		WithField("per_ticket", set.PerTicketPrize).
		Info("pooled winners picked")
	return set, nil
}

// ClaimAwards pays owner's winning tickets their pooled prize from the
// counterpart pot. Best effort, one outcome per requested ticket.
func (s *Service) ClaimAwards(ctx context.Context, owner string, roundID int64, ticketIDs []int64) ([]ClaimOutcome, error) {
	if len(ticketIDs) == 0 {
		return nil, lottery.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.store.GetRound(ctx, lottery.KindSpecial, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	if round.Status != lottery.RoundStatusClaimable {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrLotteryNotClaimable, round.ID, round.Status)
	}
	set, err := s.store.GetAwardSet(ctx, roundID, lottery.AwardStageDeLotto)
	if err != nil {
		return nil, fmt.Errorf("%w: winners not picked", lottery.ErrLotteryNotClaimable)
	}
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}

	winning := make(map[int64]bool, len(set.TicketIDs))
	for _, id := range set.TicketIDs {
		winning[id] = true
	}

	outcomes := make([]ClaimOutcome, len(ticketIDs))
	for i, id := range ticketIDs {
		outcomes[i] = s.claimOne(ctx, cfg, round, winning, set.PerTicketPrize, owner, id)
	}
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}
	return outcomes, nil
}

func (s *Service) claimOne(ctx context.Context, cfg *lottery.Config, round *lottery.Round, winning map[int64]bool, prize int64, owner string, ticketID int64) ClaimOutcome {
	out := ClaimOutcome{TicketID: ticketID}

	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil || t.RoundID != round.ID {
		out.Err = lottery.ErrTicketNotFound
		return out
	}
	if t.Owner != owner {
		out.Err = lottery.ErrUnauthorized
		return out
	}
	if !winning[ticketID] {
		out.Err = lottery.ErrNotWinner
		return out
	}
	if t.Claimed {
		out.Err = lottery.ErrAlreadyClaimed
		return out
	}

	if prize > 0 {
		if err := s.ledger.Transfer(cfg.CounterpartAddress, owner, prize); err != nil {
			out.Err = fmt.Errorf("%w: %v", lottery.ErrTransferFailed, err)
			return out
		}
	}

	t.Claimed = true
	t.PaidAmount = prize
	t.ClaimedAt = s.now()
	if err := s.store.UpdateTicket(ctx, t); err != nil {
		out.Err = fmt.Errorf("recording claim: %w", err)
		return out
	}

	round.DistributedRewards += prize
	out.Amount = prize
	metrics.RecordRewardPaid(string(lottery.KindSpecial), string(lottery.AwardStageDeLotto), prize)
	return out
}

// SetDeGrandPrize attaches or updates the grand prize draw of a round.
// Frozen once winners are picked.
func (s *Service) SetDeGrandPrize(ctx context.Context, caller string, prize lottery.DeGrandPrize) error {
	if _, err := s.requireOperator(ctx, caller); err != nil {
		return err
	}
	if prize.MaxWinnerCount <= 0 {
		return lottery.ErrInvalidQuantity
	}
	if _, err := s.store.GetRound(ctx, lottery.KindSpecial, prize.RoundID); err != nil {
		return lottery.ErrRoundNotFound
	}
	if existing, err := s.store.GetDeGrandPrize(ctx, prize.RoundID); err == nil && existing.Picked {
		return lottery.ErrAlreadyPicked
	}
	prize.Picked = false
	return s.store.SaveDeGrandPrize(ctx, &prize)
}

// ViewDeGrandPrize returns the round's grand prize announcement.
func (s *Service) ViewDeGrandPrize(ctx context.Context, roundID int64) (*lottery.DeGrandPrize, error) {
	return s.store.GetDeGrandPrize(ctx, roundID)
}

// PickDeGrandWinners draws distinct non-bonus tickets for the round's grand
// prize, reusing the round's pooled draw seed under a disjoint tag. Under
// the current schema the winner cap comes from the stored prize record and
// winnerCount is ignored; pre-upgrade stores still take it as an argument.
// The pick latches: once made it can never be redrawn.
func (s *Service) PickDeGrandWinners(ctx context.Context, caller string, roundID int64, winnerCount int) (*lottery.AwardSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireOperator(ctx, caller); err != nil {
		return nil, err
	}

	prize, err := s.store.GetDeGrandPrize(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if prize.Picked {
		return nil, lottery.ErrAlreadyPicked
	}
	round, err := s.store.GetRound(ctx, lottery.KindSpecial, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	if round.Status == lottery.RoundStatusPending || round.Status == lottery.RoundStatusOpen {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrWrongStatus, round.ID, round.Status)
	}
	if s.now().Before(prize.DrawTime) {
		return nil, fmt.Errorf("%w: draw time %s", lottery.ErrLotteryNotOver, prize.DrawTime)
	}

	raw, err := s.drawResult(ctx, roundID)
	if err != nil {
		return nil, err
	}

	pool, _, err := s.store.ListTickets(ctx, roundID, storage.TicketFilter{ExcludeBonus: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(pool))
	for i, t := range pool {
		ids[i] = t.ID
	}

	count, err := s.degrandWinnerCount(ctx, prize, winnerCount)
	if err != nil {
		return nil, err
	}
	if len(ids) < count {
		count = len(ids)
	}
	winners := pickDistinct(int64(raw)^degrandSeedTag, ids, count)

	set := &lottery.AwardSet{
		RoundID:   roundID,
		Stage:     lottery.AwardStageDeGrand,
		TicketIDs: winners,
		PickedAt:  s.now(),
	}
	if err := s.store.SaveAwardSet(ctx, set); err != nil {
		return nil, fmt.Errorf("saving award set: %w", err)
	}

	prize.Picked = true
	if err := s.store.SaveDeGrandPrize(ctx, prize); err != nil {
		return nil, fmt.Errorf("latching pick: %w", err)
	}

	metrics.RecordDrawCompleted(string(lottery.KindSpecial), string(lottery.AwardStageDeGrand))
	s.log.WithField("round_id", roundID).
		WithField("winners", len(winners)).
		Info("grand prize winners picked")
	return set, nil
}

// degrandWinnerCount resolves the grand prize cap. Stores upgraded to the
// current schema own the cap in the prize record; older stores predate it
// and require the caller to pass one.
func (s *Service) degrandWinnerCount(ctx context.Context, prize *lottery.DeGrandPrize, winnerCount int) (int, error) {
	version, err := s.store.GetSchemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if version >= storage.SchemaVersion {
		return prize.MaxWinnerCount, nil
	}
	if winnerCount <= 0 {
		return 0, fmt.Errorf("%w: winner count required before upgrade", lottery.ErrInvalidQuantity)
	}
	return winnerCount, nil
}

// ViewAwardWinners returns a round's persisted winner selection.
func (s *Service) ViewAwardWinners(ctx context.Context, roundID int64, stage lottery.AwardStage) (*lottery.AwardSet, error) {
	return s.store.GetAwardSet(ctx, roundID, stage)
}

// TicketWin reports one ticket's standing against a persisted winner
// selection.
type TicketWin struct {
	TicketID int64 `json:"ticket_id"`
	Won      bool  `json:"won"`
	Prize    int64 `json:"prize,omitempty"`
	Claimed  bool  `json:"claimed,omitempty"`
}

// ViewDeLottoWinningForTickets answers, per requested ticket, whether it
// won the round's pooled draw, the prize owed and whether it was claimed.
// Before winners are picked every ticket reads as not winning.
func (s *Service) ViewDeLottoWinningForTickets(ctx context.Context, roundID int64, ticketIDs []int64) ([]TicketWin, error) {
	return s.ticketWins(ctx, roundID, lottery.AwardStageDeLotto, ticketIDs)
}

// ViewDeGrandStatusForTickets answers, per requested ticket, whether it was
// picked for the round's grand prize.
func (s *Service) ViewDeGrandStatusForTickets(ctx context.Context, roundID int64, ticketIDs []int64) ([]TicketWin, error) {
	return s.ticketWins(ctx, roundID, lottery.AwardStageDeGrand, ticketIDs)
}

func (s *Service) ticketWins(ctx context.Context, roundID int64, stage lottery.AwardStage, ticketIDs []int64) ([]TicketWin, error) {
	if len(ticketIDs) == 0 {
		return nil, lottery.ErrInvalidQuantity
	}

	winning := make(map[int64]bool)
	var perTicket int64
	set, err := s.store.GetAwardSet(ctx, roundID, stage)
	switch {
	case err == nil:
		for _, id := range set.TicketIDs {
			winning[id] = true
		}
		perTicket = set.PerTicketPrize
	case errors.Is(err, storage.ErrNotFound):
		// no pick yet, every ticket reads as not winning
	default:
		return nil, err
	}

	wins := make([]TicketWin, len(ticketIDs))
	for i, id := range ticketIDs {
		wins[i] = TicketWin{TicketID: id}
		if !winning[id] {
			continue
		}
		wins[i].Won = true
		if stage == lottery.AwardStageDeLotto {
			wins[i].Prize = perTicket
			if t, err := s.store.GetTicket(ctx, id); err == nil {
				wins[i].Claimed = t.Claimed
			}
		}
	}
	return wins, nil
}

// ViewRound returns a round by id.
func (s *Service) ViewRound(ctx context.Context, roundID int64) (*lottery.Round, error) {
	round, err := s.store.GetRound(ctx, lottery.KindSpecial, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	return round, nil
}

// CurrentRound returns the latest round of any status.
func (s *Service) CurrentRound(ctx context.Context) (*lottery.Round, error) {
	round, err := s.store.LatestRound(ctx, lottery.KindSpecial)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	return round, nil
}

// ViewUserInfo pages through owner's tickets in a round.
func (s *Service) ViewUserInfo(ctx context.Context, owner string, roundID int64, offset, limit int) (*lottery.UserInfo, error) {
	tickets, total, err := s.store.ListTickets(ctx, roundID, storage.TicketFilter{Owner: owner, Offset: offset, Limit: limit})
	if err != nil {
		return nil, err
	}
	info := &lottery.UserInfo{
		TicketIDs: make([]int64, len(tickets)),
		Numbers:   make([]uint32, len(tickets)),
		Claimed:   make([]bool, len(tickets)),
		Total:     total,
	}
	for i, t := range tickets {
		info.TicketIDs[i] = t.ID
		info.Numbers[i] = t.Number
		info.Claimed[i] = t.Claimed
	}
	return info, nil
}

// SetTicketPrice updates the price snapshotted into future rounds.
func (s *Service) SetTicketPrice(ctx context.Context, caller string, price int64) error {
	if price <= 0 {
		return token.ErrInvalidAmount
	}
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	cfg.TicketPrice = price
	return s.store.SaveConfig(ctx, lottery.KindSpecial, cfg)
}

// SetShares replaces the purchase routing split for future rounds.
func (s *Service) SetShares(ctx context.Context, caller string, shares lottery.PotShares) error {
	if err := shares.Validate(); err != nil {
		return err
	}
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	cfg.Shares = shares
	return s.store.SaveConfig(ctx, lottery.KindSpecial, cfg)
}

// SetCounterpartAddress updates the linked standard lottery's fund account.
func (s *Service) SetCounterpartAddress(ctx context.Context, caller, address string) error {
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("%w: counterpart", lottery.ErrInvalidAddress)
	}
	if err := s.requireNoOpenRound(ctx); err != nil {
		return err
	}
	cfg.CounterpartAddress = address
	return s.store.SaveConfig(ctx, lottery.KindSpecial, cfg)
}

// SetTeamWallet updates the team routing destination.
func (s *Service) SetTeamWallet(ctx context.Context, caller, wallet string) error {
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	if wallet == "" {
		return fmt.Errorf("%w: team wallet", lottery.ErrInvalidAddress)
	}
	if err := s.requireNoOpenRound(ctx); err != nil {
		return err
	}
	cfg.TeamWallet = wallet
	return s.store.SaveConfig(ctx, lottery.KindSpecial, cfg)
}

// SetBundleRule adds, replaces or removes a bulk-purchase bonus tier. A
// zero bonus removes the tier at threshold.
func (s *Service) SetBundleRule(ctx context.Context, caller string, threshold, bonus int) error {
	if _, err := s.requireOperator(ctx, caller); err != nil {
		return err
	}
	if err := s.bundles.Set(threshold, bonus); err != nil {
		return err
	}
	s.log.WithField("threshold", threshold).
		WithField("bonus", bonus).
		Info("bundle rule updated")
	return nil
}

// pickDistinct selects n distinct ids from the pool, seeded so the same
// randomness always reproduces the same winners.
func pickDistinct(seed int64, ids []int64, n int) []int64 {
	pool := append([]int64(nil), ids...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}
