// Package standard implements the numbered-ticket lottery: rounds with a
// digit-suffix prize ladder paid from the round's own pot.
package standard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twinpot/lottery-engine/internal/bracket"
	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/metrics"
	"github.com/twinpot/lottery-engine/internal/pot"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/storage"
	"github.com/twinpot/lottery-engine/internal/ticket"
	"github.com/twinpot/lottery-engine/internal/token"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

// DefaultConfig is the boot configuration applied when the store holds none.
var DefaultConfig = lottery.Config{
	TicketPrice: 500,
	Shares:      lottery.PotShares{SelfPot: 5000, CounterpartPot: 3000, TeamWallet: 1000, Burn: 1000},
	Breakdown:   lottery.Breakdown{0, 1000, 2500, 10000},
}

// ClaimOutcome reports one ticket of a claim batch. Failed tickets carry
// their error; the batch itself only fails on round-level problems.
type ClaimOutcome struct {
	TicketID int64 `json:"ticket_id"`
	Amount   int64 `json:"amount"`
	Err      error `json:"-"`
}

// Service runs the numbered lottery. All round transitions are serialized
// by an internal mutex; reads go straight to the store.
type Service struct {
	store   storage.Store
	ledger  token.Ledger
	bridge  *randomness.Bridge
	bundles *bundle.Table
	log     *logger.Logger

	// address is the fund account holding this lottery's pot.
	address string

	now func() time.Time

	mu sync.Mutex
}

// New wires a standard lottery service. The address receives the self pot
// share of every purchase and pays all rewards.
func New(store storage.Store, ledger token.Ledger, bridge *randomness.Bridge, bundles *bundle.Table, address string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("lottery-standard")
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

// Address returns the fund account paying this lottery's rewards.
func (s *Service) Address() string { return s.address }

// EnsureConfig seeds the operator configuration on first boot. An existing
// config is left untouched.
func (s *Service) EnsureConfig(ctx context.Context, seed lottery.Config) error {
	if _, err := s.store.GetConfig(ctx, lottery.KindStandard); err == nil {
		return nil
	}
	if err := seed.Shares.Validate(); err != nil {
		return err
	}
	if err := seed.Breakdown.Validate(); err != nil {
		return err
	}
	if err := seed.ValidateAddresses(); err != nil {
		return err
	}
	return s.store.SaveConfig(ctx, lottery.KindStandard, &seed)
}

func (s *Service) config(ctx context.Context) (*lottery.Config, error) {
	return s.store.GetConfig(ctx, lottery.KindStandard)
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
	round, err := s.store.LatestRound(ctx, lottery.KindStandard)
	if err != nil {
		return nil
	}
	if round.Status == lottery.RoundStatusOpen {
		return fmt.Errorf("%w: round %d still open", lottery.ErrAlreadyOpen, round.ID)
	}
	return nil
}

// StartLottery opens a new round ending at endTime, snapshotting the current
// price, shares and breakdown. Only one round may be open at a time.
func (s *Service) StartLottery(ctx context.Context, caller string, endTime time.Time) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return nil, err
	}

	if latest, err := s.store.LatestRound(ctx, lottery.KindStandard); err == nil {
		if latest.Status != lottery.RoundStatusClaimable {
			return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrAlreadyOpen, latest.ID, latest.Status)
		}
	}

	now := s.now()
	if !endTime.After(now) {
		return nil, fmt.Errorf("%w: end time %s not in the future", lottery.ErrWrongStatus, endTime)
	}

	round := &lottery.Round{
		Kind:        lottery.KindStandard,
		Status:      lottery.RoundStatusOpen,
		StartTime:   now,
		EndTime:     endTime.UTC(),
		TicketPrice: cfg.TicketPrice,
		Shares:      cfg.Shares,
		Breakdown:   append(lottery.Breakdown(nil), cfg.Breakdown...),
	}
	if err := s.store.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("creating round: %w", err)
	}

	metrics.RecordRoundStarted(string(lottery.KindStandard))
	s.log.WithField("round_id", round.ID).WithField("end_time", round.EndTime).Info("lottery started")
	return round, nil
}

// BuyTickets sells one ticket per supplied number to buyer in the open
// round. Bundle thresholds make the trailing tickets of a large batch free;
// free tickets are marked and excluded from counterpart eligibility pools.
func (s *Service) BuyTickets(ctx context.Context, buyer string, numbers []uint32) ([]*lottery.Ticket, error) {
	if len(numbers) == 0 {
		return nil, lottery.ErrInvalidQuantity
	}
	for _, n := range numbers {
		if err := ticket.Validate(n); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.openRound(ctx)
	if err != nil {
		return nil, err
	}

	quantity := len(numbers)
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
	for i, n := range numbers {
		tickets[i] = &lottery.Ticket{
			RoundID:     round.ID,
			Owner:       buyer,
			Number:      n,
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

	metrics.RecordTicketsSold(string(lottery.KindStandard), paid, bonus)
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
	round, err := s.store.LatestRound(ctx, lottery.KindStandard)
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

// CloseLottery stops sales once the round's end time has passed and
// requests draw randomness from the oracle.
func (s *Service) CloseLottery(ctx context.Context, caller string) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireOperator(ctx, caller); err != nil {
		return nil, err
	}

	round, err := s.store.LatestRound(ctx, lottery.KindStandard)
	if err != nil {
		return nil, err
	}
	if round.Status != lottery.RoundStatusOpen {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrWrongStatus, round.ID, round.Status)
	}
	if s.now().Before(round.EndTime) {
		return nil, fmt.Errorf("%w: round %d ends %s", lottery.ErrLotteryNotOver, round.ID, round.EndTime)
	}

	if _, err := s.bridge.RequestDraw(ctx, string(lottery.KindStandard), round.ID); err != nil {
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
	raw, err := s.bridge.Result(string(lottery.KindStandard), roundID)
	if errors.Is(err, randomness.ErrNoRequest) {
		if _, reqErr := s.bridge.RequestDraw(ctx, string(lottery.KindStandard), roundID); reqErr != nil {
			return 0, fmt.Errorf("%w: %v", lottery.ErrRandomnessNotFulfilled, reqErr)
		}
		raw, err = s.bridge.Result(string(lottery.KindStandard), roundID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", lottery.ErrRandomnessNotFulfilled, err)
	}
	return raw, nil
}

// DrawFinalNumber folds the fulfilled randomness into the ticket space and
// makes the round claimable.
func (s *Service) DrawFinalNumber(ctx context.Context, caller string) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireOperator(ctx, caller); err != nil {
		return nil, err
	}

	round, err := s.store.LatestRound(ctx, lottery.KindStandard)
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

	round.FinalNumber = bracket.WrapDrawNumber(raw)
	round.Status = lottery.RoundStatusClaimable
	round.DrawnAt = s.now()
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}

	metrics.RecordDrawCompleted(string(lottery.KindStandard), "final")
	s.log.WithField("round_id", round.ID).
		WithField("final_number", round.FinalNumber).
		Info("final number drawn")
	return round, nil
}

// ClaimTickets pays the rewards for owner's tickets in a claimable round.
// Each entry declares the bracket it claims; a declaration that does not
// match the computed bracket fails that ticket only. The batch is best
// effort, one outcome per requested ticket.
func (s *Service) ClaimTickets(ctx context.Context, owner string, roundID int64, ticketIDs []int64, brackets []int) ([]ClaimOutcome, error) {
	if len(ticketIDs) == 0 || len(ticketIDs) != len(brackets) {
		return nil, lottery.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.store.GetRound(ctx, lottery.KindStandard, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	if round.Status != lottery.RoundStatusClaimable {
		return nil, fmt.Errorf("%w: round %d is %s", lottery.ErrLotteryNotClaimable, round.ID, round.Status)
	}

	outcomes := make([]ClaimOutcome, len(ticketIDs))
	for i, id := range ticketIDs {
		outcomes[i] = s.claimOne(ctx, round, owner, id, brackets[i])
	}
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}
	return outcomes, nil
}

func (s *Service) claimOne(ctx context.Context, round *lottery.Round, owner string, ticketID int64, declared int) ClaimOutcome {
	out := ClaimOutcome{TicketID: ticketID}

	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		out.Err = lottery.ErrTicketNotFound
		return out
	}
	if t.RoundID != round.ID {
		out.Err = lottery.ErrTicketNotFound
		return out
	}
	if t.Owner != owner {
		out.Err = lottery.ErrUnauthorized
		return out
	}
	if t.Claimed {
		out.Err = lottery.ErrAlreadyClaimed
		return out
	}

	computed := bracket.Bracket(round.FinalNumber, t.Number)
	if computed != declared {
		out.Err = fmt.Errorf("%w: declared %d, matched %d", lottery.ErrBracketMismatch, declared, computed)
		return out
	}

	amount := int64(0)
	if computed >= 0 {
		amount = pot.Reward(round.RoutedSelf, round.Breakdown[computed])
	}
	if amount > 0 {
		if err := s.ledger.Transfer(s.address, owner, amount); err != nil {
			out.Err = fmt.Errorf("%w: %v", lottery.ErrTransferFailed, err)
			return out
		}
	}

	t.Claimed = true
	t.ClaimedBracket = computed
	t.PaidAmount = amount
	t.ClaimedAt = s.now()
	if err := s.store.UpdateTicket(ctx, t); err != nil {
		out.Err = fmt.Errorf("recording claim: %w", err)
		return out
	}

	round.DistributedRewards += amount
	out.Amount = amount
	metrics.RecordRewardPaid(string(lottery.KindStandard), "bracket", amount)
	return out
}

// IncreasePot tops up the round pot from an external account. Allowed any
// time after the round exists; jackpot seeding usually happens right after
// start.
func (s *Service) IncreasePot(ctx context.Context, from string, roundID int64, amount int64) (*lottery.Round, error) {
	if amount <= 0 {
		return nil, token.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.store.GetRound(ctx, lottery.KindStandard, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	if err := s.ledger.Transfer(from, s.address, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", lottery.ErrTransferFailed, err)
	}
	round.RoutedSelf += amount
	if err := s.store.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("updating round: %w", err)
	}

	s.log.WithField("round_id", round.ID).WithField("amount", amount).Info("pot increased")
	return round, nil
}

// --- views ------------------------------------------------------------------

// ViewRound returns a round by id.
func (s *Service) ViewRound(ctx context.Context, roundID int64) (*lottery.Round, error) {
	round, err := s.store.GetRound(ctx, lottery.KindStandard, roundID)
	if err != nil {
		return nil, lottery.ErrRoundNotFound
	}
	return round, nil
}

// CurrentRound returns the latest round of any status.
func (s *Service) CurrentRound(ctx context.Context) (*lottery.Round, error) {
	round, err := s.store.LatestRound(ctx, lottery.KindStandard)
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

// ViewReward returns what a ticket would earn in the given bracket, zero
// when the declaration does not match or the round is not claimable.
func (s *Service) ViewReward(ctx context.Context, roundID, ticketID int64, declared int) (int64, error) {
	round, err := s.store.GetRound(ctx, lottery.KindStandard, roundID)
	if err != nil {
		return 0, lottery.ErrRoundNotFound
	}
	if round.Status != lottery.RoundStatusClaimable {
		return 0, nil
	}
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil || t.RoundID != roundID {
		return 0, lottery.ErrTicketNotFound
	}
	if declared < 0 || declared >= lottery.BracketCount {
		return 0, nil
	}
	if bracket.Bracket(round.FinalNumber, t.Number) != declared {
		return 0, nil
	}
	return pot.Reward(round.RoutedSelf, round.Breakdown[declared]), nil
}

// --- operator administration ------------------------------------------------

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
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
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
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
}

// SetBreakdown replaces the prize ladder for future rounds.
func (s *Service) SetBreakdown(ctx context.Context, caller string, breakdown lottery.Breakdown) error {
	if err := breakdown.Validate(); err != nil {
		return err
	}
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	cfg.Breakdown = append(lottery.Breakdown(nil), breakdown...)
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
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
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
}

// SetCounterpartAddress updates the linked special lottery's fund account.
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
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
}

// SetTransfererAddress grants an external service authority to pay prizes
// out of this lottery's pot.
func (s *Service) SetTransfererAddress(ctx context.Context, caller, address string) error {
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("%w: transferer", lottery.ErrInvalidAddress)
	}
	if err := s.requireNoOpenRound(ctx); err != nil {
		return err
	}
	cfg.TransfererAddress = address
	return s.store.SaveConfig(ctx, lottery.KindStandard, cfg)
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

// TransferTo sweeps funds from the pot account to an arbitrary destination.
// Operator escape hatch for stuck funds.
func (s *Service) TransferTo(ctx context.Context, caller, to string, amount int64) error {
	if _, err := s.requireOperator(ctx, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return token.ErrInvalidAmount
	}
	if err := s.ledger.Transfer(s.address, to, amount); err != nil {
		return fmt.Errorf("%w: %v", lottery.ErrTransferFailed, err)
	}
	s.log.WithField("to", to).WithField("amount", amount).Warn("pot funds swept")
	return nil
}

// BurnUnclaimed sends the pot account's entire remaining balance to the
// burn address, abandoning unclaimed rewards.
func (s *Service) BurnUnclaimed(ctx context.Context, caller string) (int64, error) {
	cfg, err := s.requireOperator(ctx, caller)
	if err != nil {
		return 0, err
	}
	balance := s.ledger.BalanceOf(s.address)
	if balance == 0 {
		return 0, nil
	}
	if err := s.ledger.Transfer(s.address, cfg.BurnAddress, balance); err != nil {
		return 0, fmt.Errorf("%w: %v", lottery.ErrTransferFailed, err)
	}
	s.log.WithField("amount", balance).Warn("unclaimed balance burned")
	return balance, nil
}

// UpgradeToV2 migrates the store's schema marker from the first generation.
// One-shot; repeated calls fail.
func (s *Service) UpgradeToV2(ctx context.Context, caller string) error {
	if _, err := s.requireOperator(ctx, caller); err != nil {
		return err
	}
	version, err := s.store.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version >= 2 {
		return lottery.ErrAlreadyUpgraded
	}
	if err := s.store.SetSchemaVersion(ctx, 2); err != nil {
		return err
	}
	s.log.WithField("from", version).WithField("to", 2).Info("schema upgraded")
	return nil
}
