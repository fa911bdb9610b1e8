// Package memory provides an in-process Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/storage"
)

// Store keeps everything in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	rounds  map[lottery.Kind]map[int64]*lottery.Round
	tickets map[int64]*lottery.Ticket
	byRound map[int64][]int64 // round id -> ticket ids in insertion order
	configs map[lottery.Kind]*lottery.Config
	prizes  map[int64]*lottery.DeGrandPrize
	awards  map[string]*lottery.AwardSet

	nextRoundID  map[lottery.Kind]int64
	nextTicketID int64
	schema       int
}

// NewStore returns an empty store at the current schema version.
func NewStore() *Store {
	return &Store{
		rounds:      map[lottery.Kind]map[int64]*lottery.Round{},
		tickets:     map[int64]*lottery.Ticket{},
		byRound:     map[int64][]int64{},
		configs:     map[lottery.Kind]*lottery.Config{},
		prizes:      map[int64]*lottery.DeGrandPrize{},
		awards:      map[string]*lottery.AwardSet{},
		nextRoundID: map[lottery.Kind]int64{},
		schema:      storage.SchemaVersion,
	}
}

func awardKey(roundID int64, stage lottery.AwardStage) string {
	return fmt.Sprintf("%d/%s", roundID, stage)
}

// CreateRound assigns the next id for the round's kind and stores a copy.
func (s *Store) CreateRound(ctx context.Context, round *lottery.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRoundID[round.Kind]++
	round.ID = s.nextRoundID[round.Kind]
	now := time.Now().UTC()
	round.CreatedAt = now
	round.UpdatedAt = now
	if s.rounds[round.Kind] == nil {
		s.rounds[round.Kind] = map[int64]*lottery.Round{}
	}
	s.rounds[round.Kind][round.ID] = copyRound(round)
	return nil
}

func (s *Store) GetRound(ctx context.Context, kind lottery.Kind, id int64) (*lottery.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s round %d", storage.ErrNotFound, kind, id)
	}
	return copyRound(round), nil
}

func (s *Store) UpdateRound(ctx context.Context, round *lottery.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rounds[round.Kind][round.ID]; !ok {
		return fmt.Errorf("%w: %s round %d", storage.ErrNotFound, round.Kind, round.ID)
	}
	round.UpdatedAt = time.Now().UTC()
	s.rounds[round.Kind][round.ID] = copyRound(round)
	return nil
}

func (s *Store) LatestRound(ctx context.Context, kind lottery.Kind) (*lottery.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.nextRoundID[kind]
	round, ok := s.rounds[kind][id]
	if !ok {
		return nil, fmt.Errorf("%w: no %s rounds", storage.ErrNotFound, kind)
	}
	return copyRound(round), nil
}

func (s *Store) ListRounds(ctx context.Context, kind lottery.Kind, offset, limit int) ([]*lottery.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.rounds[kind]))
	for id := range s.rounds[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := []*lottery.Round{}
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, copyRound(s.rounds[kind][id]))
	}
	return out, nil
}

// CreateTickets assigns ids and stores copies. All-or-nothing under the
// store lock.
func (s *Store) CreateTickets(ctx context.Context, tickets []*lottery.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range tickets {
		s.nextTicketID++
		t.ID = s.nextTicketID
		t.CreatedAt = now
		t.UpdatedAt = now
		s.tickets[t.ID] = copyTicket(t)
		s.byRound[t.RoundID] = append(s.byRound[t.RoundID], t.ID)
	}
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*lottery.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: ticket %d", storage.ErrNotFound, id)
	}
	return copyTicket(t), nil
}

func (s *Store) UpdateTicket(ctx context.Context, t *lottery.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[t.ID]; !ok {
		return fmt.Errorf("%w: ticket %d", storage.ErrNotFound, t.ID)
	}
	t.UpdatedAt = time.Now().UTC()
	s.tickets[t.ID] = copyTicket(t)
	return nil
}

func (s *Store) ListTickets(ctx context.Context, roundID int64, filter storage.TicketFilter) ([]*lottery.Ticket, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []*lottery.Ticket{}
	for _, id := range s.byRound[roundID] {
		t := s.tickets[id]
		if filter.Owner != "" && t.Owner != filter.Owner {
			continue
		}
		if filter.ExcludeBonus && t.Bonus {
			continue
		}
		matched = append(matched, t)
	}
	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]*lottery.Ticket, len(matched))
	for i, t := range matched {
		out[i] = copyTicket(t)
	}
	return out, total, nil
}

func (s *Store) GetConfig(ctx context.Context, kind lottery.Kind) (*lottery.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s config", storage.ErrNotFound, kind)
	}
	return copyConfig(cfg), nil
}

func (s *Store) SaveConfig(ctx context.Context, kind lottery.Kind, cfg *lottery.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[kind] = copyConfig(cfg)
	return nil
}

func (s *Store) SaveDeGrandPrize(ctx context.Context, prize *lottery.DeGrandPrize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.prizes[prize.RoundID]; ok {
		prize.CreatedAt = existing.CreatedAt
	} else {
		prize.CreatedAt = now
	}
	prize.UpdatedAt = now
	cp := *prize
	s.prizes[prize.RoundID] = &cp
	return nil
}

func (s *Store) GetDeGrandPrize(ctx context.Context, roundID int64) (*lottery.DeGrandPrize, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prize, ok := s.prizes[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: grand prize for round %d", storage.ErrNotFound, roundID)
	}
	cp := *prize
	return &cp, nil
}

func (s *Store) SaveAwardSet(ctx context.Context, set *lottery.AwardSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awards[awardKey(set.RoundID, set.Stage)] = copyAwardSet(set)
	return nil
}

func (s *Store) GetAwardSet(ctx context.Context, roundID int64, stage lottery.AwardStage) (*lottery.AwardSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.awards[awardKey(roundID, stage)]
	if !ok {
		return nil, fmt.Errorf("%w: %s award set for round %d", storage.ErrNotFound, stage, roundID)
	}
	return copyAwardSet(set), nil
}

func (s *Store) GetSchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema, nil
}

func (s *Store) SetSchemaVersion(ctx context.Context, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = version
	return nil
}

// SetSchemaVersionForTest rewinds the schema marker without validation.
func (s *Store) SetSchemaVersionForTest(version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = version
}

func (s *Store) Close() error { return nil }

func copyRound(r *lottery.Round) *lottery.Round {
	cp := *r
	if r.Breakdown != nil {
		cp.Breakdown = append(lottery.Breakdown(nil), r.Breakdown...)
	}
	return &cp
}

func copyTicket(t *lottery.Ticket) *lottery.Ticket {
	cp := *t
	return &cp
}

func copyConfig(c *lottery.Config) *lottery.Config {
	cp := *c
	if c.Breakdown != nil {
		cp.Breakdown = append(lottery.Breakdown(nil), c.Breakdown...)
	}
	return &cp
}

func copyAwardSet(a *lottery.AwardSet) *lottery.AwardSet {
	cp := *a
	if a.TicketIDs != nil {
		cp.TicketIDs = append([]int64(nil), a.TicketIDs...)
	}
	return &cp
}
