// Package drawscheduler automates the round lifecycle: opening rounds on a
// cron schedule and driving due rounds through close, draw and pick.
package drawscheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

// StandardEngine is the slice of the standard lottery the scheduler drives.
type StandardEngine interface {
	CurrentRound(ctx context.Context) (*lottery.Round, error)
	StartLottery(ctx context.Context, caller string, endTime time.Time) (*lottery.Round, error)
	CloseLottery(ctx context.Context, caller string) (*lottery.Round, error)
	DrawFinalNumber(ctx context.Context, caller string) (*lottery.Round, error)
}

// SpecialEngine is the slice of the special lottery the scheduler drives.
type SpecialEngine interface {
	CurrentRound(ctx context.Context) (*lottery.Round, error)
	StartLottery(ctx context.Context, caller string, endTime time.Time) (*lottery.Round, error)
	CloseLottery(ctx context.Context, caller string) (*lottery.Round, error)
	PickAwardWinners(ctx context.Context, caller string) (*lottery.AwardSet, error)
}

// Config controls the automation cadence.
type Config struct {
	// StartSpec is a cron expression for opening new rounds; empty
	// disables automatic starts.
	StartSpec string `yaml:"start_spec"`

	// RoundLength is how long automatically started rounds stay open.
	RoundLength time.Duration `yaml:"round_length"`

	// PollInterval is how often due rounds are checked for close and draw.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Scheduler drives both lotteries with the operator's authority.
type Scheduler struct {
	standard StandardEngine
	special  SpecialEngine
	operator string
	cfg      Config
	log      *logger.Logger

	cron *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New builds a scheduler. Zero durations get conservative defaults.
func New(std StandardEngine, spc SpecialEngine, operator string, cfg Config, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("drawscheduler")
	}
	if cfg.RoundLength <= 0 {
		cfg.RoundLength = 7 * 24 * time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Scheduler{
		standard: std,
		special:  spc,
		operator: operator,
		cfg:      cfg,
		log:      log,
	}
}

// Name identifies the scheduler to the runtime.
func (s *Scheduler) Name() string { return "drawscheduler" }

// Start launches the cron starter and the close/draw poller.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	if s.cfg.StartSpec != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.StartSpec, func() { s.startRounds(runCtx) }); err != nil {
			cancel()
			s.running = false
			s.cancel = nil
			return err
		}
		s.cron.Start()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.WithField("start_spec", s.cfg.StartSpec).Info("draw scheduler started")
	return nil
}

// Stop halts the cron starter and waits for the poller to drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	cr := s.cron
	s.running = false
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (s *Scheduler) startRounds(ctx context.Context) {
	endTime := time.Now().UTC().Add(s.cfg.RoundLength)
	if _, err := s.standard.StartLottery(ctx, s.operator, endTime); err != nil && !errors.Is(err, lottery.ErrAlreadyOpen) {
		s.log.WithError(err).Warn("auto-start standard round failed")
	}
	if _, err := s.special.StartLottery(ctx, s.operator, endTime); err != nil && !errors.Is(err, lottery.ErrAlreadyOpen) {
		s.log.WithError(err).Warn("auto-start special round failed")
	}
}

// tick nudges each lottery one step along its lifecycle. Steps that are
// not due yet fail with recognized sentinels and are skipped quietly.
func (s *Scheduler) tick(ctx context.Context) {
	s.tickStandard(ctx)
	s.tickSpecial(ctx)
}

func (s *Scheduler) tickStandard(ctx context.Context) {
	round, err := s.standard.CurrentRound(ctx)
	if err != nil {
		return
	}
	switch round.Status {
	case lottery.RoundStatusOpen:
		if _, err := s.standard.CloseLottery(ctx, s.operator); err != nil && !expected(err) {
			s.log.WithError(err).Warn("auto-close standard round failed")
		}
	case lottery.RoundStatusClosed:
		if _, err := s.standard.DrawFinalNumber(ctx, s.operator); err != nil && !expected(err) {
			s.log.WithError(err).Warn("auto-draw standard round failed")
		}
	}
}

func (s *Scheduler) tickSpecial(ctx context.Context) {
	round, err := s.special.CurrentRound(ctx)
	if err != nil {
		return
	}
	switch round.Status {
	case lottery.RoundStatusOpen:
		if _, err := s.special.CloseLottery(ctx, s.operator); err != nil && !expected(err) {
			s.log.WithError(err).Warn("auto-close special round failed")
		}
	case lottery.RoundStatusClosed:
		if _, err := s.special.PickAwardWinners(ctx, s.operator); err != nil && !expected(err) {
			s.log.WithError(err).Warn("auto-pick special winners failed")
		}
	}
}

func expected(err error) bool {
	return errors.Is(err, lottery.ErrLotteryNotOver) ||
		errors.Is(err, lottery.ErrRandomnessNotFulfilled)
}
