// Package runtime wires the lottery services, scheduler and HTTP server
// into a single lifecycle-managed application.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/config"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/httpapi"
	"github.com/twinpot/lottery-engine/internal/metrics"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/services/drawscheduler"
	"github.com/twinpot/lottery-engine/internal/services/special"
	"github.com/twinpot/lottery-engine/internal/services/standard"
	"github.com/twinpot/lottery-engine/internal/storage"
	"github.com/twinpot/lottery-engine/internal/storage/memory"
	"github.com/twinpot/lottery-engine/internal/storage/postgres"
	"github.com/twinpot/lottery-engine/internal/token"
	"github.com/twinpot/lottery-engine/pkg/logger"
)

// Application ties both lottery services together and manages the HTTP
// server and draw scheduler lifecycle.
type Application struct {
	cfg *config.Config
	log *logger.Logger

	Standard  *standard.Service
	Special   *special.Service
	Scheduler *drawscheduler.Scheduler
	Ledger    *token.MemoryLedger
	Oracle    *randomness.FixedOracle
	Bridge    *randomness.Bridge

	store      storage.Store
	httpServer *http.Server
}

// New builds a fully initialised application from the configuration. The
// store backend follows cfg.Database; everything else is wired in memory.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.New(cfg.Logging)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	ledger := token.NewMemoryLedger()
	oracle := randomness.NewFixedOracle(0)
	bridge := randomness.NewBridge(oracle, log)
	oracle.Bind(bridge)

	// Each service owns its tier table; operator updates to one lottery's
	// bundles must not leak into the other.
	stdService := standard.New(store, ledger, bridge, bundle.NewTable(cfg.Bundles), cfg.Standard.Address, log)
	spcService := special.New(store, ledger, bridge, bundle.NewTable(cfg.Bundles), cfg.Special.Address, log)

	if err := stdService.EnsureConfig(ctx, standardSeed(cfg)); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed standard config: %w", err)
	}
	if err := spcService.EnsureConfig(ctx, specialSeed(cfg)); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed special config: %w", err)
	}

	scheduler := drawscheduler.New(stdService, spcService, cfg.Operator, drawscheduler.Config{
		StartSpec:    cfg.Scheduler.StartSpec,
		RoundLength:  cfg.Scheduler.RoundLength.Std(),
		PollInterval: cfg.Scheduler.PollInterval.Std(),
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", metrics.InstrumentHandler(httpapi.NewHandler(stdService, spcService)))

	return &Application{
		cfg: cfg,
		log: log,

		Standard:  stdService,
		Special:   spcService,
		Scheduler: scheduler,
		Ledger:    ledger,
		Oracle:    oracle,
		Bridge:    bridge,

		store: store,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}, nil
}

// Run starts the scheduler and HTTP server and blocks until the context
// is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.HTTP.Addr).Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the scheduler, drains the HTTP server and closes the
// store.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping scheduler")
	}
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("error closing store")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		return memory.NewStore(), nil
	case "postgres":
		return postgres.Open(ctx, cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// standardSeed derives the numbered lottery's first-boot configuration.
// The counterpart pot is the special lottery's fund address.
func standardSeed(cfg *config.Config) lottery.Config {
	return lottery.Config{
		OperatorAddress:    cfg.Operator,
		TeamWallet:         cfg.Team,
		CounterpartAddress: cfg.Special.Address,
		TransfererAddress:  cfg.Special.Address,
		BurnAddress:        cfg.Burn,
		TicketPrice:        cfg.Standard.TicketPrice,
		Shares:             cfg.Standard.Shares,
		Breakdown:          lottery.Breakdown(cfg.Standard.Breakdown),
	}
}

// specialSeed mirrors standardSeed. The flat lottery routes its pot to
// the numbered lottery and pays its prizes from there.
func specialSeed(cfg *config.Config) lottery.Config {
	return lottery.Config{
		OperatorAddress:    cfg.Operator,
		TeamWallet:         cfg.Team,
		CounterpartAddress: cfg.Standard.Address,
		BurnAddress:        cfg.Burn,
		TicketPrice:        cfg.Special.TicketPrice,
		Shares:             cfg.Special.Shares,
	}
}
