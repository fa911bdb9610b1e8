package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/twinpot/lottery-engine/internal/config"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Scheduler.PollInterval = config.Duration(5 * time.Millisecond)
	return cfg
}

func TestNewWiresBothLotteries(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Shutdown(ctx)

	app.Ledger.Mint("alice", 10_000)

	round, err := app.Standard.StartLottery(ctx, "operator", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("start standard: %v", err)
	}
	if round.Kind != lottery.KindStandard || round.Status != lottery.RoundStatusOpen {
		t.Fatalf("unexpected round %+v", round)
	}
	if _, err := app.Standard.BuyTickets(ctx, "alice", []uint32{101140803}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// One 500-unit ticket on the shipped 50/30/10/10 split.
	if got := app.Ledger.BalanceOf("standard-pot"); got != 250 {
		t.Fatalf("standard pot = %d, want 250", got)
	}
	if got := app.Ledger.BalanceOf("special-pot"); got != 150 {
		t.Fatalf("special pot = %d, want 150", got)
	}

	if _, err := app.Special.StartLottery(ctx, "operator", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("start special: %v", err)
	}
	if _, err := app.Special.BuyTickets(ctx, "alice", 2); err != nil {
		t.Fatalf("buy special: %v", err)
	}
	// Two 1000-unit tickets route 70% to the numbered lottery's pot.
	if got := app.Ledger.BalanceOf("standard-pot"); got != 250+1400 {
		t.Fatalf("standard pot after special sale = %d, want 1650", got)
	}
}

func TestNewSeedsConfigOnce(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Shutdown(ctx)

	// Non-operator callers are rejected, proving the seed took.
	if _, err := app.Standard.StartLottery(ctx, "mallory", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected unauthorized start to fail")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- app.Run(runCtx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
