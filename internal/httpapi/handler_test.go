package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/services/special"
	"github.com/twinpot/lottery-engine/internal/services/standard"
	"github.com/twinpot/lottery-engine/internal/storage/memory"
	"github.com/twinpot/lottery-engine/internal/token"
)

const operator = "operator"

type env struct {
	server *httptest.Server
	ledger *token.MemoryLedger
	oracle *randomness.FixedOracle
	clock  *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	ledger := token.NewMemoryLedger()
	oracle := randomness.NewFixedOracle(7)
	bridge := randomness.NewBridge(oracle, nil)
	oracle.Bind(bridge)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	bundles := bundle.NewTable(bundle.DefaultRules)
	std := standard.New(store, ledger, bridge, bundles, "standard-pot", nil)
	std.WithClock(clock.now)
	spc := special.New(store, ledger, bridge, bundles, "special-pot", nil)
	spc.WithClock(clock.now)

	ctx := context.Background()
	stdCfg := standard.DefaultConfig
	stdCfg.OperatorAddress = operator
	stdCfg.TeamWallet = "team"
	stdCfg.CounterpartAddress = "special-pot"
	stdCfg.BurnAddress = "burn"
	if err := std.EnsureConfig(ctx, stdCfg); err != nil {
		t.Fatalf("standard EnsureConfig: %v", err)
	}
	spcCfg := special.DefaultConfig
	spcCfg.OperatorAddress = operator
	spcCfg.TeamWallet = "team"
	spcCfg.CounterpartAddress = "standard-pot"
	spcCfg.BurnAddress = "burn"
	if err := spc.EnsureConfig(ctx, spcCfg); err != nil {
		t.Fatalf("special EnsureConfig: %v", err)
	}

	ledger.Mint("alice", 1_000_000)

	server := httptest.NewServer(NewHandler(std, spc))
	t.Cleanup(server.Close)
	return &env{server: server, ledger: ledger, oracle: oracle, clock: clock}
}

func (e *env) post(t *testing.T, path string, payload any, wantStatus int, out any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status = %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func (e *env) get(t *testing.T, path string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	var body map[string]string
	e.get(t, "/healthz", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Fatalf("health = %+v", body)
	}
}

func TestStandardRoundOverHTTP(t *testing.T) {
	e := newEnv(t)

	var round lottery.Round
	e.post(t, "/v1/standard/rounds", map[string]any{
		"caller":   operator,
		"end_time": e.clock.t.Add(time.Hour),
	}, http.StatusCreated, &round)
	if round.ID != 1 || round.Status != lottery.RoundStatusOpen {
		t.Fatalf("round = %+v", round)
	}

	// Unauthorized start while open maps to 403 before the open check.
	e.post(t, "/v1/standard/rounds", map[string]any{
		"caller":   "mallory",
		"end_time": e.clock.t.Add(time.Hour),
	}, http.StatusForbidden, nil)

	var tickets []lottery.Ticket
	e.post(t, "/v1/standard/tickets", map[string]any{
		"buyer":   "alice",
		"numbers": []uint32{101140803},
	}, http.StatusCreated, &tickets)
	if len(tickets) != 1 {
		t.Fatalf("tickets = %+v", tickets)
	}

	// Close before end time conflicts.
	e.post(t, "/v1/standard/rounds/close", map[string]any{"caller": operator}, http.StatusConflict, nil)

	e.clock.advance(2 * time.Hour)
	e.oracle.Queue(102130702) // wraps to 103140803
	e.post(t, "/v1/standard/rounds/close", map[string]any{"caller": operator}, http.StatusOK, nil)
	e.post(t, "/v1/standard/rounds/draw", map[string]any{"caller": operator}, http.StatusOK, &round)
	if round.FinalNumber != 103140803 {
		t.Fatalf("final number = %d", round.FinalNumber)
	}

	var reward map[string]int64
	e.get(t, fmt.Sprintf("/v1/standard/rewards?round=%d&ticket=%d&bracket=2", round.ID, tickets[0].ID), http.StatusOK, &reward)
	if reward["reward"] == 0 {
		t.Fatal("expected a bracket 2 reward")
	}

	var outcomes []claimResponse
	e.post(t, "/v1/standard/claims", map[string]any{
		"owner":      "alice",
		"round_id":   round.ID,
		"ticket_ids": []int64{tickets[0].ID},
		"brackets":   []int{2},
	}, http.StatusOK, &outcomes)
	if outcomes[0].Error != "" || outcomes[0].Amount != reward["reward"] {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	var info lottery.UserInfo
	e.get(t, fmt.Sprintf("/v1/standard/users/alice?round=%d", round.ID), http.StatusOK, &info)
	if info.Total != 1 || !info.Claimed[0] {
		t.Fatalf("user info = %+v", info)
	}

	e.get(t, "/v1/standard/rounds/99", http.StatusNotFound, nil)
}

func TestSpecialRoundOverHTTP(t *testing.T) {
	e := newEnv(t)

	var round lottery.Round
	e.post(t, "/v1/special/rounds", map[string]any{
		"caller":   operator,
		"end_time": e.clock.t.Add(time.Hour),
	}, http.StatusCreated, &round)

	var tickets []lottery.Ticket
	e.post(t, "/v1/special/tickets", map[string]any{
		"buyer":    "alice",
		"quantity": 5,
	}, http.StatusCreated, &tickets)
	if len(tickets) != 5 {
		t.Fatalf("tickets = %d", len(tickets))
	}

	// Fund the counterpart pot so winners have something to claim.
	e.ledger.Mint("standard-pot", 100_000)

	e.clock.advance(2 * time.Hour)
	e.post(t, "/v1/special/rounds/close", map[string]any{"caller": operator}, http.StatusOK, nil)

	var set lottery.AwardSet
	e.post(t, "/v1/special/picks", map[string]any{"caller": operator}, http.StatusOK, &set)
	if len(set.TicketIDs) == 0 || set.PerTicketPrize == 0 {
		t.Fatalf("award set = %+v", set)
	}

	var got lottery.AwardSet
	e.get(t, fmt.Sprintf("/v1/special/winners/%d", round.ID), http.StatusOK, &got)
	if len(got.TicketIDs) != len(set.TicketIDs) {
		t.Fatalf("winners = %+v", got)
	}

	var outcomes []claimResponse
	e.post(t, "/v1/special/claims", map[string]any{
		"owner":      "alice",
		"round_id":   round.ID,
		"ticket_ids": set.TicketIDs[:1],
	}, http.StatusOK, &outcomes)
	if outcomes[0].Error != "" || outcomes[0].Amount != set.PerTicketPrize {
		t.Fatalf("outcomes = %+v", outcomes)
	}

	// Grand prize on the same round.
	e.post(t, "/v1/special/degrand", map[string]any{
		"caller": operator,
		"prize": map[string]any{
			"round_id":         round.ID,
			"draw_time":        e.clock.t,
			"title":            "launch",
			"max_winner_count": 2,
		},
	}, http.StatusNoContent, nil)
	e.post(t, "/v1/special/degrand/pick", map[string]any{
		"caller":   operator,
		"round_id": round.ID,
	}, http.StatusOK, &set)
	if len(set.TicketIDs) != 2 {
		t.Fatalf("degrand winners = %d, want 2", len(set.TicketIDs))
	}
	// Latched pick conflicts on repeat.
	e.post(t, "/v1/special/degrand/pick", map[string]any{
		"caller":   operator,
		"round_id": round.ID,
	}, http.StatusConflict, nil)
}

func TestStatusMapping(t *testing.T) {
	e := newEnv(t)

	// No round yet.
	e.get(t, "/v1/standard/rounds", http.StatusNotFound, nil)
	// Bad payload.
	resp, err := http.Post(e.server.URL+"/v1/standard/tickets", "application/json", bytes.NewReader([]byte("{bad")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad payload status = %d", resp.StatusCode)
	}
	// Wrong method.
	req, _ := http.NewRequest(http.MethodDelete, e.server.URL+"/v1/standard/tickets", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("method status = %d", resp.StatusCode)
	}
}

func TestBundleConfigOverHTTP(t *testing.T) {
	e := newEnv(t)

	e.post(t, "/v1/standard/config/bundles", map[string]any{
		"caller":    "mallory",
		"threshold": 20,
		"bonus":     8,
	}, http.StatusForbidden, nil)
	// Bonus at or above the threshold is rejected.
	e.post(t, "/v1/standard/config/bundles", map[string]any{
		"caller":    operator,
		"threshold": 20,
		"bonus":     20,
	}, http.StatusBadRequest, nil)
	e.post(t, "/v1/standard/config/bundles", map[string]any{
		"caller":    operator,
		"threshold": 20,
		"bonus":     8,
	}, http.StatusNoContent, nil)
	e.post(t, "/v1/special/config/bundles", map[string]any{
		"caller":    operator,
		"threshold": 20,
		"bonus":     8,
	}, http.StatusNoContent, nil)
	e.post(t, "/v1/special/config/price", map[string]any{
		"caller": operator,
		"price":  1500,
	}, http.StatusNoContent, nil)

	e.post(t, "/v1/standard/rounds", map[string]any{
		"caller":   operator,
		"end_time": e.clock.t.Add(time.Hour),
	}, http.StatusCreated, nil)
	numbers := make([]uint32, 20)
	for i := range numbers {
		numbers[i] = 101140803
	}
	var tickets []lottery.Ticket
	e.post(t, "/v1/standard/tickets", map[string]any{
		"buyer":   "alice",
		"numbers": numbers,
	}, http.StatusCreated, &tickets)
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

func TestWinnersPerTicketOverHTTP(t *testing.T) {
	e := newEnv(t)

	var round lottery.Round
	e.post(t, "/v1/special/rounds", map[string]any{
		"caller":   operator,
		"end_time": e.clock.t.Add(time.Hour),
	}, http.StatusCreated, &round)
	var tickets []lottery.Ticket
	e.post(t, "/v1/special/tickets", map[string]any{
		"buyer":    "alice",
		"quantity": 3,
	}, http.StatusCreated, &tickets)

	e.ledger.Mint("standard-pot", 100_000)
	e.clock.advance(2 * time.Hour)
	e.post(t, "/v1/special/rounds/close", map[string]any{"caller": operator}, http.StatusOK, nil)
	var set lottery.AwardSet
	e.post(t, "/v1/special/picks", map[string]any{"caller": operator}, http.StatusOK, &set)

	path := fmt.Sprintf("/v1/special/winners/%d?tickets=%d,%d,9999", round.ID, tickets[0].ID, tickets[1].ID)
	var wins []special.TicketWin
	e.get(t, path, http.StatusOK, &wins)
	if len(wins) != 3 {
		t.Fatalf("wins = %d, want 3", len(wins))
	}
	if !wins[0].Won || wins[0].Prize != set.PerTicketPrize {
		t.Fatalf("win = %+v", wins[0])
	}
	if wins[2].Won {
		t.Fatal("unknown ticket reported as winner")
	}

	e.get(t, fmt.Sprintf("/v1/special/winners/%d?tickets=junk", round.ID), http.StatusBadRequest, nil)
	e.get(t, fmt.Sprintf("/v1/special/winners/%d?stage=degrand&tickets=%d", round.ID, tickets[0].ID), http.StatusOK, &wins)
	if len(wins) != 1 || wins[0].Won {
		t.Fatalf("degrand wins before pick = %+v", wins)
	}
}
