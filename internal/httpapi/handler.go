// Package httpapi exposes the lottery services over a small REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twinpot/lottery-engine/internal/bundle"
	"github.com/twinpot/lottery-engine/internal/domain/lottery"
	"github.com/twinpot/lottery-engine/internal/randomness"
	"github.com/twinpot/lottery-engine/internal/services/special"
	"github.com/twinpot/lottery-engine/internal/services/standard"
	"github.com/twinpot/lottery-engine/internal/storage"
)

// handler bundles HTTP endpoints for both lottery services.
type handler struct {
	standard *standard.Service
	special  *special.Service
}

// NewHandler returns a mux exposing the REST API.
func NewHandler(std *standard.Service, spc *special.Service) http.Handler {
	h := &handler{standard: std, special: spc}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/v1/standard/", h.standardRoutes)
	mux.HandleFunc("/v1/special/", h.specialRoutes)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- standard ---------------------------------------------------------------

func (h *handler) standardRoutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/standard"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "rounds":
		h.standardRounds(w, r, parts[1:])
	case "tickets":
		h.standardTickets(w, r)
	case "claims":
		h.standardClaims(w, r)
	case "pot":
		h.standardPot(w, r)
	case "users":
		h.userInfo(w, r, parts[1:], h.standard.ViewUserInfo)
	case "rewards":
		h.standardRewards(w, r)
	case "config":
		h.standardConfig(w, r, parts[1:])
	case "transfers":
		h.standardTransfers(w, r)
	case "burn":
		h.standardBurn(w, r)
	case "upgrade":
		h.standardUpgrade(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) standardRounds(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		switch rest[0] {
		case "close":
			h.roundAction(w, r, func(caller string) (any, error) {
				return h.standard.CloseLottery(r.Context(), caller)
			})
		case "draw":
			h.roundAction(w, r, func(caller string) (any, error) {
				return h.standard.DrawFinalNumber(r.Context(), caller)
			})
		default:
			id, err := strconv.ParseInt(rest[0], 10, 64)
			if err != nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			round, err := h.standard.ViewRound(r.Context(), id)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, round)
		}
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller  string    `json:"caller"`
			EndTime time.Time `json:"end_time"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		round, err := h.standard.StartLottery(r.Context(), payload.Caller, payload.EndTime)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, round)

	case http.MethodGet:
		round, err := h.standard.CurrentRound(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, round)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) roundAction(w http.ResponseWriter, r *http.Request, action func(caller string) (any, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := action(payload.Caller)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) standardTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Buyer   string   `json:"buyer"`
		Numbers []uint32 `json:"numbers"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tickets, err := h.standard.BuyTickets(r.Context(), payload.Buyer, payload.Numbers)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, tickets)
}

type claimResponse struct {
	TicketID int64  `json:"ticket_id"`
	Amount   int64  `json:"amount"`
	Error    string `json:"error,omitempty"`
}

func (h *handler) standardClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Owner     string  `json:"owner"`
		RoundID   int64   `json:"round_id"`
		TicketIDs []int64 `json:"ticket_ids"`
		Brackets  []int   `json:"brackets"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	outcomes, err := h.standard.ClaimTickets(r.Context(), payload.Owner, payload.RoundID, payload.TicketIDs, payload.Brackets)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := make([]claimResponse, len(outcomes))
	for i, o := range outcomes {
		out[i] = claimResponse{TicketID: o.TicketID, Amount: o.Amount}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) standardPot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		From    string `json:"from"`
		RoundID int64  `json:"round_id"`
		Amount  int64  `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	round, err := h.standard.IncreasePot(r.Context(), payload.From, payload.RoundID, payload.Amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *handler) standardRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	roundID, _ := strconv.ParseInt(q.Get("round"), 10, 64)
	ticketID, _ := strconv.ParseInt(q.Get("ticket"), 10, 64)
	bracket, _ := strconv.Atoi(q.Get("bracket"))

	reward, err := h.standard.ViewReward(r.Context(), roundID, ticketID, bracket)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reward": reward})
}

type userInfoFn func(ctx context.Context, owner string, roundID int64, offset, limit int) (*lottery.UserInfo, error)

func (h *handler) userInfo(w http.ResponseWriter, r *http.Request, rest []string, view userInfoFn) {
	if r.Method != http.MethodGet || len(rest) == 0 || rest[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	owner := rest[0]
	q := r.URL.Query()
	roundID, _ := strconv.ParseInt(q.Get("round"), 10, 64)
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	info, err := view(r.Context(), owner, roundID, offset, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) standardConfig(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost || len(rest) == 0 {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	switch rest[0] {
	case "price":
		var payload struct {
			Caller string `json:"caller"`
			Price  int64  `json:"price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.standard.SetTicketPrice(ctx, payload.Caller, payload.Price))
	case "shares":
		var payload struct {
			Caller string            `json:"caller"`
			Shares lottery.PotShares `json:"shares"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.standard.SetShares(ctx, payload.Caller, payload.Shares))
	case "breakdown":
		var payload struct {
			Caller    string `json:"caller"`
			Breakdown []int  `json:"breakdown"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.standard.SetBreakdown(ctx, payload.Caller, payload.Breakdown))
	case "bundles":
		var payload struct {
			Caller    string `json:"caller"`
			Threshold int    `json:"threshold"`
			Bonus     int    `json:"bonus"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.standard.SetBundleRule(ctx, payload.Caller, payload.Threshold, payload.Bonus))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) configResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) standardTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.standard.TransferTo(r.Context(), payload.Caller, payload.To, payload.Amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) standardBurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	burned, err := h.standard.BurnUnclaimed(r.Context(), payload.Caller)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"burned": burned})
}

func (h *handler) standardUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.standard.UpgradeToV2(r.Context(), payload.Caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- special ----------------------------------------------------------------

func (h *handler) specialRoutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/special"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "rounds":
		h.specialRounds(w, r, parts[1:])
	case "tickets":
		h.specialTickets(w, r)
	case "claims":
		h.specialClaims(w, r)
	case "picks":
		h.roundAction(w, r, func(caller string) (any, error) {
			return h.special.PickAwardWinners(r.Context(), caller)
		})
	case "degrand":
		h.specialDeGrand(w, r, parts[1:])
	case "winners":
		h.specialWinners(w, r, parts[1:])
	case "users":
		h.userInfo(w, r, parts[1:], h.special.ViewUserInfo)
	case "config":
		h.specialConfig(w, r, parts[1:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) specialConfig(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost || len(rest) == 0 {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	switch rest[0] {
	case "price":
		var payload struct {
			Caller string `json:"caller"`
			Price  int64  `json:"price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.special.SetTicketPrice(ctx, payload.Caller, payload.Price))
	case "shares":
		var payload struct {
			Caller string            `json:"caller"`
			Shares lottery.PotShares `json:"shares"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.special.SetShares(ctx, payload.Caller, payload.Shares))
	case "bundles":
		var payload struct {
			Caller    string `json:"caller"`
			Threshold int    `json:"threshold"`
			Bonus     int    `json:"bonus"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.configResult(w, h.special.SetBundleRule(ctx, payload.Caller, payload.Threshold, payload.Bonus))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) specialRounds(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		if rest[0] == "close" {
			h.roundAction(w, r, func(caller string) (any, error) {
				return h.special.CloseLottery(r.Context(), caller)
			})
			return
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		round, err := h.special.ViewRound(r.Context(), id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, round)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Caller  string    `json:"caller"`
			EndTime time.Time `json:"end_time"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		round, err := h.special.StartLottery(r.Context(), payload.Caller, payload.EndTime)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, round)

	case http.MethodGet:
		round, err := h.special.CurrentRound(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, round)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) specialTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Buyer    string `json:"buyer"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tickets, err := h.special.BuyTickets(r.Context(), payload.Buyer, payload.Quantity)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, tickets)
}

func (h *handler) specialClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Owner     string  `json:"owner"`
		RoundID   int64   `json:"round_id"`
		TicketIDs []int64 `json:"ticket_ids"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	outcomes, err := h.special.ClaimAwards(r.Context(), payload.Owner, payload.RoundID, payload.TicketIDs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := make([]claimResponse, len(outcomes))
	for i, o := range outcomes {
		out[i] = claimResponse{TicketID: o.TicketID, Amount: o.Amount}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) specialDeGrand(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(rest) > 0 && rest[0] == "pick" {
		var payload struct {
			Caller      string `json:"caller"`
			RoundID     int64  `json:"round_id"`
			WinnerCount int    `json:"winner_count,omitempty"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		set, err := h.special.PickDeGrandWinners(r.Context(), payload.Caller, payload.RoundID, payload.WinnerCount)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, set)
		return
	}

	var payload struct {
		Caller string               `json:"caller"`
		Prize  lottery.DeGrandPrize `json:"prize"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.special.SetDeGrandPrize(r.Context(), payload.Caller, payload.Prize); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) specialWinners(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet || len(rest) == 0 || rest[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	roundID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	stage := lottery.AwardStage(r.URL.Query().Get("stage"))
	if stage == "" {
		stage = lottery.AwardStageDeLotto
	}

	if raw := r.URL.Query().Get("tickets"); raw != "" {
		ticketIDs, err := parseIDList(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var wins []special.TicketWin
		if stage == lottery.AwardStageDeGrand {
			wins, err = h.special.ViewDeGrandStatusForTickets(r.Context(), roundID, ticketIDs)
		} else {
			wins, err = h.special.ViewDeLottoWinningForTickets(r.Context(), roundID, ticketIDs)
		}
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, wins)
		return
	}

	set, err := h.special.ViewAwardWinners(r.Context(), roundID, stage)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// parseIDList splits a comma separated id list query parameter.
func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- helpers ----------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case errors.Is(err, lottery.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lottery.ErrRoundNotFound),
		errors.Is(err, lottery.ErrTicketNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, randomness.ErrNoRequest):
		return http.StatusNotFound
	case errors.Is(err, lottery.ErrAlreadyOpen),
		errors.Is(err, lottery.ErrAlreadyClaimed),
		errors.Is(err, lottery.ErrAlreadyPicked),
		errors.Is(err, lottery.ErrAlreadyUpgraded),
		errors.Is(err, lottery.ErrWrongStatus),
		errors.Is(err, lottery.ErrLotteryNotOver),
		errors.Is(err, lottery.ErrLotteryNotClaimable),
		errors.Is(err, lottery.ErrRandomnessNotFulfilled):
		return http.StatusConflict
	case errors.Is(err, lottery.ErrInvalidTicketNumber),
		errors.Is(err, lottery.ErrInvalidQuantity),
		errors.Is(err, lottery.ErrInvalidShares),
		errors.Is(err, lottery.ErrInvalidBreakdown),
		errors.Is(err, lottery.ErrInvalidAddress),
		errors.Is(err, bundle.ErrInvalidRule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
