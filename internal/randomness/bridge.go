// Package randomness bridges draw rounds to an external randomness oracle.
// Each round gets at most one outstanding request; raw results are held
// until the round's service folds them into the ticket space.
package randomness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/twinpot/lottery-engine/pkg/logger"
)

// Status tracks a request through its lifecycle.
type Status string

const (
	StatusRequested Status = "requested"
	StatusFulfilled Status = "fulfilled"
	StatusFailed    Status = "failed"
)

var (
	// ErrNoRequest is returned when a round has no randomness request.
	ErrNoRequest = errors.New("no randomness request for round")

	// ErrNotFulfilled is returned when the oracle has not answered yet.
	ErrNotFulfilled = errors.New("randomness request not fulfilled")

	// ErrRequestPending is returned when a round already has an
	// outstanding request.
	ErrRequestPending = errors.New("randomness request already pending")

	// ErrUnknownRequest is returned for fulfillments of unknown ids.
	ErrUnknownRequest = errors.New("unknown randomness request")
)

// Request is one round's draw request.
type Request struct {
	ID          string    `json:"id"`
	RoundID     int64     `json:"round_id"`
	Kind        string    `json:"kind"`
	Status      Status    `json:"status"`
	Raw         uint32    `json:"raw,omitempty"`
	Error       string    `json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
}

// Oracle is the upstream randomness source. Implementations deliver results
// asynchronously through the Fulfiller handed to them at construction.
type Oracle interface {
	RequestRandomness(ctx context.Context, requestID string) error
}

// Fulfiller receives oracle callbacks.
type Fulfiller interface {
	Fulfill(requestID string, raw uint32) error
	Fail(requestID string, cause error) error
}

// Bridge owns the request table. Safe for concurrent use.
//
// The table lives in process memory: after a restart a Closed round has no
// request on file and its draw must re-issue one. Request outcomes are never
// load-bearing across processes because every consumer re-requests on
// ErrNoRequest.
type Bridge struct {
	oracle Oracle
	log    *logger.Logger

	mu      sync.RWMutex
	byID    map[string]*Request
	byRound map[string]string // kind/roundID -> request id
}

// NewBridge wires a bridge to its oracle.
func NewBridge(oracle Oracle, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.NewDefault("randomness")
	}
	return &Bridge{
		oracle:  oracle,
		log:     log,
		byID:    make(map[string]*Request),
		byRound: make(map[string]string),
	}
}

func roundKey(kind string, roundID int64) string {
	return fmt.Sprintf("%s/%d", kind, roundID)
}

// RequestDraw opens a request for the round and forwards it to the oracle.
// A round with an unresolved request cannot open another; a failed request
// may be retried.
func (b *Bridge) RequestDraw(ctx context.Context, kind string, roundID int64) (*Request, error) {
	b.mu.Lock()
	key := roundKey(kind, roundID)
	if id, ok := b.byRound[key]; ok {
		if existing := b.byID[id]; existing.Status != StatusFailed {
			b.mu.Unlock()
			return nil, fmt.Errorf("%w: round %d", ErrRequestPending, roundID)
		}
	}
	req := &Request{
		ID:          uuid.New().String(),
		RoundID:     roundID,
		Kind:        kind,
		Status:      StatusRequested,
		RequestedAt: time.Now().UTC(),
	}
	b.byID[req.ID] = req
	b.byRound[key] = req.ID
	b.mu.Unlock()

	if err := b.oracle.RequestRandomness(ctx, req.ID); err != nil {
		if failErr := b.Fail(req.ID, err); failErr != nil {
			b.log.WithError(failErr).Error("marking randomness request failed")
		}
		return nil, fmt.Errorf("requesting randomness: %w", err)
	}

	b.log.WithField("request_id", req.ID).WithField("round_id", roundID).Info("randomness requested")
	out := *req
	return &out, nil
}

// Fulfill records the oracle's raw result.
func (b *Bridge) Fulfill(requestID string, raw uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.byID[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if req.Status == StatusFulfilled {
		return nil
	}
	req.Status = StatusFulfilled
	req.Raw = raw
	req.ResolvedAt = time.Now().UTC()
	return nil
}

// Fail marks a request failed so the round can retry.
func (b *Bridge) Fail(requestID string, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.byID[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	if req.Status == StatusFulfilled {
		return nil
	}
	req.Status = StatusFailed
	if cause != nil {
		req.Error = cause.Error()
	}
	req.ResolvedAt = time.Now().UTC()
	return nil
}

// Result returns the raw random word for a round once fulfilled.
func (b *Bridge) Result(kind string, roundID int64) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.byRound[roundKey(kind, roundID)]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoRequest, roundID)
	}
	req := b.byID[id]
	switch req.Status {
	case StatusFulfilled:
		return req.Raw, nil
	case StatusFailed:
		return 0, fmt.Errorf("%w: round %d: %s", ErrNotFulfilled, roundID, req.Error)
	default:
		return 0, fmt.Errorf("%w: round %d", ErrNotFulfilled, roundID)
	}
}

// RequestForRound returns a copy of the round's latest request.
func (b *Bridge) RequestForRound(kind string, roundID int64) (*Request, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.byRound[roundKey(kind, roundID)]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoRequest, roundID)
	}
	out := *b.byID[id]
	return &out, nil
}
