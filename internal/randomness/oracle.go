package randomness

import (
	"context"
	"sync"
)

// FixedOracle fulfills every request synchronously with a queued raw word.
// It backs tests and local single-process runs.
type FixedOracle struct {
	mu        sync.Mutex
	fulfiller Fulfiller
	queue     []uint32
	fallback  uint32
	fail      error
}

// NewFixedOracle returns an oracle answering fallback when its queue is
// empty. Bind it to a bridge before use.
func NewFixedOracle(fallback uint32) *FixedOracle {
	return &FixedOracle{fallback: fallback}
}

// Bind attaches the fulfiller that receives results.
func (o *FixedOracle) Bind(f Fulfiller) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fulfiller = f
}

// Queue appends raw words to answer upcoming requests in order.
func (o *FixedOracle) Queue(raws ...uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, raws...)
}

// FailNext makes the oracle fail subsequent requests with err; pass nil to
// restore normal operation.
func (o *FixedOracle) FailNext(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

// RequestRandomness implements Oracle.
func (o *FixedOracle) RequestRandomness(ctx context.Context, requestID string) error {
	o.mu.Lock()
	if o.fail != nil {
		err := o.fail
		o.mu.Unlock()
		return err
	}
	raw := o.fallback
	if len(o.queue) > 0 {
		raw = o.queue[0]
		o.queue = o.queue[1:]
	}
	f := o.fulfiller
	o.mu.Unlock()

	return f.Fulfill(requestID, raw)
}
