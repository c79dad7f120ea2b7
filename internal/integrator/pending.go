package integrator

import (
	"context"
	"time"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

// Outcome is the resolved result of one Send: exactly one of a result, an
// empty response, or an error.
type Outcome struct {
	Seq      uint64
	Result   types.SyncResult
	Empty    bool
	Err      error
	Attempts int
	Latency  time.Duration
}

// OK reports whether the outcome carries a result to apply.
func (o Outcome) OK() bool {
	return o.Err == nil && !o.Empty
}

// Kind classifies the outcome's error.
func (o Outcome) Kind() Kind {
	return Classify(o.Err)
}

// Pending is the handle for a request in flight. It is resolved from the
// request goroutine and observed from the frame goroutine.
type Pending struct {
	Seq       uint64
	IssueTime time.Time

	done     chan Outcome
	outcome  Outcome
	finished bool
}

// NewPending creates an unresolved handle for seq.
func NewPending(seq uint64) *Pending {
	return &Pending{
		Seq:       seq,
		IssueTime: time.Now(),
		done:      make(chan Outcome, 1),
	}
}

// Resolve delivers the outcome. Only the first call has any effect.
func (p *Pending) Resolve(o Outcome) {
	select {
	case p.done <- o:
	default:
	}
}

// Poll returns the outcome if it has arrived, without blocking.
func (p *Pending) Poll() (Outcome, bool) {
	if p.finished {
		return p.outcome, true
	}
	select {
	case o := <-p.done:
		p.outcome = o
		p.finished = true
		return o, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome arrives or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	if p.finished {
		return p.outcome, nil
	}
	select {
	case o := <-p.done:
		p.outcome = o
		p.finished = true
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
