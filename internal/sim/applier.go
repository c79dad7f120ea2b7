package sim

import (
	"github.com/eytandecker/flightsim-client/pkg/types"
)

// Applier merges integrator results into the shared AircraftState.
// Results are applied last-writer-wins by sequence number.
type Applier struct {
	state       *types.AircraftState
	clock       *Clock
	renormalize bool
	lastSeq     uint64

	// Results for steps up to and including discardThrough were dispatched
	// before a pause and are never applied.
	discardThrough uint64
}

// NewApplier creates an Applier for state. Results are refused once clock is
// paused or terminated. If renormalize is set the orientation is normalized
// after every merge.
func NewApplier(state *types.AircraftState, clock *Clock, renormalize bool) *Applier {
	return &Applier{state: state, clock: clock, renormalize: renormalize}
}

// Apply overwrites the kinematic and display fields of the state with res.
// It returns ErrTerminated, ErrPaused or ErrStaleResult without touching the
// state when the result must be discarded. ErrPaused also covers results of
// steps dispatched before a pause.
func (a *Applier) Apply(res types.SyncResult) error {
	if a.clock != nil {
		if a.clock.Terminated() {
			return ErrTerminated
		}
		if a.clock.Paused() {
			return ErrPaused
		}
	}
	if res.Seq <= a.discardThrough {
		return ErrPaused
	}
	if res.Seq <= a.lastSeq {
		return ErrStaleResult
	}

	s := a.state
	s.Position = res.Position
	s.Velocity = res.Velocity
	s.Orientation = res.Orientation
	s.AngularVelocity = res.AngularVelocity
	s.ForceGlobal = res.ForceGlobal
	s.AlphaDeg = res.AlphaDeg
	s.BetaDeg = res.BetaDeg
	if a.renormalize {
		s.Orientation = s.Orientation.Normalize()
	}

	a.lastSeq = res.Seq
	return nil
}

// DiscardThrough makes Apply refuse every result with a sequence number up
// to seq, whenever it arrives.
func (a *Applier) DiscardThrough(seq uint64) {
	a.discardThrough = max(a.discardThrough, seq)
}

// LastSeq returns the sequence number of the most recently applied result.
func (a *Applier) LastSeq() uint64 {
	return a.lastSeq
}
