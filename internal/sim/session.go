package sim

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/eytandecker/flightsim-client/internal/integrator"
	"github.com/eytandecker/flightsim-client/internal/telemetry"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

const (
	DefaultStepSize   = 50 * time.Millisecond
	DefaultTimeBudget = 100 * time.Second

	defaultEventBuffer   = 64
	defaultCommandBuffer = 16
)

// Config holds simulation loop settings.
type Config struct {
	StepSize    time.Duration
	TimeBudget  time.Duration
	Renormalize bool
	EventBuffer int
}

// DefaultConfig returns 50ms steps and a 100s budget.
func DefaultConfig() Config {
	return Config{
		StepSize:    DefaultStepSize,
		TimeBudget:  DefaultTimeBudget,
		EventBuffer: defaultEventBuffer,
	}
}

// Sender dispatches a snapshot without blocking. Implemented by *integrator.Client.
type Sender interface {
	Send(ctx context.Context, snap types.Snapshot) *integrator.Pending
}

// ControlSource supplies pilot inputs before each step.
type ControlSource interface {
	Controls() types.Controls
}

// ControlFunc adapts a function to ControlSource.
type ControlFunc func() types.Controls

func (f ControlFunc) Controls() types.Controls { return f() }

// FixedControls holds the same inputs for every step.
type FixedControls types.Controls

func (f FixedControls) Controls() types.Controls { return types.Controls(f) }

// StateListener is notified on the frame goroutine after each applied result.
type StateListener interface {
	StateUpdated(u types.StateUpdate)
}

// Command is executed on the frame goroutine by ProcessCommands.
type Command func(*Session)

// Pause returns a command that pauses or resumes the session.
func Pause(paused bool) Command {
	return func(s *Session) { s.SetPaused(paused) }
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(lg *slog.Logger) Option {
	return func(s *Session) { s.lg = lg }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithListener(l StateListener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, l) }
}

// Status is a point-in-time summary of the session.
type Status struct {
	SimTime    time.Duration
	Steps      uint64
	Applied    uint64
	Discarded  uint64
	Failed     uint64
	Empty      uint64
	InFlight   int
	LastSeq    uint64
	LastError  string
	Paused     bool
	Terminated bool
}

type inflight struct {
	pending *integrator.Pending
	step    Step
}

// Session drives one step/snapshot/sync/apply cycle per physics step.
//
// All methods except Submit and Events must be called from the single frame
// goroutine; that goroutine is the only writer of the AircraftState.
type Session struct {
	state    *types.AircraftState
	clock    *Clock
	applier  *Applier
	sender   Sender
	controls ControlSource

	listeners []StateListener
	lg        *slog.Logger
	metrics   *telemetry.Metrics

	inflight  []inflight
	status    Status
	announced bool

	events   chan Event
	commands chan Command
}

// NewSession creates a Session owning the simulation of state.
func NewSession(state *types.AircraftState, sender Sender, controls ControlSource, cfg Config, opts ...Option) *Session {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	clock := NewClock(cfg.StepSize, cfg.TimeBudget)
	s := &Session{
		state:    state,
		clock:    clock,
		applier:  NewApplier(state, clock, cfg.Renormalize),
		sender:   sender,
		controls: controls,
		events:   make(chan Event, cfg.EventBuffer),
		commands: make(chan Command, defaultCommandBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lg == nil {
		s.lg = slog.Default()
	}
	return s
}

// State returns the live aircraft state.
func (s *Session) State() *types.AircraftState {
	return s.state
}

// Events returns the channel of session events. Events are dropped when
// nobody keeps up with the channel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Submit queues cmd for the frame goroutine. Safe for concurrent use.
// It returns false if the queue is full.
func (s *Session) Submit(cmd Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		return false
	}
}

// ProcessCommands runs queued commands and returns how many ran.
func (s *Session) ProcessCommands() int {
	n := 0
	for {
		select {
		case cmd := <-s.commands:
			cmd(s)
			n++
		default:
			return n
		}
	}
}

// SetPaused pauses or resumes stepping. Results of steps dispatched before
// the pause are discarded, even if they arrive after a resume.
func (s *Session) SetPaused(paused bool) {
	if s.clock.Paused() == paused || s.clock.Terminated() {
		return
	}
	s.clock.SetPaused(paused)
	if paused {
		s.applier.DiscardThrough(s.clock.Steps())
		s.lg.Info("Simulation paused", "simTime", s.clock.Elapsed())
	} else {
		s.lg.Info("Simulation resumed", "simTime", s.clock.Elapsed())
	}
}

func (s *Session) Paused() bool { return s.clock.Paused() }
func (s *Session) Terminated() bool { return s.clock.Terminated() }

// InFlight returns the number of dispatched steps whose outcome has not been handled.
func (s *Session) InFlight() int {
	return len(s.inflight)
}

// Advance feeds one frame interval to the clock and dispatches a snapshot for
// every physics step it yields. It never blocks on the network.
func (s *Session) Advance(ctx context.Context, frame time.Duration) int {
	n := s.clock.Advance(frame, func(st Step) { s.dispatch(ctx, st) })

	if s.clock.Terminated() && !s.announced {
		s.announced = true
		s.lg.Info("Simulation ended", "simTime", s.clock.Elapsed(), "steps", s.clock.Steps())
		s.emit(Event{Kind: EventTerminated, SimTime: s.clock.Elapsed()})
	}
	return n
}

func (s *Session) dispatch(ctx context.Context, st Step) {
	if s.controls != nil {
		s.state.Controls = s.controls.Controls()
	}
	snap := s.state.Snapshot(st.Index, st.DeltaTime.Seconds())
	s.inflight = append(s.inflight, inflight{
		pending: s.sender.Send(ctx, snap),
		step:    st,
	})
	s.metrics.StepDispatched(ctx)
}

// Poll handles every outcome that has arrived since the last call, without
// blocking, and returns how many were handled.
func (s *Session) Poll(ctx context.Context) int {
	handled := 0
	s.inflight = slices.DeleteFunc(s.inflight, func(f inflight) bool {
		out, ok := f.pending.Poll()
		if !ok {
			return false
		}
		s.handle(ctx, f.step, out)
		handled++
		return true
	})
	return handled
}

// Drain waits for every in-flight step and handles its outcome.
func (s *Session) Drain(ctx context.Context) error {
	for len(s.inflight) > 0 {
		if _, err := s.inflight[0].pending.Wait(ctx); err != nil {
			return err
		}
		s.Poll(ctx)
	}
	return nil
}

func (s *Session) handle(ctx context.Context, st Step, out integrator.Outcome) {
	switch {
	case out.Err != nil:
		s.status.Failed++
		s.status.LastError = out.Err.Error()
		kind := out.Kind()

		attrs := []any{"seq", out.Seq, "kind", kind.String(), "attempts", out.Attempts, "err", out.Err}
		var se *integrator.ServerError
		if errors.As(out.Err, &se) {
			attrs = append(attrs, "status", se.StatusCode)
		}
		s.lg.Warn("Sync step failed", attrs...)

		s.metrics.SyncFailed(ctx, kind.String(), out.Latency)
		s.emit(Event{
			Kind:    EventFailed,
			Seq:     out.Seq,
			SimTime: st.SimTime,
			Err: &types.SimulatorError{
				Seq:         out.Seq,
				Err:         out.Err,
				Message:     kind.String() + " failure",
				Recoverable: true,
			},
		})

	case out.Empty:
		s.status.Empty++
		s.lg.Debug("Integrator returned an empty body", "seq", out.Seq)
		s.emit(Event{Kind: EventEmpty, Seq: out.Seq, SimTime: st.SimTime})

	default:
		res := out.Result
		res.Seq = out.Seq
		if err := s.applier.Apply(res); err != nil {
			s.status.Discarded++
			s.lg.Debug("Discarded sync result", "seq", out.Seq, "reason", err)
			s.metrics.ResultDiscarded(ctx, discardReason(err))
			s.emit(Event{Kind: EventDiscarded, Seq: out.Seq, SimTime: st.SimTime, Err: err})
			return
		}

		s.status.Applied++
		s.metrics.ResultApplied(ctx, out.Latency)

		u := types.StateUpdate{Seq: out.Seq, SimTime: st.SimTime, State: *s.state}
		for _, l := range s.listeners {
			l.StateUpdated(u)
		}
		s.emit(Event{Kind: EventApplied, Seq: out.Seq, SimTime: st.SimTime})
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Status returns a summary of the session.
func (s *Session) Status() Status {
	st := s.status
	st.SimTime = s.clock.Elapsed()
	st.Steps = s.clock.Steps()
	st.InFlight = len(s.inflight)
	st.LastSeq = s.applier.LastSeq()
	st.Paused = s.clock.Paused()
	st.Terminated = s.clock.Terminated()
	return st
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, ErrTerminated):
		return "terminated"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrStaleResult):
		return "stale"
	default:
		return "unknown"
	}
}
