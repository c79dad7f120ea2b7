package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/eytandecker/flightsim-client/internal/sim"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

const (
	DefaultFrameRate      = 60
	MaxFrameRate          = 1000
	DefaultStatusInterval = 5 * time.Second
)

// Publisher receives the scene state after every frame.
// Implemented by state.Manager.
type Publisher interface {
	Publish(ac types.AircraftState, st sim.Status)
}

// Config holds frame loop settings.
type Config struct {
	FrameRate int
	// StatusInterval is how often the status line is logged. Zero disables it.
	StatusInterval time.Duration
}

// DefaultConfig returns a 60 fps loop with a status line every 5s.
func DefaultConfig() Config {
	return Config{FrameRate: DefaultFrameRate, StatusInterval: DefaultStatusInterval}
}

// Driver is a headless stand-in for the scene renderer. Each frame it feeds
// the measured wall-clock delta to the session and then publishes the state.
type Driver struct {
	session    *sim.Session
	cfg        Config
	publishers []Publisher
	lg         *slog.Logger
	now        func() time.Time

	lastFrame time.Time
	wasPaused bool
	lastLog   time.Time
	frames    uint64
}

// NewDriver creates a Driver for session. A nil logger uses slog.Default().
func NewDriver(session *sim.Session, cfg Config, lg *slog.Logger, pubs ...Publisher) *Driver {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	cfg.FrameRate = min(cfg.FrameRate, MaxFrameRate)
	if lg == nil {
		lg = slog.Default()
	}
	return &Driver{
		session:    session,
		cfg:        cfg,
		publishers: pubs,
		lg:         lg,
		now:        time.Now,
	}
}

// Frame runs one frame and returns the simulated steps it produced.
func (d *Driver) Frame(ctx context.Context) int {
	d.session.ProcessCommands()
	d.session.Poll(ctx)

	now := d.now()
	paused := d.session.Paused()

	// The first frame, paused frames and the first frame after a resume only
	// reset the timestamp, so wall time spent paused never reaches the clock.
	var delta time.Duration
	if !d.lastFrame.IsZero() && !paused && !d.wasPaused {
		delta = now.Sub(d.lastFrame)
	}
	d.lastFrame = now
	d.wasPaused = paused

	n := d.session.Advance(ctx, delta)
	d.frames++
	d.render(now)
	return n
}

func (d *Driver) render(now time.Time) {
	ac := *d.session.State()
	st := d.session.Status()
	for _, p := range d.publishers {
		p.Publish(ac, st)
	}

	if d.cfg.StatusInterval <= 0 || now.Sub(d.lastLog) < d.cfg.StatusInterval {
		return
	}
	d.lastLog = now
	d.lg.Info("Simulation status",
		"simTime", st.SimTime,
		"frames", d.frames,
		"steps", st.Steps,
		"applied", st.Applied,
		"failed", st.Failed,
		"inFlight", st.InFlight,
		"x", ac.Position.X(),
		"y", ac.Position.Y(),
		"z", ac.Position.Z(),
	)
}

// Run blocks, rendering frames at the configured rate. It returns nil once
// the simulation has terminated and every in-flight step has been handled,
// or ctx.Err() when ctx is cancelled first.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.frameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Frame(ctx)
			if d.session.Terminated() && d.session.InFlight() == 0 {
				return nil
			}
		}
	}
}

func (d *Driver) frameInterval() time.Duration {
	interval := time.Second / time.Duration(d.cfg.FrameRate)
	if interval <= 0 {
		interval = time.Second / MaxFrameRate
	}
	return interval
}

// Frames returns the number of frames rendered.
func (d *Driver) Frames() uint64 {
	return d.frames
}
