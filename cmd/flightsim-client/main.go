package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/flightsim-client/internal/config"
	"github.com/eytandecker/flightsim-client/internal/integrator"
	"github.com/eytandecker/flightsim-client/internal/logging"
	internalmcp "github.com/eytandecker/flightsim-client/internal/mcp"
	"github.com/eytandecker/flightsim-client/internal/render"
	"github.com/eytandecker/flightsim-client/internal/sim"
	"github.com/eytandecker/flightsim-client/internal/state"
	"github.com/eytandecker/flightsim-client/internal/telemetry"
	"github.com/eytandecker/flightsim-client/internal/trace"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

const (
	healthAttempts  = 3
	healthBackoff   = time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flightsim-client exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg := logging.New(cfg.Log.Level, cfg.Log.Dir)
	defer lg.Close()
	slog.SetDefault(lg.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	client := integrator.NewClient(integrator.Config{
		Host:         cfg.Integrator.Host,
		Port:         cfg.Integrator.Port,
		Path:         cfg.Integrator.Path,
		Timeout:      cfg.Integrator.Timeout,
		Retries:      cfg.Integrator.Retries,
		RetryBackoff: cfg.Integrator.RetryBackoff,
	})
	if err := client.CheckHealth(ctx, healthAttempts, healthBackoff, lg.Logger); err != nil {
		lg.Warn("Starting without a confirmed integrator; steps will fail until it answers", "err", err)
	}

	metrics, err := telemetry.New(nil)
	if err != nil {
		return err
	}
	if err := metrics.ObserveInFlight(client.InFlight); err != nil {
		return err
	}

	recorder, err := newRecorder(cfg, lg.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			lg.Warn("Closing trace sinks", "err", err)
		}
		if n := recorder.Dropped(); n > 0 {
			lg.Warn("Trace points dropped", "count", n)
		}
	}()

	ac := types.NewAircraftState(
		mgl64.Vec3{0, cfg.Sim.InitialAltitude, 0},
		mgl64.Vec3{cfg.Sim.InitialSpeed, 0, 0},
	)
	// No input device is attached; the aircraft flies hands-off.
	session := sim.NewSession(&ac, client, sim.FixedControls{}, sim.Config{
		StepSize:    cfg.Sim.StepSize,
		TimeBudget:  cfg.Sim.TimeBudget,
		Renormalize: cfg.Sim.Renormalize,
	},
		sim.WithLogger(lg.With("component", "sim")),
		sim.WithMetrics(metrics),
		sim.WithListener(recorder),
	)

	mgr := state.NewManager(cfg.State.StaleThreshold)
	driver := render.NewDriver(session, render.Config{
		FrameRate:      cfg.Sim.FrameRate,
		StatusInterval: render.DefaultStatusInterval,
	}, lg.With("component", "render"), mgr)

	go sim.NewConnectivityMonitor(sim.DefaultLostAfter, lg.With("component", "sync")).Watch(ctx, session.Events())

	mcpDone := make(chan error, 1)
	if cfg.MCP.Enabled {
		srv := internalmcp.NewServer(mgr, session, recorder)
		go func() { mcpDone <- srv.Run(ctx) }()
	}

	lg.Info("Simulation started",
		"integrator", client.URL(),
		"stepSize", cfg.Sim.StepSize,
		"timeBudget", cfg.Sim.TimeBudget,
		"frameRate", cfg.Sim.FrameRate,
	)

	if err := driver.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	st := session.Status()
	lg.Info("Simulation finished",
		"simTime", st.SimTime,
		"steps", st.Steps,
		"applied", st.Applied,
		"discarded", st.Discarded,
		"failed", st.Failed,
		"tracePoints", recorder.Len(),
	)

	if !cfg.MCP.Enabled {
		return nil
	}
	lg.Info("Serving final state over MCP until interrupted")
	if err := <-mcpDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRecorder(cfg config.Config, lg *slog.Logger) (*trace.Recorder, error) {
	var sinks []trace.Sink
	if cfg.Trace.Driver != "" {
		sink, err := trace.OpenSQL(cfg.Trace.Driver, cfg.Trace.DSN)
		if err != nil {
			return nil, err
		}
		lg.Info("Persisting trajectory", "driver", cfg.Trace.Driver, "run", sink.RunID())
		sinks = append(sinks, sink)
	}
	if cfg.Influx.Enabled() {
		sink := trace.NewInfluxSink(trace.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, lg)
		lg.Info("Streaming trajectory to InfluxDB", "url", cfg.Influx.URL, "run", sink.RunID())
		sinks = append(sinks, sink)
	}
	return trace.NewRecorder(trace.Config{Capacity: cfg.Trace.Capacity}, lg, sinks...), nil
}
