package integrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

const maxHealthBackoff = 30 * time.Second

// HealthSnapshot is a zero-control, zero-length step. It uses sequence number
// 0, which no simulation step ever has.
func HealthSnapshot() types.Snapshot {
	s := types.NewAircraftState(mgl64.Vec3{}, mgl64.Vec3{})
	return s.Snapshot(0, 0)
}

// CheckHealth sends HealthSnapshot until the integrator answers or attempts run out,
// waiting backoff after the first failure and doubling it (capped at 30s)
// after each further one. It returns nil once any response is accepted, the
// last failure otherwise, or ctx.Err() if ctx ends while waiting.
func (c *Client) CheckHealth(ctx context.Context, attempts int, backoff time.Duration, lg *slog.Logger) error {
	if attempts <= 0 {
		attempts = 1
	}
	if lg == nil {
		lg = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if _, _, err = c.Update(ctx, HealthSnapshot()); err == nil {
			lg.Info("Integrator reachable", "url", c.url, "attempt", attempt)
			return nil
		}
		lg.Warn("Integrator health check failed",
			"url", c.url,
			"attempt", attempt,
			"kind", Classify(err).String(),
			"err", err,
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxHealthBackoff)
	}
	return err
}
