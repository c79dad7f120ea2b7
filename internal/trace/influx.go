package trace

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

const measurement = "aircraft_state"

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink streams trajectory points to InfluxDB through the batching
// write API. Write errors are reported asynchronously and logged.
type InfluxSink struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	runID  string
}

// NewInfluxSink creates a sink. It does not contact the server.
func NewInfluxSink(cfg InfluxConfig, lg *slog.Logger) *InfluxSink {
	if lg == nil {
		lg = slog.Default()
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(maxBatch).
			SetFlushInterval(1000),
	)
	s := &InfluxSink{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		runID:  uuid.NewString(),
	}

	errorsCh := s.writer.Errors()
	go func() {
		for err := range errorsCh {
			lg.Warn("Error sending trace to InfluxDB", "bucket", cfg.Bucket, "err", err)
		}
	}()
	return s
}

// Ping reports whether the server is reachable.
func (s *InfluxSink) Ping(ctx context.Context) (bool, error) {
	return s.client.Ping(ctx)
}

// RunID is the value of the run tag on every point.
func (s *InfluxSink) RunID() string {
	return s.runID
}

// Write queues pts on the write API. It never blocks on the network.
func (s *InfluxSink) Write(_ context.Context, pts []Point) error {
	for _, p := range pts {
		s.writer.WritePoint(influxPoint(s.runID, p))
	}
	return nil
}

// Close flushes pending points and closes the client, which also ends the
// error drain.
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	s.client.Close()
	return nil
}

func influxPoint(runID string, p Point) *influxdb2_write.Point {
	return influxdb2.NewPoint(measurement,
		map[string]string{"run": runID},
		map[string]any{
			"seq":       int64(p.Seq),
			"sim_time":  p.SimTime.Seconds(),
			"x":         p.Position.X(),
			"y":         p.Position.Y(),
			"z":         p.Position.Z(),
			"vx":        p.Velocity.X(),
			"vy":        p.Velocity.Y(),
			"vz":        p.Velocity.Z(),
			"qx":        p.Orientation.X(),
			"qy":        p.Orientation.Y(),
			"qz":        p.Orientation.Z(),
			"qw":        p.Orientation.W,
			"fx_global": p.ForceGlobal.X(),
			"fy_global": p.ForceGlobal.Y(),
			"fz_global": p.ForceGlobal.Z(),
			"alpha":     p.AlphaDeg,
			"beta":      p.BetaDeg,
		},
		p.RecordedAt,
	)
}
