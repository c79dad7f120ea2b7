package trace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

const (
	DefaultCapacity  = 2000
	DefaultQueueSize = 1024

	maxBatch = 256
)

// Sink persists trajectory points off the frame goroutine.
type Sink interface {
	Write(ctx context.Context, pts []Point) error
	Close() error
}

// Config sizes the in-memory trace and the sink queue.
type Config struct {
	Capacity  int
	QueueSize int
}

// Recorder keeps the most recent trajectory points in memory and forwards
// every point to its sinks from a background worker. It implements
// sim.StateListener.
type Recorder struct {
	mu    sync.RWMutex
	ring  []Point
	next  int
	count int

	sinks   []Sink
	queue   chan Point
	dropped atomic.Uint64
	done    chan struct{}
	closed  atomic.Bool

	lg  *slog.Logger
	now func() time.Time
}

// NewRecorder creates a Recorder. With no sinks no worker is started.
func NewRecorder(cfg Config, lg *slog.Logger, sinks ...Sink) *Recorder {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if lg == nil {
		lg = slog.Default()
	}

	r := &Recorder{
		ring:  make([]Point, cfg.Capacity),
		sinks: sinks,
		done:  make(chan struct{}),
		lg:    lg,
		now:   time.Now,
	}
	if len(sinks) == 0 {
		close(r.done)
		return r
	}
	r.queue = make(chan Point, cfg.QueueSize)
	go r.worker()
	return r
}

// StateUpdated records u. It never blocks: points are dropped when the sink
// queue is full.
func (r *Recorder) StateUpdated(u types.StateUpdate) {
	p := FromUpdate(u, r.now())

	r.mu.Lock()
	r.ring[r.next] = p
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	r.mu.Unlock()

	if r.queue == nil || r.closed.Load() {
		return
	}
	select {
	case r.queue <- p:
	default:
		if r.dropped.Add(1) == 1 {
			r.lg.Warn("Trace sink queue full, dropping points")
		}
	}
}

// Points returns the retained points, oldest first.
func (r *Recorder) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Point, 0, r.count)
	start := (r.next - r.count + len(r.ring)) % len(r.ring)
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)])
	}
	return out
}

// Len returns the number of retained points.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Dropped returns how many points never reached the sinks.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) worker() {
	defer close(r.done)

	batch := make([]Point, 0, maxBatch)
	for p := range r.queue {
		batch = append(batch[:0], p)
	fill:
		for len(batch) < maxBatch {
			select {
			case p, ok := <-r.queue:
				if !ok {
					break fill
				}
				batch = append(batch, p)
			default:
				break fill
			}
		}
		r.flush(batch)
	}
}

func (r *Recorder) flush(batch []Point) {
	for _, s := range r.sinks {
		if err := s.Write(context.Background(), batch); err != nil {
			r.lg.Warn("Trace sink write failed", "points", len(batch), "err", err)
		}
	}
}

// Close stops accepting points, waits for queued points to be written and
// closes the sinks. StateUpdated must not be called concurrently with Close.
func (r *Recorder) Close(ctx context.Context) error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.queue != nil {
		close(r.queue)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
