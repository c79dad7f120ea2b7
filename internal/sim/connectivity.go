package sim

import (
	"context"
	"log/slog"
)

// DefaultLostAfter is how many consecutive failed steps mark the integrator as lost.
const DefaultLostAfter = 10

// ConnectivityChange is the effect of one event on a ConnectivityMonitor.
type ConnectivityChange int

const (
	ConnectivityUnchanged ConnectivityChange = iota
	ConnectivityLost
	ConnectivityRestored
)

// ConnectivityMonitor follows the session event stream and reports when
// consecutive sync failures suggest the integrator is gone, and when it
// answers again. It is not safe for concurrent use.
type ConnectivityMonitor struct {
	lostAfter int
	failures  int
	lost      bool
	lg        *slog.Logger
}

// NewConnectivityMonitor creates a monitor. lostAfter <= 0 uses DefaultLostAfter.
func NewConnectivityMonitor(lostAfter int, lg *slog.Logger) *ConnectivityMonitor {
	if lostAfter <= 0 {
		lostAfter = DefaultLostAfter
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &ConnectivityMonitor{lostAfter: lostAfter, lg: lg}
}

// Observe records ev. Any answer from the integrator, including an empty
// body or a result discarded by the applier, resets the failure count.
func (m *ConnectivityMonitor) Observe(ev Event) ConnectivityChange {
	switch ev.Kind {
	case EventFailed:
		m.failures++
		if !m.lost && m.failures >= m.lostAfter {
			m.lost = true
			m.lg.Error("Integrator connection lost", "consecutiveFailures", m.failures, "err", ev.Err)
			return ConnectivityLost
		}
	case EventApplied, EventEmpty, EventDiscarded:
		m.failures = 0
		if m.lost {
			m.lost = false
			m.lg.Info("Integrator connection restored", "seq", ev.Seq)
			return ConnectivityRestored
		}
	}
	return ConnectivityUnchanged
}

// Lost reports whether the integrator is currently considered unreachable.
func (m *ConnectivityMonitor) Lost() bool {
	return m.lost
}

// Watch observes events until ctx is done or events is closed.
func (m *ConnectivityMonitor) Watch(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}
