package state

import (
	"sync"
	"time"

	"github.com/eytandecker/flightsim-client/internal/sim"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

// Manager holds a concurrent-safe copy of the aircraft state and session
// status, published by the frame goroutine and read by tool handlers.
type Manager struct {
	mu             sync.RWMutex
	aircraft       types.AircraftState
	status         sim.Status
	published      bool
	lastUpdated    time.Time
	staleThreshold time.Duration
	now            func() time.Time
}

// NewManager creates a Manager with the given stale threshold.
// A zero threshold disables staleness checking.
func NewManager(staleThreshold time.Duration) *Manager {
	return &Manager{staleThreshold: staleThreshold, now: time.Now}
}

// Publish stores a frame's view of the simulation. The freshness clock only
// moves when a new integrator result has been applied, so a stalled
// integrator shows up as stale data even while frames keep rendering.
func (m *Manager) Publish(ac types.AircraftState, st sim.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.published || st.LastSeq != m.status.LastSeq {
		m.lastUpdated = m.now()
	}
	m.aircraft = ac
	m.status = st
	m.published = true
}

// GetAircraft returns the last published state. It returns ErrNoData before
// the first Publish and ErrStale when the integrator has not produced a
// result within the stale threshold. A paused or finished simulation is
// never stale.
func (m *Manager) GetAircraft() (types.AircraftState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.published {
		return types.AircraftState{}, ErrNoData
	}
	if m.status.Paused || m.status.Terminated {
		return m.aircraft, nil
	}
	if m.staleThreshold > 0 && m.now().Sub(m.lastUpdated) > m.staleThreshold {
		return types.AircraftState{}, ErrStale
	}
	return m.aircraft, nil
}

// Status returns the last published session status.
func (m *Manager) Status() sim.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastUpdated returns when a new result was last seen, or zero if never.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}
