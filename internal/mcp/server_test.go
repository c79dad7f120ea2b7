package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmcp "github.com/eytandecker/flightsim-client/internal/mcp"
	"github.com/eytandecker/flightsim-client/internal/sim"
	"github.com/eytandecker/flightsim-client/internal/state"
	"github.com/eytandecker/flightsim-client/internal/trace"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

// mockState controls what the state reader returns in tests.
type mockState struct {
	ac          types.AircraftState
	err         error
	status      sim.Status
	lastUpdated time.Time
}

func (m *mockState) GetAircraft() (types.AircraftState, error) { return m.ac, m.err }
func (m *mockState) Status() sim.Status { return m.status }
func (m *mockState) LastUpdated() time.Time { return m.lastUpdated }

type mockController struct {
	commands []sim.Command
	full     bool
}

func (m *mockController) Submit(cmd sim.Command) bool {
	if m.full {
		return false
	}
	m.commands = append(m.commands, cmd)
	return true
}

type mockTrajectory struct {
	pts []trace.Point
}

func (m *mockTrajectory) Points() []trace.Point { return m.pts }

func sampleAircraft() types.AircraftState {
	ac := types.NewAircraftState(mgl64.Vec3{120, 15, -4}, mgl64.Vec3{3, 0, 4})
	ac.Orientation = mgl64.Quat{W: 0.5, V: mgl64.Vec3{0.5, 0.5, 0.5}}
	ac.AngularVelocity = mgl64.Vec3{0, 0.1, 0}
	ac.ForceGlobal = mgl64.Vec3{100, -9.81, 2}
	ac.AlphaDeg = 4.2
	ac.BetaDeg = -0.3
	ac.Controls = types.Controls{ThrustLever: 0.8, Aileron: 0.1, Elevator: -0.2, Rudder: 0.05}
	return ac
}

// connect wires the MCP server to a client via in-memory transports.
func connect(t *testing.T, srv *internalmcp.Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	st, ct := mcpsdk.NewInMemoryTransports()

	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, srv *internalmcp.Server, name string, args map[string]any) (*mcpsdk.CallToolResult, map[string]any) {
	t.Helper()
	cs := connect(t, srv)

	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	var m map[string]any
	text := res.Content[0].(*mcpsdk.TextContent).Text
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	return res, m
}

func TestGetAircraftStateSuccess(t *testing.T) {
	srv := internalmcp.NewServer(&mockState{ac: sampleAircraft()}, nil, nil)
	res, m := callTool(t, srv, "get_aircraft_state", nil)

	require.False(t, res.IsError)
	pos := m["position_m"].(map[string]any)
	assert.InDelta(t, 120.0, pos["x"].(float64), 1e-9)
	assert.InDelta(t, 15.0, pos["y"].(float64), 1e-9)
	assert.InDelta(t, -4.0, pos["z"].(float64), 1e-9)
	assert.InDelta(t, 5.0, m["speed_mps"].(float64), 1e-9)

	q := m["orientation"].(map[string]any)
	assert.InDelta(t, 0.5, q["w"].(float64), 1e-9)
	assert.InDelta(t, 0.5, q["x"].(float64), 1e-9)

	f := m["force_global_n"].(map[string]any)
	assert.InDelta(t, -9.81, f["y"].(float64), 1e-9)
	assert.InDelta(t, 4.2, m["alpha_deg"].(float64), 1e-9)
	assert.InDelta(t, -0.3, m["beta_deg"].(float64), 1e-9)

	_, hasControls := m["controls"]
	assert.False(t, hasControls, "controls should be omitted by default")

	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestGetAircraftStateWithControls(t *testing.T) {
	srv := internalmcp.NewServer(&mockState{ac: sampleAircraft()}, nil, nil)
	res, m := callTool(t, srv, "get_aircraft_state", map[string]any{"include_controls": true})

	require.False(t, res.IsError)
	c := m["controls"].(map[string]any)
	assert.InDelta(t, 0.8, c["thrust_lever"].(float64), 1e-9)
	assert.InDelta(t, -0.2, c["elevator_input"].(float64), 1e-9)
}

func TestGetAircraftStateErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        string
		recoverable bool
	}{
		{"stale", state.ErrStale, "DATA_STALE", true},
		{"no data", state.ErrNoData, "NO_DATA", true},
		{"unknown", errors.New("some unexpected error"), "UNKNOWN_ERROR", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := internalmcp.NewServer(&mockState{err: tt.err}, nil, nil)
			res, m := callTool(t, srv, "get_aircraft_state", nil)

			require.True(t, res.IsError)
			assert.Equal(t, tt.code, m["code"])
			assert.Equal(t, tt.recoverable, m["recoverable"])
			assert.Equal(t, false, m["available"])
		})
	}
}

func TestGetSimulationStatus(t *testing.T) {
	lu := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ms := &mockState{
		status: sim.Status{
			SimTime:   12500 * time.Millisecond,
			Steps:     250,
			Applied:   240,
			Discarded: 4,
			Failed:    6,
			InFlight:  2,
			LastSeq:   248,
			LastError: "integrator: server error: status 500",
		},
		lastUpdated: lu,
	}
	res, m := callTool(t, internalmcp.NewServer(ms, nil, nil), "get_simulation_status", nil)

	require.False(t, res.IsError)
	assert.InDelta(t, 12.5, m["sim_time_s"].(float64), 1e-9)
	assert.InDelta(t, 250, m["steps"].(float64), 0)
	assert.InDelta(t, 6, m["failed"].(float64), 0)
	assert.InDelta(t, 248, m["last_seq"].(float64), 0)
	assert.Equal(t, "integrator: server error: status 500", m["last_error"])
	assert.Equal(t, "2024-05-01T12:00:00Z", m["last_updated"])
	assert.Equal(t, false, m["terminated"])
}

func TestSetPausedQueuesCommand(t *testing.T) {
	ctrl := &mockController{}
	srv := internalmcp.NewServer(&mockState{}, ctrl, nil)
	res, m := callTool(t, srv, "set_paused", map[string]any{"paused": true})

	require.False(t, res.IsError)
	assert.Equal(t, true, m["paused"])
	assert.Equal(t, true, m["queued"])
	require.Len(t, ctrl.commands, 1)
}

func TestSetPausedDrivesSession(t *testing.T) {
	ac := sampleAircraft()
	session := sim.NewSession(&ac, nil, nil, sim.DefaultConfig())
	srv := internalmcp.NewServer(&mockState{}, session, nil)

	res, _ := callTool(t, srv, "set_paused", map[string]any{"paused": true})
	require.False(t, res.IsError)

	assert.False(t, session.Paused())
	assert.Equal(t, 1, session.ProcessCommands())
	assert.True(t, session.Paused())
}

func TestSetPausedErrors(t *testing.T) {
	t.Run("terminated", func(t *testing.T) {
		ms := &mockState{status: sim.Status{Terminated: true}}
		ctrl := &mockController{}
		res, m := callTool(t, internalmcp.NewServer(ms, ctrl, nil), "set_paused", map[string]any{"paused": false})

		require.True(t, res.IsError)
		assert.Equal(t, "SIMULATOR_TERMINATED", m["code"])
		assert.Equal(t, false, m["recoverable"])
		assert.Empty(t, ctrl.commands)
	})
	t.Run("queue full", func(t *testing.T) {
		ctrl := &mockController{full: true}
		res, m := callTool(t, internalmcp.NewServer(&mockState{}, ctrl, nil), "set_paused", map[string]any{"paused": true})

		require.True(t, res.IsError)
		assert.Equal(t, "BUSY", m["code"])
		assert.Equal(t, true, m["recoverable"])
	})
}

func TestGetTrajectory(t *testing.T) {
	traj := &mockTrajectory{}
	for seq := uint64(1); seq <= 5; seq++ {
		traj.pts = append(traj.pts, trace.Point{
			Seq:      seq,
			SimTime:  time.Duration(seq) * 50 * time.Millisecond,
			Position: mgl64.Vec3{float64(seq) * 1.5, 10, 0},
			AlphaDeg: 2,
		})
	}
	srv := internalmcp.NewServer(&mockState{}, nil, traj)

	res, m := callTool(t, srv, "get_trajectory", map[string]any{"limit": 2})
	require.False(t, res.IsError)
	assert.InDelta(t, 2, m["count"].(float64), 0)

	pts := m["points"].([]any)
	require.Len(t, pts, 2)
	first := pts[0].(map[string]any)
	assert.InDelta(t, 4, first["seq"].(float64), 0)
	assert.InDelta(t, 0.2, first["sim_time_s"].(float64), 1e-9)
	assert.InDelta(t, 6.0, first["position_m"].(map[string]any)["x"].(float64), 1e-9)
}

func TestOptionalToolsNotRegistered(t *testing.T) {
	cs := connect(t, internalmcp.NewServer(&mockState{}, nil, nil))

	res, err := cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_aircraft_state", "get_simulation_status"}, names)
}
