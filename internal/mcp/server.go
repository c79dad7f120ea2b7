package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/eytandecker/flightsim-client/internal/sim"
	"github.com/eytandecker/flightsim-client/internal/state"
	"github.com/eytandecker/flightsim-client/internal/trace"
	"github.com/eytandecker/flightsim-client/pkg/types"
)

// ErrBusy is returned when the simulation command queue is full.
var ErrBusy = errors.New("mcp: simulation command queue is full")

// StateReader is the subset of state.Manager used by the MCP server.
type StateReader interface {
	GetAircraft() (types.AircraftState, error)
	Status() sim.Status
	LastUpdated() time.Time
}

// Controller queues commands for the frame goroutine. Implemented by *sim.Session.
type Controller interface {
	Submit(cmd sim.Command) bool
}

// TrajectoryReader is implemented by *trace.Recorder.
type TrajectoryReader interface {
	Points() []trace.Point
}

// Server wraps the MCP SDK server and exposes the running simulation as tools.
type Server struct {
	sdk        *mcpsdk.Server
	state      StateReader
	control    Controller
	trajectory TrajectoryReader
}

// NewServer creates a Server. The set_paused and get_trajectory tools are
// only registered when ctrl and traj are non-nil.
func NewServer(sr StateReader, ctrl Controller, traj TrajectoryReader) *Server {
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "flightsim-client",
			Version: "1.0.0",
		}, nil),
		state:      sr,
		control:    ctrl,
		trajectory: traj,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_aircraft_state",
		Description: "Returns the aircraft position, velocity, orientation, world-frame forces and aerodynamic angles as last returned by the integrator.",
	}, s.handleGetAircraftState)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_simulation_status",
		Description: "Returns simulated time, step counters, sync failures and whether the simulation is paused or finished.",
	}, s.handleGetSimulationStatus)
	if ctrl != nil {
		mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
			Name:        "set_paused",
			Description: "Pauses or resumes the simulation. Wall time spent paused is not simulated.",
		}, s.handleSetPaused)
	}
	if traj != nil {
		mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
			Name:        "get_trajectory",
			Description: "Returns the most recent trajectory points, oldest first.",
		}, s.handleGetTrajectory)
	}
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

type getStateInput struct {
	IncludeControls bool `json:"include_controls,omitempty"`
}

type statusInput struct{}

type setPausedInput struct {
	Paused bool `json:"paused"`
}

type trajectoryInput struct {
	Limit int `json:"limit,omitempty"`
}

// Vec3 is a JSON vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a JSON quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// ControlsResponse mirrors types.Controls.
type ControlsResponse struct {
	ThrustLever float64 `json:"thrust_lever"`
	Aileron     float64 `json:"aileron_input"`
	Elevator    float64 `json:"elevator_input"`
	Rudder      float64 `json:"rudder_input"`
}

// AircraftStateResponse is the JSON payload of get_aircraft_state.
type AircraftStateResponse struct {
	Position        Vec3              `json:"position_m"`
	Velocity        Vec3              `json:"velocity_mps"`
	Speed           float64           `json:"speed_mps"`
	Orientation     Quat              `json:"orientation"`
	AngularVelocity Vec3              `json:"angular_velocity_rps"`
	ForceGlobal     Vec3              `json:"force_global_n"`
	Alpha           float64           `json:"alpha_deg"`
	Beta            float64           `json:"beta_deg"`
	Controls        *ControlsResponse `json:"controls,omitempty"`
	Timestamp       string            `json:"timestamp"`
}

// StatusResponse is the JSON payload of get_simulation_status.
type StatusResponse struct {
	SimTime     float64 `json:"sim_time_s"`
	Steps       uint64  `json:"steps"`
	Applied     uint64  `json:"applied"`
	Discarded   uint64  `json:"discarded"`
	Failed      uint64  `json:"failed"`
	Empty       uint64  `json:"empty"`
	InFlight    int     `json:"in_flight"`
	LastSeq     uint64  `json:"last_seq"`
	LastError   string  `json:"last_error,omitempty"`
	LastUpdated string  `json:"last_updated,omitempty"`
	Paused      bool    `json:"paused"`
	Terminated  bool    `json:"terminated"`
	Timestamp   string  `json:"timestamp"`
}

// SetPausedResponse acknowledges a queued pause or resume.
type SetPausedResponse struct {
	Paused    bool   `json:"paused"`
	Queued    bool   `json:"queued"`
	Timestamp string `json:"timestamp"`
}

// TrajectoryPoint is one entry of get_trajectory.
type TrajectoryPoint struct {
	Seq      uint64  `json:"seq"`
	SimTime  float64 `json:"sim_time_s"`
	Position Vec3    `json:"position_m"`
	Velocity Vec3    `json:"velocity_mps"`
	Alpha    float64 `json:"alpha_deg"`
	Beta     float64 `json:"beta_deg"`
}

// TrajectoryResponse is the JSON payload of get_trajectory.
type TrajectoryResponse struct {
	Count     int               `json:"count"`
	Points    []TrajectoryPoint `json:"points"`
	Timestamp string            `json:"timestamp"`
}

// SimulatorUnavailableResponse is returned when a tool cannot be served.
type SimulatorUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleGetAircraftState(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input getStateInput,
) (*mcpsdk.CallToolResult, any, error) {
	ac, err := s.state.GetAircraft()
	if err != nil {
		return s.errorResult(err), nil, nil
	}

	q := ac.Orientation
	resp := AircraftStateResponse{
		Position:        vec(ac.Position),
		Velocity:        vec(ac.Velocity),
		Speed:           ac.Velocity.Len(),
		Orientation:     Quat{X: q.X(), Y: q.Y(), Z: q.Z(), W: q.W},
		AngularVelocity: vec(ac.AngularVelocity),
		ForceGlobal:     vec(ac.ForceGlobal),
		Alpha:           ac.AlphaDeg,
		Beta:            ac.BetaDeg,
		Timestamp:       now(),
	}
	if input.IncludeControls {
		resp.Controls = &ControlsResponse{
			ThrustLever: ac.Controls.ThrustLever,
			Aileron:     ac.Controls.Aileron,
			Elevator:    ac.Controls.Elevator,
			Rudder:      ac.Controls.Rudder,
		}
	}
	return jsonResult(resp)
}

func (s *Server) handleGetSimulationStatus(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ statusInput,
) (*mcpsdk.CallToolResult, any, error) {
	st := s.state.Status()
	resp := StatusResponse{
		SimTime:    st.SimTime.Seconds(),
		Steps:      st.Steps,
		Applied:    st.Applied,
		Discarded:  st.Discarded,
		Failed:     st.Failed,
		Empty:      st.Empty,
		InFlight:   st.InFlight,
		LastSeq:    st.LastSeq,
		LastError:  st.LastError,
		Paused:     st.Paused,
		Terminated: st.Terminated,
		Timestamp:  now(),
	}
	if lu := s.state.LastUpdated(); !lu.IsZero() {
		resp.LastUpdated = lu.UTC().Format(time.RFC3339)
	}
	return jsonResult(resp)
}

func (s *Server) handleSetPaused(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input setPausedInput,
) (*mcpsdk.CallToolResult, any, error) {
	if s.state.Status().Terminated {
		return s.errorResult(sim.ErrTerminated), nil, nil
	}
	if !s.control.Submit(sim.Pause(input.Paused)) {
		return s.errorResult(ErrBusy), nil, nil
	}
	return jsonResult(SetPausedResponse{
		Paused:    input.Paused,
		Queued:    true,
		Timestamp: now(),
	})
}

func (s *Server) handleGetTrajectory(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input trajectoryInput,
) (*mcpsdk.CallToolResult, any, error) {
	pts := s.trajectory.Points()
	if input.Limit > 0 && len(pts) > input.Limit {
		pts = pts[len(pts)-input.Limit:]
	}

	resp := TrajectoryResponse{
		Count:     len(pts),
		Points:    make([]TrajectoryPoint, len(pts)),
		Timestamp: now(),
	}
	for i, p := range pts {
		resp.Points[i] = TrajectoryPoint{
			Seq:      p.Seq,
			SimTime:  p.SimTime.Seconds(),
			Position: vec(p.Position),
			Velocity: vec(p.Velocity),
			Alpha:    p.AlphaDeg,
			Beta:     p.BetaDeg,
		}
	}
	return jsonResult(resp)
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := SimulatorUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: now(),
	}

	switch {
	case errors.Is(err, state.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "Check that the integrator at the configured host and port is answering."
	case errors.Is(err, state.ErrNoData):
		resp.Code = "NO_DATA"
		resp.Recoverable = true
		resp.Suggestion = "Wait for the first frame to be rendered."
	case errors.Is(err, sim.ErrTerminated):
		resp.Code = "SIMULATOR_TERMINATED"
		resp.Recoverable = false
		resp.Suggestion = "The time budget has been reached. Restart the client to fly again."
	case errors.Is(err, ErrBusy):
		resp.Code = "BUSY"
		resp.Recoverable = true
		resp.Suggestion = "Retry shortly."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func vec(v mgl64.Vec3) Vec3 {
	return Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
