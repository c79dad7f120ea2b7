package types

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Controls holds the pilot inputs sampled by the input collaborator before each physics step.
type Controls struct {
	ThrustLever float64
	Aileron     float64
	Elevator    float64
	Rudder      float64
}

// AircraftState is the live kinematic and control state of the aircraft.
// It is owned by the simulation host and mutated only on the frame goroutine.
type AircraftState struct {
	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3

	Controls Controls

	// Local-frame force inputs sent to the integrator.
	ForceX float64
	ForceY float64

	// World-frame force returned by the integrator, for display only.
	ForceGlobal mgl64.Vec3

	AlphaDeg float64
	BetaDeg  float64
}

// NewAircraftState returns a state at the given position and velocity with
// identity orientation and no rotation.
func NewAircraftState(position, velocity mgl64.Vec3) AircraftState {
	return AircraftState{
		Position:    position,
		Velocity:    velocity,
		Orientation: mgl64.QuatIdent(),
	}
}

// Snapshot captures the state at seq for one physics step of deltaTime seconds.
func (s *AircraftState) Snapshot(seq uint64, deltaTime float64) Snapshot {
	return Snapshot{
		Seq:             seq,
		Position:        s.Position,
		Velocity:        s.Velocity,
		Orientation:     s.Orientation,
		AngularVelocity: s.AngularVelocity,
		ForceX:          s.ForceX,
		ForceY:          s.ForceY,
		Controls:        s.Controls,
		DeltaTime:       deltaTime,
	}
}

// Snapshot is the immutable payload sent to the integrator for one physics step.
type Snapshot struct {
	Seq uint64

	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3

	ForceX float64
	ForceY float64

	Controls Controls

	DeltaTime float64
}

// SyncResult is the authoritative state returned by the integrator for the
// snapshot with the same Seq.
type SyncResult struct {
	Seq uint64

	Position        mgl64.Vec3
	Velocity        mgl64.Vec3
	Orientation     mgl64.Quat
	AngularVelocity mgl64.Vec3

	ForceGlobal mgl64.Vec3

	AlphaDeg float64
	BetaDeg  float64
}

// StateUpdate is delivered to listeners after a result has been merged.
type StateUpdate struct {
	Seq     uint64
	SimTime time.Duration
	State   AircraftState
}
