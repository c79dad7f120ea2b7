package trace

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

// Point is one sample of the aircraft trajectory, taken after an applied result.
type Point struct {
	Seq         uint64
	SimTime     time.Duration
	RecordedAt  time.Time
	Position    mgl64.Vec3
	Velocity    mgl64.Vec3
	Orientation mgl64.Quat
	ForceGlobal mgl64.Vec3
	AlphaDeg    float64
	BetaDeg     float64
}

// FromUpdate builds a Point from an applied state update.
func FromUpdate(u types.StateUpdate, at time.Time) Point {
	return Point{
		Seq:         u.Seq,
		SimTime:     u.SimTime,
		RecordedAt:  at,
		Position:    u.State.Position,
		Velocity:    u.State.Velocity,
		Orientation: u.State.Orientation,
		ForceGlobal: u.State.ForceGlobal,
		AlphaDeg:    u.State.AlphaDeg,
		BetaDeg:     u.State.BetaDeg,
	}
}
