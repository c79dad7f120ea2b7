package integrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

const (
	// ContentType mislabels the JSON body; integrators expect exactly this value.
	ContentType = "text/plain"
	DefaultPath = "/api/update"
)

// updateRequest is the request body of POST /api/update.
type updateRequest struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	VX            float64 `json:"vx"`
	VY            float64 `json:"vy"`
	VZ            float64 `json:"vz"`
	QX            float64 `json:"qx"`
	QY            float64 `json:"qy"`
	QZ            float64 `json:"qz"`
	QW            float64 `json:"qw"`
	WX            float64 `json:"wx"`
	WY            float64 `json:"wy"`
	WZ            float64 `json:"wz"`
	FX            float64 `json:"fx"`
	FY            float64 `json:"fy"`
	ThrustLever   float64 `json:"thrust_lever"`
	AileronInput  float64 `json:"aileron_input"`
	ElevatorInput float64 `json:"elevator_input"`
	RudderInput   float64 `json:"rudder_input"`
	DeltaTime     float64 `json:"deltaTime"`
}

// ResultFields is the ordered list of fields every successful response must carry.
var ResultFields = []string{
	"x", "y", "z",
	"vx", "vy", "vz",
	"qx", "qy", "qz", "qw",
	"wx", "wy", "wz",
	"fx_global", "fy_global", "fz_global",
	"alpha", "beta",
}

// EncodeSnapshot builds the request body for snap.
func EncodeSnapshot(snap types.Snapshot) ([]byte, error) {
	req := updateRequest{
		X:             snap.Position.X(),
		Y:             snap.Position.Y(),
		Z:             snap.Position.Z(),
		VX:            snap.Velocity.X(),
		VY:            snap.Velocity.Y(),
		VZ:            snap.Velocity.Z(),
		QX:            snap.Orientation.X(),
		QY:            snap.Orientation.Y(),
		QZ:            snap.Orientation.Z(),
		QW:            snap.Orientation.W,
		WX:            snap.AngularVelocity.X(),
		WY:            snap.AngularVelocity.Y(),
		WZ:            snap.AngularVelocity.Z(),
		FX:            snap.ForceX,
		FY:            snap.ForceY,
		ThrustLever:   snap.Controls.ThrustLever,
		AileronInput:  snap.Controls.Aileron,
		ElevatorInput: snap.Controls.Elevator,
		RudderInput:   snap.Controls.Rudder,
		DeltaTime:     snap.DeltaTime,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %d: %w", snap.Seq, err)
	}
	return data, nil
}

// DecodeResult parses a 2xx response body. Surrounding whitespace is trimmed;
// an empty body yields ok == false and no error. Values may be JSON numbers or
// numeric strings.
func DecodeResult(body []byte) (res types.SyncResult, ok bool, err error) {
	text := bytes.TrimSpace(body)
	if len(text) == 0 {
		return types.SyncResult{}, false, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(text, &raw); err != nil {
		return types.SyncResult{}, false, fmt.Errorf("%w: %w", ErrParse, err)
	}

	vals := make([]float64, len(ResultFields))
	for i, name := range ResultFields {
		msg, present := raw[name]
		if !present {
			return types.SyncResult{}, false, fmt.Errorf("%w: missing field %q", ErrParse, name)
		}
		v, err := parseFloat(msg)
		if err != nil {
			return types.SyncResult{}, false, fmt.Errorf("%w: field %q: %w", ErrParse, name, err)
		}
		vals[i] = v
	}

	return types.SyncResult{
		Position:        mgl64.Vec3{vals[0], vals[1], vals[2]},
		Velocity:        mgl64.Vec3{vals[3], vals[4], vals[5]},
		Orientation:     mgl64.Quat{V: mgl64.Vec3{vals[6], vals[7], vals[8]}, W: vals[9]},
		AngularVelocity: mgl64.Vec3{vals[10], vals[11], vals[12]},
		ForceGlobal:     mgl64.Vec3{vals[13], vals[14], vals[15]},
		AlphaDeg:        vals[16],
		BetaDeg:         vals[17],
	}, true, nil
}

func parseFloat(msg json.RawMessage) (float64, error) {
	msg = bytes.TrimSpace(msg)
	if bytes.Equal(msg, []byte("null")) {
		return 0, fmt.Errorf("null value")
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", msg)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
