package sim

import "errors"

var (
	ErrTerminated  = errors.New("sim: simulation terminated")
	ErrPaused      = errors.New("sim: simulation paused")
	ErrStaleResult = errors.New("sim: result older than last applied step")
)
