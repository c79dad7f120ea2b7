package sim

import (
	"fmt"
	"time"
)

// EventKind identifies what happened to a step.
type EventKind int

const (
	EventApplied EventKind = iota
	EventEmpty
	EventDiscarded
	EventFailed
	EventTerminated
)

func (k EventKind) String() string {
	switch k {
	case EventApplied:
		return "applied"
	case EventEmpty:
		return "empty"
	case EventDiscarded:
		return "discarded"
	case EventFailed:
		return "failed"
	case EventTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is published on the session event channel so a host can surface
// connectivity loss or the end of the run.
type Event struct {
	Kind    EventKind
	Seq     uint64
	SimTime time.Duration
	Err     error
}
