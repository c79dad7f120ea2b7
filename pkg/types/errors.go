package types

import "fmt"

// SimulatorError reports a failed sync step on the session event channel.
type SimulatorError struct {
	Seq         uint64
	Err         error
	Message     string
	Recoverable bool
}

func (e *SimulatorError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Seq, e.Message, e.Err)
}

func (e *SimulatorError) Unwrap() error {
	return e.Err
}
