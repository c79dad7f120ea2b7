package integrator

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork = errors.New("integrator: network error")
	ErrServer  = errors.New("integrator: server error")
	ErrParse   = errors.New("integrator: parse error")
)

// ServerError is returned for a non-2xx response. The body is ignored.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("integrator: server returned status %d", e.StatusCode)
}

// Is makes errors.Is(err, ErrServer) match any ServerError.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// Kind classifies a sync failure.
type Kind int

const (
	KindNone Kind = iota
	KindNetwork
	KindServer
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classify maps err onto the failure taxonomy. Unknown errors count as network failures.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrServer):
		return KindServer
	case errors.Is(err, ErrParse):
		return KindParse
	default:
		return KindNetwork
	}
}
