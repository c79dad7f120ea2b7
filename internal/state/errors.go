package state

import "errors"

var (
	// ErrStale is returned when aircraft data has not been refreshed within the stale threshold.
	ErrStale = errors.New("state: aircraft data is stale")
	// ErrNoData is returned before the first published frame.
	ErrNoData = errors.New("state: no aircraft data published yet")
)
