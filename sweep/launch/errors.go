package launch

import "errors"

var (
	// ErrOutputExists is returned when a run directory exists and force is off.
	ErrOutputExists = errors.New("output directory exists")
	// ErrWallClockExceeded is returned when the estimated wall-clock is above
	// the configured maximum.
	ErrWallClockExceeded = errors.New("estimated wall-clock exceeds maximum")
	// ErrNoDataFiles is returned when a restart finds no snapshots.
	ErrNoDataFiles = errors.New("no data files")
)
