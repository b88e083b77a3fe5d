package scheduler

import "errors"

var (
	// ErrPhaseAlreadyRunning is returned when another run of the phase holds its lock
	ErrPhaseAlreadyRunning = errors.New("phase already running")

	// ErrUnknownPhase is returned for a phase name the runner does not know
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrInvalidConfig is returned when trigger configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
