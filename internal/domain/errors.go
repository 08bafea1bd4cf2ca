package domain

import "errors"

var (
	// ErrInvalidStage is returned for stage values outside the catalog.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrAlreadyRunning is returned when a daily trigger overlaps a run whose jobs are still in flight.
	ErrAlreadyRunning = errors.New("daily run already in progress")

	// ErrInvalidTransition is returned when a write skips or reverses a stage.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrTerminalStage is returned when a write targets a completed or failed job.
	ErrTerminalStage = errors.New("job is in a terminal stage")

	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
	ErrProgressRegression = errors.New("progress cannot decrease within a stage")
	ErrMissingError       = errors.New("failed stage requires an error message")
	ErrUnexpectedError    = errors.New("error message is only allowed on failed stage")

	ErrJobNotFound     = errors.New("job not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidSchedule = errors.New("invalid upload schedule")

	// ErrWriteConflict is returned when concurrent writers kept winning the version check.
	ErrWriteConflict = errors.New("job was modified concurrently")
)

// IsValidationError reports whether err is a rejected mutation rather than a system fault.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidStage,
		ErrInvalidTransition,
		ErrTerminalStage,
		ErrInvalidProgress,
		ErrProgressRegression,
		ErrMissingError,
		ErrUnexpectedError,
		ErrInvalidSchedule,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
