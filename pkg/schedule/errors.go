package schedule

import "errors"

var (
	// ErrNotFound indicates no scheduled email exists with the given id.
	ErrNotFound = errors.New("schedule: not found")

	// ErrInvalidTransition indicates a status change that the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("schedule: invalid status transition")

	// ErrUnknownFrequency indicates a recurrence frequency outside the
	// supported set.
	ErrUnknownFrequency = errors.New("schedule: unknown frequency")

	// ErrUnknownIntervalUnit indicates a custom-frequency unit outside the
	// supported set.
	ErrUnknownIntervalUnit = errors.New("schedule: unknown interval unit")

	// ErrUnknownRetryStrategy indicates a retry strategy outside the
	// supported set. Rejected at configuration validation.
	ErrUnknownRetryStrategy = errors.New("schedule: unknown retry strategy")
)
