package mailcraft

import "errors"

var (
	// ErrNoRecipients indicates a terminal operation was invoked without any
	// To recipient.
	ErrNoRecipients = errors.New("mailcraft: no recipients")

	// ErrScheduleRequired indicates SaveScheduled was called without a
	// schedule time.
	ErrScheduleRequired = errors.New("mailcraft: schedule time required")

	// ErrLogNotFound indicates no send log exists with the given UUID.
	ErrLogNotFound = errors.New("mailcraft: log not found")

	// ErrUnknownFailoverStrategy indicates a failover strategy outside the
	// supported set. Rejected at configuration validation.
	ErrUnknownFailoverStrategy = errors.New("mailcraft: unknown failover strategy")

	// ErrNoProvidersConfigured indicates the provider order is empty.
	ErrNoProvidersConfigured = errors.New("mailcraft: no providers configured")
)
