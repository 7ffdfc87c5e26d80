package tracking

import "errors"

var (
	// ErrLogNotFound indicates no send log entry exists for the given UUID.
	ErrLogNotFound = errors.New("tracking: log entry not found")

	// ErrLinkNotFound indicates no tracked link exists for the given token.
	ErrLinkNotFound = errors.New("tracking: link not found")
)
