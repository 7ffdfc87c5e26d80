package queue

import "errors"

var (
	// ErrPoolRequired indicates the manager was created without a database
	// pool.
	ErrPoolRequired = errors.New("queue: pgx pool is required")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("queue: already started")

	// ErrNotStarted indicates Stop was called before Start.
	ErrNotStarted = errors.New("queue: not started")

	// ErrUnknownTask indicates a periodic job referenced an unregistered
	// task name.
	ErrUnknownTask = errors.New("queue: unknown task")
)
