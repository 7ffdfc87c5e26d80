package schedule

import "fmt"

// Status is the lifecycle state of a scheduled email.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// legalTransitions is the single source of truth for status changes.
// Processing is transient within one batch pass; it goes back to pending when
// conditions defer the record or a retry is scheduled. Failed records can be
// folded back to pending while retry budget remains.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusSent, StatusPending, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusPending},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is a legal status change.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the record.
func (e *Email) Transition(to Status) error {
	if !e.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	e.Status = to
	return nil
}
