package schedule

import (
	"context"
	"time"
)

// Store persists scheduled emails. Implemented by the storage layer.
type Store interface {
	// Create inserts the record and fills in its generated id.
	Create(ctx context.Context, rec *Email) error

	// Update persists the record's mutable fields by id.
	// Returns ErrNotFound when the id is unknown.
	Update(ctx context.Context, rec *Email) error

	// FindByUUID returns the record with the given correlation id.
	FindByUUID(ctx context.Context, id string) (*Email, error)

	// ClaimDue atomically moves up to limit due pending records to
	// processing and returns them ordered by scheduled_at ascending. A record
	// is claimed only if it is still pending at claim time, so concurrent
	// passes never return the same record.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Email, error)

	// FindDueRetryable returns failed records with retry budget left
	// (retry_attempts < maxAttempts), oldest first.
	FindDueRetryable(ctx context.Context, maxAttempts, limit int) ([]*Email, error)

	// CountChain returns the number of records in the recurrence lineage
	// containing id (the root and every descendant).
	CountChain(ctx context.Context, id int64) (int, error)

	// FindSentWithoutChild returns recurring records sent after since that
	// have not spawned a child yet.
	FindSentWithoutChild(ctx context.Context, since time.Time, limit int) ([]*Email, error)

	// CancelExpired cancels pending records past their expires_at and
	// returns how many were affected.
	CancelExpired(ctx context.Context, now time.Time) (int64, error)

	// FailExhausted permanently fails pending records whose retry_attempts
	// reached maxAttempts and returns how many were affected.
	FailExhausted(ctx context.Context, maxAttempts int) (int64, error)
}
