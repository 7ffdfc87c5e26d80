package tracking

import (
	"context"
	"time"
)

// Link is one tracked URL inside a sent email. The token is the opaque path
// segment in the rewritten href; the original URL is what the recipient is
// redirected to.
type Link struct {
	ID          int64
	LogID       int64
	Token       string
	OriginalURL string
	ClickCount  int

	// ClickedAt is the most recent click, nil until the first one.
	ClickedAt *time.Time

	CreatedAt time.Time
}

// LinkStore persists tracked links and open/click events. Implemented by the
// storage layer.
type LinkStore interface {
	// ResolveLogID maps a send log UUID to its numeric id.
	// Returns ErrLogNotFound when the UUID is unknown.
	ResolveLogID(ctx context.Context, logUUID string) (int64, error)

	// CreateLink persists a new tracked link.
	CreateLink(ctx context.Context, link Link) error

	// FindLinkByToken returns the link for token, or ErrLinkNotFound.
	FindLinkByToken(ctx context.Context, logUUID, token string) (*Link, error)

	// IncrementClick bumps the click counter for the link and records the
	// click time.
	IncrementClick(ctx context.Context, linkID int64) error

	// MarkOpened records the first open of the log entry. Later calls are
	// no-ops. Returns ErrLogNotFound when the UUID is unknown.
	MarkOpened(ctx context.Context, logUUID string) error
}
