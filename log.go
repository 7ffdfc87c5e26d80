package mailcraft

import (
	"context"
	"time"

	"github.com/mailcraft/mailcraft/pkg/email"
)

// LogStatus is the lifecycle state of one send attempt.
type LogStatus string

const (
	LogPending LogStatus = "pending"
	LogSending LogStatus = "sending"
	LogSent    LogStatus = "sent"
	LogFailed  LogStatus = "failed"
)

// Log is the audit record of one concrete send attempt, snapshotted before
// the attempt so queued sends can replay it and tracking can attribute
// events to it.
type Log struct {
	ID     int64
	UUID   string
	Status LogStatus

	Mailer  string
	From    *email.Address
	ReplyTo *email.Address
	To      []email.Address
	CC      []email.Address
	BCC     []email.Address

	Subject      string
	HTMLBody     string
	TextBody     string
	Headers      map[string]string
	Placeholders map[string]string
	Attachments  []email.Descriptor

	Error    string
	OpenedAt *time.Time

	// ScheduledEmailID links the log to the scheduled record it executed,
	// when any.
	ScheduledEmailID *int64

	// ABVariantID attributes the send to an A/B test variant, so open and
	// click events feed the variant's counters.
	ABVariantID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogStore persists send logs. Implemented by the storage layer.
type LogStore interface {
	// CreateLog inserts the snapshot and fills in its generated id.
	CreateLog(ctx context.Context, log *Log) error

	// UpdateLogStatus moves the log to status, recording the error message
	// for failures.
	UpdateLogStatus(ctx context.Context, logUUID string, status LogStatus, errMsg string) error

	// FindLogByUUID returns the snapshot, or ErrLogNotFound.
	FindLogByUUID(ctx context.Context, logUUID string) (*Log, error)
}
