package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/mailcraft/mailcraft/pkg/email"
)

// Email is one persisted unit of deferred delivery intent. A non-empty
// Frequency makes it recurring: each successful send spawns a child record
// linked through ParentID, numbered by OccurrenceNumber.
type Email struct {
	ID          int64
	UUID        string
	Status      Status
	ScheduledAt time.Time
	SentAt      *time.Time
	ExpiresAt   *time.Time

	Frequency        Frequency
	FrequencyOptions FrequencyOptions
	Conditions       []Condition

	// Mailer pins delivery to one named provider; empty uses the failover
	// order.
	Mailer string

	From    *email.Address
	ReplyTo *email.Address
	To      []email.Address
	CC      []email.Address
	BCC     []email.Address

	Subject string

	// Content sources, mutually exclusive by builder precedence. The engine
	// stores whichever one the builder resolved to.
	TemplateName string
	ViewRef      string
	ViewData     map[string]any
	HTMLBody     string

	Placeholders map[string]string
	Headers      map[string]string
	Attachments  []email.Descriptor

	LastError     string
	RetryAttempts int

	ParentID         *int64
	OccurrenceNumber int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the record spawns follow-up occurrences.
func (e *Email) IsRecurring() bool {
	return e.Frequency != ""
}

// Expired reports whether the record is past its hard cutoff at now.
func (e *Email) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// NextOccurrence builds the child record for a recurring email: a copy of the
// parent with fresh identity and delivery state, due at next.
func (e *Email) NextOccurrence(next time.Time) *Email {
	child := &Email{
		UUID:             uuid.NewString(),
		Status:           StatusPending,
		ScheduledAt:      next,
		ExpiresAt:        e.ExpiresAt,
		Frequency:        e.Frequency,
		FrequencyOptions: e.FrequencyOptions,
		Conditions:       e.Conditions,
		Mailer:           e.Mailer,
		From:             e.From,
		ReplyTo:          e.ReplyTo,
		To:               e.To,
		CC:               e.CC,
		BCC:              e.BCC,
		Subject:          e.Subject,
		TemplateName:     e.TemplateName,
		ViewRef:          e.ViewRef,
		ViewData:         e.ViewData,
		HTMLBody:         e.HTMLBody,
		Placeholders:     e.Placeholders,
		Headers:          e.Headers,
		Attachments:      e.Attachments,
		ParentID:         &e.ID,
		OccurrenceNumber: e.OccurrenceNumber + 1,
	}
	return child
}
