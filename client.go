package mailcraft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mailcraft/mailcraft/pkg/abtest"
	"github.com/mailcraft/mailcraft/pkg/email"
	"github.com/mailcraft/mailcraft/pkg/schedule"
	"github.com/mailcraft/mailcraft/pkg/sender"
	"github.com/mailcraft/mailcraft/pkg/template"
	"github.com/mailcraft/mailcraft/pkg/tracking"
	"github.com/mailcraft/mailcraft/pkg/view"
)

// Enqueuer hands a persisted send log off to the background queue.
// Implemented by pkg/queue.
type Enqueuer interface {
	EnqueueSend(ctx context.Context, logUUID string) error
}

// Client wires the subsystems together: content resolution, tracking,
// provider failover, logging, and scheduling. It implements the delivery
// callbacks the scheduling engine and the queue need, so one Client serves
// immediate, queued, and scheduled sends alike.
type Client struct {
	logger    *slog.Logger
	cfg       Config
	failover  *sender.Failover
	templates template.Source
	views     *view.Renderer
	rewriter  *tracking.Rewriter
	logs      LogStore
	schedules schedule.Store
	opener    email.BlobOpener
	enqueuer  Enqueuer
	abtests   abtest.Store
	now       func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger used across the send pipeline.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTemplates sets the database template source.
func WithTemplates(src template.Source) ClientOption {
	return func(c *Client) { c.templates = src }
}

// WithViews sets the markdown view renderer.
func WithViews(r *view.Renderer) ClientOption {
	return func(c *Client) { c.views = r }
}

// WithRewriter enables click and open tracking on outgoing HTML.
func WithRewriter(r *tracking.Rewriter) ClientOption {
	return func(c *Client) { c.rewriter = r }
}

// WithLogStore sets the send log store. Without one, sends are not logged
// and queued delivery is unavailable.
func WithLogStore(s LogStore) ClientOption {
	return func(c *Client) { c.logs = s }
}

// WithScheduleStore sets the scheduled email store, enabling SaveScheduled.
func WithScheduleStore(s schedule.Store) ClientOption {
	return func(c *Client) { c.schedules = s }
}

// WithBlobOpener sets the storage backend for storage-disk attachments.
func WithBlobOpener(o email.BlobOpener) ClientOption {
	return func(c *Client) { c.opener = o }
}

// WithABTests sets the A/B test store, enabling Builder.ABVariant sends to
// count toward their variant.
func WithABTests(s abtest.Store) ClientOption {
	return func(c *Client) { c.abtests = s }
}

// WithEnqueuer sets the background queue used by Builder.Queue.
func WithEnqueuer(e Enqueuer) ClientOption {
	return func(c *Client) { c.enqueuer = e }
}

// WithClientClock overrides the time source. Used in tests.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a Client delivering through failover. The configuration
// is validated up front so misconfiguration surfaces at startup, not on the
// first send.
func NewClient(cfg Config, failover *sender.Failover, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		logger:   slog.New(slog.DiscardHandler),
		cfg:      cfg,
		failover: failover,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewEmail starts composing one message.
func (c *Client) NewEmail() *Builder {
	return newBuilder(c)
}

// UseEnqueuer wires the background queue after construction. The queue
// worker dispatches through the client, so the two are built in sequence
// and joined here.
func (c *Client) UseEnqueuer(e Enqueuer) {
	c.enqueuer = e
}

// Deliver executes one scheduled email record: content is resolved from
// whatever source the record stored, a send log is written, tracking is
// applied, and the message goes out through the pinned mailer or the
// failover order. The returned error drives the engine's retry handling.
func (c *Client) Deliver(ctx context.Context, rec *schedule.Email) error {
	log, err := c.resolveScheduled(ctx, rec)
	if err != nil {
		return err
	}

	if err := c.createLog(ctx, log); err != nil {
		return err
	}
	return c.deliverLog(ctx, log)
}

// DispatchQueued delivers a previously persisted send log. Called by the
// queue worker; the snapshot in the log is the full message, so nothing is
// re-resolved.
func (c *Client) DispatchQueued(ctx context.Context, logUUID string) error {
	if c.logs == nil {
		return ErrLogNotFound
	}
	log, err := c.logs.FindLogByUUID(ctx, logUUID)
	if err != nil {
		return err
	}
	return c.deliverLog(ctx, log)
}

// resolveScheduled turns a stored scheduling record into a send log
// snapshot, applying the same content precedence the builder uses.
func (c *Client) resolveScheduled(ctx context.Context, rec *schedule.Email) (*Log, error) {
	log := &Log{
		UUID:             uuid.NewString(),
		Status:           LogPending,
		Mailer:           rec.Mailer,
		From:             rec.From,
		ReplyTo:          rec.ReplyTo,
		To:               rec.To,
		CC:               rec.CC,
		BCC:              rec.BCC,
		Headers:          rec.Headers,
		Placeholders:     rec.Placeholders,
		Attachments:      rec.Attachments,
		ScheduledEmailID: &rec.ID,
	}

	if rec.ViewRef != "" {
		if c.views == nil {
			return nil, fmt.Errorf("mailcraft: record %s uses view %q but no renderer is configured", rec.UUID, rec.ViewRef)
		}
		result, err := c.views.Render(rec.ViewRef, rec.ViewData)
		if err != nil {
			return nil, err
		}
		log.Subject = rec.Subject
		if log.Subject == "" {
			log.Subject = result.Subject()
		}
		log.HTMLBody = result.HTML
		log.TextBody = result.Text
		return log, nil
	}

	proc := template.NewProcessor(c.templates, template.WithLogger(c.logger))
	if rec.TemplateName != "" {
		proc.SetTemplateName(rec.TemplateName)
	}
	if rec.HTMLBody != "" {
		proc.SetDirectHTML(rec.HTMLBody)
	}
	if rec.Subject != "" {
		proc.SetDirectSubject(rec.Subject)
	}
	proc.AddPlaceholders(rec.Placeholders)

	processed, err := proc.Process(ctx)
	if err != nil {
		return nil, err
	}
	log.Subject = processed.Subject
	log.HTMLBody = processed.HTMLBody
	log.Placeholders = proc.Placeholders()
	applyTemplateDefaults(log, processed.EmailConfig)
	return log, nil
}

// applyTemplateDefaults fills addressing gaps from the template's stored
// email configuration. Explicit values always win.
func applyTemplateDefaults(log *Log, cfg template.EmailConfig) {
	if log.From == nil {
		log.From = cfg.From
	}
	if log.ReplyTo == nil {
		log.ReplyTo = cfg.ReplyTo
	}
	if len(log.To) == 0 {
		log.To = cfg.To
	}
	if len(log.CC) == 0 {
		log.CC = cfg.CC
	}
	if len(log.BCC) == 0 {
		log.BCC = cfg.BCC
	}
}

// createLog persists the snapshot when a log store is configured. Without
// one the log still exists in memory so tracking and delivery can proceed,
// but click resolution will skip.
func (c *Client) createLog(ctx context.Context, log *Log) error {
	if c.logs == nil {
		return nil
	}
	return c.logs.CreateLog(ctx, log)
}

// deliverLog sends one snapshot: tracking rewrite, attachment resolution,
// transport handoff, and final status update. A tracking failure degrades
// to the untracked body rather than blocking the send.
func (c *Client) deliverLog(ctx context.Context, log *Log) error {
	c.updateLogStatus(ctx, log, LogSending, "")

	htmlBody := log.HTMLBody
	if c.rewriter != nil && htmlBody != "" {
		rewritten, err := c.rewriter.Rewrite(ctx, htmlBody, log.UUID)
		if err != nil {
			c.logger.Warn("tracking rewrite failed, sending untracked body",
				slog.String("log_uuid", log.UUID),
				slog.Any("error", err),
			)
		} else {
			htmlBody = rewritten
		}
	}

	manager := email.NewAttachmentManager(
		email.WithBlobOpener(c.opener),
		email.WithAttachmentLogger(c.logger),
	)
	manager.Restore(log.Attachments)
	attachments, err := manager.Resolve(ctx)
	if err != nil {
		c.updateLogStatus(ctx, log, LogFailed, err.Error())
		return err
	}

	msg := &email.Message{
		Headers:     log.Headers,
		Subject:     log.Subject,
		HTML:        htmlBody,
		Text:        log.TextBody,
		From:        log.From,
		ReplyTo:     log.ReplyTo,
		To:          log.To,
		CC:          log.CC,
		BCC:         log.BCC,
		Attachments: attachments,
	}
	if !msg.HasRecipients() {
		c.updateLogStatus(ctx, log, LogFailed, ErrNoRecipients.Error())
		return ErrNoRecipients
	}

	if log.Mailer != "" {
		err = c.failover.SendVia(ctx, log.Mailer, msg)
	} else {
		err = c.failover.Send(ctx, msg)
	}
	if err != nil {
		c.updateLogStatus(ctx, log, LogFailed, err.Error())
		return err
	}

	c.updateLogStatus(ctx, log, LogSent, "")

	if log.ABVariantID != nil && c.abtests != nil {
		if err := c.abtests.IncrementSent(ctx, *log.ABVariantID); err != nil {
			c.logger.Warn("variant sent counter not recorded",
				slog.Int64("variant_id", *log.ABVariantID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// updateLogStatus persists the status transition. Persistence failures are
// logged but never fail the send itself.
func (c *Client) updateLogStatus(ctx context.Context, log *Log, status LogStatus, errMsg string) {
	log.Status = status
	log.Error = errMsg
	if c.logs == nil {
		return
	}
	if err := c.logs.UpdateLogStatus(ctx, log.UUID, status, errMsg); err != nil {
		c.logger.Error("updating send log failed",
			slog.String("log_uuid", log.UUID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
	}
}
