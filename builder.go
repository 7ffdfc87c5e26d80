package mailcraft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailcraft/mailcraft/pkg/abtest"
	"github.com/mailcraft/mailcraft/pkg/email"
	"github.com/mailcraft/mailcraft/pkg/schedule"
	"github.com/mailcraft/mailcraft/pkg/template"
)

// Builder composes one message through a fluent chain and ends in a
// terminal operation: Send, Queue, SaveScheduled, or Preview. Terminal
// operations reset the builder, so one Builder can compose messages
// back-to-back; a Builder is not safe for concurrent use.
type Builder struct {
	client *Client
	proc   *template.Processor
	attach *email.AttachmentManager

	mailer  string
	from    *email.Address
	replyTo *email.Address
	to      []email.Address
	cc      []email.Address
	bcc     []email.Address
	headers map[string]string

	viewRef  string
	viewData map[string]any

	abVariantID *int64

	scheduleAt *time.Time
	expiresAt  *time.Time
	frequency  schedule.Frequency
	freqOpts   schedule.FrequencyOptions
	conditions []schedule.Condition

	errs []error
}

func newBuilder(c *Client) *Builder {
	return &Builder{
		client: c,
		proc:   template.NewProcessor(c.templates, template.WithLogger(c.logger)),
		attach: email.NewAttachmentManager(
			email.WithBlobOpener(c.opener),
			email.WithAttachmentLogger(c.logger),
		),
		headers: make(map[string]string),
	}
}

// To adds recipients. Accepted shapes follow email.NormalizeRecipients:
// a string (possibly comma-separated), []string, map of address to name,
// or []email.Address.
func (b *Builder) To(recipients any) *Builder {
	b.to = b.appendRecipients(b.to, recipients)
	return b
}

// CC adds carbon-copy recipients.
func (b *Builder) CC(recipients any) *Builder {
	b.cc = b.appendRecipients(b.cc, recipients)
	return b
}

// BCC adds blind carbon-copy recipients.
func (b *Builder) BCC(recipients any) *Builder {
	b.bcc = b.appendRecipients(b.bcc, recipients)
	return b
}

func (b *Builder) appendRecipients(dst []email.Address, input any) []email.Address {
	addrs, err := email.NormalizeRecipients(input)
	if err != nil {
		b.errs = append(b.errs, err)
		return dst
	}
	return append(dst, addrs...)
}

// From sets the sender. An optional display name may follow the address.
func (b *Builder) From(address string, name ...string) *Builder {
	addr := email.Address{Address: address}
	if len(name) > 0 {
		addr.Name = name[0]
	}
	b.from = &addr
	return b
}

// ReplyTo sets the reply-to address.
func (b *Builder) ReplyTo(address string, name ...string) *Builder {
	addr := email.Address{Address: address}
	if len(name) > 0 {
		addr.Name = name[0]
	}
	b.replyTo = &addr
	return b
}

// Subject sets an explicit subject. It wins over a template's subject.
func (b *Builder) Subject(subject string) *Builder {
	b.proc.SetDirectSubject(subject)
	return b
}

// Template selects a named database template as the content source,
// clearing any direct HTML or view selected earlier.
func (b *Builder) Template(name string) *Builder {
	b.proc.SetTemplateName(name)
	b.viewRef = ""
	b.viewData = nil
	return b
}

// HTML sets raw HTML as the body, optionally with placeholder values. It
// clears any template or view selected earlier.
func (b *Builder) HTML(html string, placeholders ...map[string]string) *Builder {
	b.proc.SetDirectHTML(html)
	b.viewRef = ""
	b.viewData = nil
	for _, p := range placeholders {
		b.proc.AddPlaceholders(p)
	}
	return b
}

// View selects a markdown view as the content source. Views take precedence
// over templates and direct HTML.
func (b *Builder) View(ref string, data map[string]any) *Builder {
	b.viewRef = ref
	b.viewData = data
	return b
}

// ABVariant applies an A/B test variant's content and attributes the send to
// it, so the variant's sent, open, and click counters accumulate from this
// message.
func (b *Builder) ABVariant(v abtest.Variant) *Builder {
	if v.Subject != "" {
		b.proc.SetDirectSubject(v.Subject)
	}
	if v.HTMLBody != "" {
		b.proc.SetDirectHTML(v.HTMLBody)
		b.viewRef = ""
		b.viewData = nil
	}
	id := v.ID
	b.abVariantID = &id
	return b
}

// Placeholders merges values into the placeholder map.
func (b *Builder) Placeholders(values map[string]string) *Builder {
	b.proc.AddPlaceholders(values)
	return b
}

// Placeholder sets a single placeholder value.
func (b *Builder) Placeholder(key, value string) *Builder {
	b.proc.AddPlaceholders(map[string]string{key: value})
	return b
}

// Header sets a custom message header.
func (b *Builder) Header(key, value string) *Builder {
	b.headers[key] = value
	return b
}

// Attach registers a file-path attachment.
func (b *Builder) Attach(path string) *Builder {
	b.attach.AddFile(path)
	return b
}

// AttachData registers raw bytes as a named attachment.
func (b *Builder) AttachData(data []byte, name string) *Builder {
	b.attach.AddData(data, name)
	return b
}

// AttachFromStorage registers a storage-disk attachment resolved at send
// time.
func (b *Builder) AttachFromStorage(disk, key, name string) *Builder {
	b.attach.AddFromStorage(disk, key, name)
	return b
}

// Mailer pins delivery to one named provider, bypassing failover.
func (b *Builder) Mailer(name string) *Builder {
	b.mailer = name
	return b
}

// ScheduleAt defers delivery to t. A Send after ScheduleAt with a future
// time persists the message instead of delivering it.
func (b *Builder) ScheduleAt(t time.Time) *Builder {
	b.scheduleAt = &t
	return b
}

// ExpiresAt sets a hard cutoff after which the scheduled message is
// cancelled instead of sent.
func (b *Builder) ExpiresAt(t time.Time) *Builder {
	b.expiresAt = &t
	return b
}

// Daily makes the schedule recur every day.
func (b *Builder) Daily() *Builder {
	b.frequency = schedule.FrequencyDaily
	return b
}

// Weekly makes the schedule recur every week, optionally pinned to a
// weekday.
func (b *Builder) Weekly(day ...time.Weekday) *Builder {
	b.frequency = schedule.FrequencyWeekly
	if len(day) > 0 {
		b.freqOpts.DayOfWeek = &day[0]
	}
	return b
}

// Monthly makes the schedule recur every month, optionally pinned to a day
// of the month (clamped to the target month's length).
func (b *Builder) Monthly(day ...int) *Builder {
	b.frequency = schedule.FrequencyMonthly
	if len(day) > 0 {
		b.freqOpts.DayOfMonth = &day[0]
	}
	return b
}

// Every makes the schedule recur on a custom interval.
func (b *Builder) Every(interval int, unit schedule.IntervalUnit) *Builder {
	b.frequency = schedule.FrequencyCustom
	b.freqOpts.Interval = interval
	b.freqOpts.Unit = unit
	return b
}

// MaxOccurrences caps the recurrence chain length.
func (b *Builder) MaxOccurrences(n int) *Builder {
	b.freqOpts.MaxOccurrences = n
	return b
}

// When adds a gating condition evaluated at send time. All conditions must
// pass; a failing condition defers the send to the next batch pass.
func (b *Builder) When(c schedule.Condition) *Builder {
	b.conditions = append(b.conditions, c)
	return b
}

// WhenCallback gates the send on a named in-process callback.
func (b *Builder) WhenCallback(name string) *Builder {
	return b.When(schedule.Condition{Type: schedule.ConditionCallback, Callback: name})
}

// WhenExists gates the send on a database existence check.
func (b *Builder) WhenExists(table string, where map[string]any) *Builder {
	return b.When(schedule.Condition{Type: schedule.ConditionDatabase, Table: table, Where: where})
}

// WhenBetween gates the send on a daily time-of-day window in "15:04"
// format. Windows may wrap midnight.
func (b *Builder) WhenBetween(start, end string) *Builder {
	return b.When(schedule.Condition{Type: schedule.ConditionTime, StartTime: start, EndTime: end})
}

// Send delivers the message now, unless a future schedule time is set, in
// which case the message is persisted for the scheduler instead. The
// builder is reset either way.
func (b *Builder) Send(ctx context.Context) error {
	if b.scheduleAt != nil && b.scheduleAt.After(b.client.now()) {
		_, err := b.SaveScheduled(ctx)
		return err
	}
	defer b.Reset()

	log, err := b.resolve(ctx)
	if err != nil {
		return err
	}
	if err := b.client.createLog(ctx, log); err != nil {
		return err
	}
	return b.client.deliverLog(ctx, log)
}

// Queue persists the fully-resolved message as a send log and hands it to
// the background queue. The builder is reset.
func (b *Builder) Queue(ctx context.Context) error {
	defer b.Reset()

	if b.client.enqueuer == nil || b.client.logs == nil {
		return errors.New("mailcraft: queueing requires a log store and an enqueuer")
	}

	log, err := b.resolve(ctx)
	if err != nil {
		return err
	}
	if err := b.client.logs.CreateLog(ctx, log); err != nil {
		return err
	}
	return b.client.enqueuer.EnqueueSend(ctx, log.UUID)
}

// SaveScheduled persists the message for deferred delivery and returns the
// stored record, so callers can inspect its UUID and due time. Content
// sources are stored unresolved, so templates and views are evaluated at
// send time, not at scheduling time. The builder is reset on success and on
// every failure past validation.
func (b *Builder) SaveScheduled(ctx context.Context) (*schedule.Email, error) {
	if err := b.buildErr(); err != nil {
		return nil, err
	}
	if b.scheduleAt == nil {
		return nil, ErrScheduleRequired
	}
	if len(b.to) == 0 && b.proc.TemplateName() == "" {
		return nil, ErrNoRecipients
	}
	if b.client.schedules == nil {
		return nil, errors.New("mailcraft: scheduling requires a schedule store")
	}
	defer b.Reset()

	rec := &schedule.Email{
		UUID:             uuid.NewString(),
		Status:           schedule.StatusPending,
		ScheduledAt:      *b.scheduleAt,
		ExpiresAt:        b.expiresAt,
		Frequency:        b.frequency,
		FrequencyOptions: b.freqOpts,
		Conditions:       b.conditions,
		Mailer:           b.mailer,
		From:             b.from,
		ReplyTo:          b.replyTo,
		To:               b.to,
		CC:               b.cc,
		BCC:              b.bcc,
		Placeholders:     b.proc.Placeholders(),
		Headers:          b.headers,
		Attachments:      b.attach.Descriptors(),
		OccurrenceNumber: 1,
	}

	if b.viewRef != "" {
		rec.ViewRef = b.viewRef
		rec.ViewData = b.viewData
	} else if name := b.proc.TemplateName(); name != "" {
		rec.TemplateName = name
	} else {
		processed, err := b.proc.Process(ctx)
		if err != nil {
			return nil, err
		}
		rec.Subject = processed.Subject
		rec.HTMLBody = processed.HTMLBody
	}
	if subj := b.proc.DirectSubject(); subj != "" {
		rec.Subject = subj
	}

	if rec.Frequency != "" && !rec.Frequency.Valid() {
		return nil, fmt.Errorf("mailcraft: invalid frequency %q", rec.Frequency)
	}

	// Recurring chains without an explicit cutoff inherit the configured
	// default expiry, so unattended campaigns cannot run forever.
	if rec.Frequency != "" && rec.ExpiresAt == nil {
		if days := b.client.cfg.Schedule.Recurrence.DefaultExpiryDays; days > 0 {
			expires := rec.ScheduledAt.AddDate(0, 0, days)
			rec.ExpiresAt = &expires
		}
	}

	if err := b.client.schedules.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Preview resolves the message content without tracking, logging, or
// delivery. The builder is not reset, so a previewed message can still be
// sent.
func (b *Builder) Preview(ctx context.Context) (*email.Message, error) {
	if err := b.buildErr(); err != nil {
		return nil, err
	}

	log, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &email.Message{
		Headers: log.Headers,
		Subject: log.Subject,
		HTML:    log.HTMLBody,
		Text:    log.TextBody,
		From:    log.From,
		ReplyTo: log.ReplyTo,
		To:      log.To,
		CC:      log.CC,
		BCC:     log.BCC,
	}, nil
}

// Reset returns the builder to its initial state so it can compose the next
// message.
func (b *Builder) Reset() {
	b.proc.Reset()
	b.attach.Reset()
	b.mailer = ""
	b.from = nil
	b.replyTo = nil
	b.to = nil
	b.cc = nil
	b.bcc = nil
	b.headers = make(map[string]string)
	b.viewRef = ""
	b.viewData = nil
	b.abVariantID = nil
	b.scheduleAt = nil
	b.expiresAt = nil
	b.frequency = ""
	b.freqOpts = schedule.FrequencyOptions{}
	b.conditions = nil
	b.errs = nil
}

func (b *Builder) buildErr() error {
	if len(b.errs) == 0 {
		return nil
	}
	return errors.Join(b.errs...)
}

// resolve produces the send log snapshot for an immediate or queued send.
func (b *Builder) resolve(ctx context.Context) (*Log, error) {
	if err := b.buildErr(); err != nil {
		return nil, err
	}
	log, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(log.To) == 0 {
		return nil, ErrNoRecipients
	}
	return log, nil
}

// snapshot resolves content through the configured precedence (view, then
// direct HTML, then template) into a Log record. Template defaults fill
// addressing gaps.
func (b *Builder) snapshot(ctx context.Context) (*Log, error) {
	log := &Log{
		UUID:        uuid.NewString(),
		Status:      LogPending,
		Mailer:      b.mailer,
		From:        b.from,
		ReplyTo:     b.replyTo,
		To:          b.to,
		CC:          b.cc,
		BCC:         b.bcc,
		Headers:     b.headers,
		Attachments: b.attach.Descriptors(),
		ABVariantID: b.abVariantID,
	}

	if b.viewRef != "" {
		if b.client.views == nil {
			return nil, fmt.Errorf("mailcraft: view %q selected but no renderer is configured", b.viewRef)
		}
		result, err := b.client.views.Render(b.viewRef, b.viewData)
		if err != nil {
			return nil, err
		}
		log.Subject = b.proc.DirectSubject()
		if log.Subject == "" {
			log.Subject = result.Subject()
		}
		log.HTMLBody = result.HTML
		log.TextBody = result.Text
		log.Placeholders = b.proc.Placeholders()
		return log, nil
	}

	processed, err := b.proc.Process(ctx)
	if err != nil {
		return nil, err
	}
	log.Subject = processed.Subject
	log.HTMLBody = processed.HTMLBody
	log.Placeholders = b.proc.Placeholders()
	applyTemplateDefaults(log, processed.EmailConfig)
	return log, nil
}
