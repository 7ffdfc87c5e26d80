package template

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mailcraft/mailcraft/pkg/cache"
	"github.com/mailcraft/mailcraft/pkg/email"
)

// Source loads the active version of a named template. Implemented by the
// storage layer; the processor only ever asks for the active version.
type Source interface {
	// FindActive returns the active version of the named template.
	// It returns ErrTemplateNotFound or ErrNoActiveVersion as appropriate.
	FindActive(ctx context.Context, name string) (*Version, error)
}

// Version is one stored revision of a named template. At most one version per
// template is active at a time; readers treat the first active version found
// as authoritative.
type Version struct {
	TemplateName string            `json:"template_name"`
	Version      int               `json:"version"`
	Subject      string            `json:"subject"`
	HTMLBody     string            `json:"html_body"`
	TextBody     string            `json:"text_body,omitempty"`
	Placeholders map[string]string `json:"placeholders,omitempty"`

	// Optional default email configuration carried by the version. Recipient
	// fields are stored in whatever legacy shape the writer used (JSON array,
	// comma-separated string, or keyed map) and normalized on extraction.
	FromEmail    string `json:"from_email,omitempty"`
	FromName     string `json:"from_name,omitempty"`
	ToEmail      string `json:"to_email,omitempty"`
	CCEmail      string `json:"cc_email,omitempty"`
	BCCEmail     string `json:"bcc_email,omitempty"`
	ReplyToEmail string `json:"reply_to_email,omitempty"`
	ReplyToName  string `json:"reply_to_name,omitempty"`
}

// EmailConfig is the sanitized default email configuration extracted from a
// template version. Only syntactically valid addresses survive extraction.
type EmailConfig struct {
	From    *email.Address
	ReplyTo *email.Address
	To      []email.Address
	CC      []email.Address
	BCC     []email.Address
}

// IsZero reports whether the config carries nothing.
func (c EmailConfig) IsZero() bool {
	return c.From == nil && c.ReplyTo == nil && len(c.To) == 0 && len(c.CC) == 0 && len(c.BCC) == 0
}

// ExtractEmailConfig normalizes and validates the version's default email
// configuration. Invalid addresses are dropped with a warning; extraction
// never fails.
func (v *Version) ExtractEmailConfig(logger *slog.Logger) EmailConfig {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var cfg EmailConfig
	if v.FromEmail != "" {
		from := email.Address{Address: v.FromEmail, Name: v.FromName}
		if from.Validate() == nil {
			cfg.From = &from
		} else {
			logger.Warn("template from address invalid, dropped",
				slog.String("template", v.TemplateName),
				slog.String("address", v.FromEmail),
			)
		}
	}
	if v.ReplyToEmail != "" {
		replyTo := email.Address{Address: v.ReplyToEmail, Name: v.ReplyToName}
		if replyTo.Validate() == nil {
			cfg.ReplyTo = &replyTo
		} else {
			logger.Warn("template reply-to address invalid, dropped",
				slog.String("template", v.TemplateName),
				slog.String("address", v.ReplyToEmail),
			)
		}
	}

	cfg.To = v.sanitizeRecipientField(logger, "to", v.ToEmail)
	cfg.CC = v.sanitizeRecipientField(logger, "cc", v.CCEmail)
	cfg.BCC = v.sanitizeRecipientField(logger, "bcc", v.BCCEmail)
	return cfg
}

func (v *Version) sanitizeRecipientField(logger *slog.Logger, field, stored string) []email.Address {
	addrs, err := decodeStoredRecipients(stored)
	if err != nil {
		logger.Warn("template recipient field unreadable, dropped",
			slog.String("template", v.TemplateName),
			slog.String("field", field),
			slog.Any("error", err),
		)
		return nil
	}

	valid, dropped := email.SanitizeAddresses(addrs)
	for _, addr := range dropped {
		logger.Warn("template recipient address invalid, dropped",
			slog.String("template", v.TemplateName),
			slog.String("field", field),
			slog.String("address", addr),
		)
	}
	return valid
}

// decodeStoredRecipients accepts the three historical storage forms: a JSON
// array of {address,name} objects, a JSON keyed map, or a plain
// comma-separated string.
func decodeStoredRecipients(stored string) ([]email.Address, error) {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" {
		return nil, nil
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		return email.DecodeRecipients([]byte(trimmed))
	}
	return email.NormalizeRecipients(trimmed)
}

// CachedSource decorates a Source with a TTL cache so batch passes do not
// re-read hot templates on every send. Lookup failures are not cached.
type CachedSource struct {
	src   Source
	cache cache.Cache[*Version]
	ttl   time.Duration
}

// NewCachedSource wraps src with the given cache. A non-positive ttl defaults
// to one minute.
func NewCachedSource(src Source, c cache.Cache[*Version], ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSource{src: src, cache: c, ttl: ttl}
}

func (s *CachedSource) FindActive(ctx context.Context, name string) (*Version, error) {
	return cache.GetOrSet(ctx, s.cache, "template:"+name, func(ctx context.Context) (*Version, time.Duration, error) {
		v, err := s.src.FindActive(ctx, name)
		if err != nil {
			return nil, 0, err
		}
		return v, s.ttl, nil
	})
}

// Invalidate drops the cached entry for name, forcing the next lookup to hit
// the underlying source. Call after publishing a new active version.
func (s *CachedSource) Invalidate(ctx context.Context, name string) error {
	return s.cache.Delete(ctx, "template:"+name)
}
