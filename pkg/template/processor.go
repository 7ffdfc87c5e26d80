package template

import (
	"context"
	"errors"
	"log/slog"
	"maps"
)

// Processed is the outcome of content resolution: the final subject and HTML
// body after precedence rules and placeholder substitution.
type Processed struct {
	Subject            string
	HTMLBody           string
	IsFromDatabase     bool
	LoadedTemplateName string
	EmailConfig        EmailConfig
}

// Processor accumulates content sources and placeholders for one message and
// resolves them into a Processed result.
//
// Setter precedence (last write wins):
//   - SetTemplateName clears direct HTML and direct subject.
//   - SetDirectHTML clears a previously selected template name.
//   - SetDirectSubject always overrides the template's subject.
type Processor struct {
	logger        *slog.Logger
	source        Source
	templateName  string
	directSubject *string
	directHTML    *string
	placeholders  map[string]string
	patterns      []Pattern
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a Processor reading named templates from source.
// A nil source is allowed when only direct content is used.
func NewProcessor(source Source, opts ...ProcessorOption) *Processor {
	p := &Processor{
		logger:       slog.New(slog.DiscardHandler),
		source:       source,
		placeholders: make(map[string]string),
		patterns:     defaultPatterns(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetTemplateName selects a named database template as the content source,
// clearing any direct content set earlier.
func (p *Processor) SetTemplateName(name string) *Processor {
	p.templateName = name
	p.directHTML = nil
	p.directSubject = nil
	return p
}

// SetDirectHTML sets raw HTML as the body source, clearing any selected
// template.
func (p *Processor) SetDirectHTML(html string) *Processor {
	p.directHTML = &html
	p.templateName = ""
	return p
}

// SetDirectSubject sets an explicit subject that wins over a template's
// subject.
func (p *Processor) SetDirectSubject(subject string) *Processor {
	p.directSubject = &subject
	return p
}

// AddPlaceholders merges values into the placeholder map; on conflict the new
// value wins.
func (p *Processor) AddPlaceholders(values map[string]string) *Processor {
	maps.Copy(p.placeholders, values)
	return p
}

// Placeholders returns the current merged placeholder map.
func (p *Processor) Placeholders() map[string]string {
	out := make(map[string]string, len(p.placeholders))
	maps.Copy(out, p.placeholders)
	return out
}

// RegisterPattern appends a custom placeholder syntax. Panics raised by a
// registered callback propagate: they indicate programmer error, not input
// error.
func (p *Processor) RegisterPattern(pattern Pattern) *Processor {
	p.patterns = append(p.patterns, pattern)
	return p
}

// TemplateName returns the currently selected template name, if any.
func (p *Processor) TemplateName() string {
	return p.templateName
}

// DirectSubject returns the explicitly set subject with placeholders
// applied, or empty when none was set.
func (p *Processor) DirectSubject() string {
	if p.directSubject == nil {
		return ""
	}
	return apply(*p.directSubject, p.placeholders, p.patterns)
}

// Process resolves the final content. A selected template that cannot be
// loaded degrades to whatever direct content exists; the template's own
// placeholders act as defaults under explicitly supplied ones.
func (p *Processor) Process(ctx context.Context) (Processed, error) {
	var (
		subject string
		body    string
		result  Processed
	)
	if p.directSubject != nil {
		subject = *p.directSubject
	}
	if p.directHTML != nil {
		body = *p.directHTML
	}

	if p.templateName != "" && p.source != nil {
		version, err := p.source.FindActive(ctx, p.templateName)
		switch {
		case err == nil:
			result.IsFromDatabase = true
			result.LoadedTemplateName = p.templateName
			if p.directSubject == nil {
				subject = version.Subject
			}
			body = version.HTMLBody
			result.EmailConfig = version.ExtractEmailConfig(p.logger)

			// Template placeholders are defaults; explicit ones override.
			merged := make(map[string]string, len(version.Placeholders)+len(p.placeholders))
			maps.Copy(merged, version.Placeholders)
			maps.Copy(merged, p.placeholders)
			p.placeholders = merged

		case errors.Is(err, ErrTemplateNotFound):
			p.logger.Warn("email template not found", slog.String("template", p.templateName))

		case errors.Is(err, ErrNoActiveVersion):
			p.logger.Warn("email template has no active version", slog.String("template", p.templateName))

		default:
			p.logger.Error("loading email template failed",
				slog.String("template", p.templateName),
				slog.Any("error", err),
			)
		}
	}

	result.Subject = apply(subject, p.placeholders, p.patterns)
	result.HTMLBody = apply(body, p.placeholders, p.patterns)
	return result, nil
}

// Reset clears accumulated state while keeping registered patterns.
func (p *Processor) Reset() {
	p.templateName = ""
	p.directSubject = nil
	p.directHTML = nil
	p.placeholders = make(map[string]string)
}
