package sender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mailcraft/mailcraft/pkg/email"
)

// Hooks are optional callbacks fired around one delivery. Sending and Failed
// are send-level: they fire at most once per Send or SendVia, regardless of
// how many providers were tried. AttemptFailed is provider-level and fires
// per failed attempt. Nil hooks are skipped; hooks run synchronously on the
// sending goroutine.
type Hooks struct {
	// Sending fires once when delivery starts, before the first provider
	// attempt.
	Sending func(msg *email.Message)

	// Sent fires after successful delivery, with the provider that accepted
	// the message.
	Sent func(provider string, msg *email.Message)

	// AttemptFailed fires after each failed provider attempt, before the
	// next provider is tried.
	AttemptFailed func(provider string, msg *email.Message, err error)

	// Failed fires once when delivery is abandoned: the pinned provider
	// errored, or every provider in the order failed.
	Failed func(msg *email.Message, err error)
}

// Failover delivers through an ordered list of providers, stopping at the
// first success. It implements Provider itself, so a Failover can sit
// anywhere a single provider can.
type Failover struct {
	logger   *slog.Logger
	registry *Registry
	order    []string
	hooks    Hooks
}

// FailoverOption configures a Failover.
type FailoverOption func(*Failover)

// WithLogger sets the logger for per-attempt events.
func WithLogger(l *slog.Logger) FailoverOption {
	return func(f *Failover) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithHooks sets the delivery lifecycle callbacks.
func WithHooks(h Hooks) FailoverOption {
	return func(f *Failover) {
		f.hooks = h
	}
}

// NewFailover creates a Failover over the registry using the given provider
// order.
func NewFailover(registry *Registry, order []string, opts ...FailoverOption) *Failover {
	f := &Failover{
		logger:   slog.New(slog.DiscardHandler),
		registry: registry,
		order:    order,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Send walks the provider order and delivers through the first provider that
// succeeds. When every provider fails, the last error is joined with
// ErrAllProvidersFailed.
func (f *Failover) Send(ctx context.Context, msg *email.Message) error {
	if len(f.order) == 0 {
		return ErrNoProviders
	}
	if f.hooks.Sending != nil {
		f.hooks.Sending(msg)
	}

	var lastErr error
	for _, name := range f.order {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.attempt(ctx, name, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		f.logger.Warn("provider delivery failed, trying next",
			slog.String("provider", name),
			slog.Any("error", err),
		)
	}

	f.logger.Error("all providers failed",
		slog.Int("providers", len(f.order)),
		slog.Any("error", lastErr),
	)
	err := errors.Join(ErrAllProvidersFailed, lastErr)
	if f.hooks.Failed != nil {
		f.hooks.Failed(msg, err)
	}
	return err
}

// SendVia delivers through exactly the named provider, with no failover.
// Used when a message pins its mailer.
func (f *Failover) SendVia(ctx context.Context, provider string, msg *email.Message) error {
	if f.hooks.Sending != nil {
		f.hooks.Sending(msg)
	}
	if err := f.attempt(ctx, provider, msg); err != nil {
		if f.hooks.Failed != nil {
			f.hooks.Failed(msg, err)
		}
		return err
	}
	return nil
}

func (f *Failover) attempt(ctx context.Context, name string, msg *email.Message) error {
	p, err := f.registry.Get(name)
	if err != nil {
		if f.hooks.AttemptFailed != nil {
			f.hooks.AttemptFailed(name, msg, err)
		}
		return err
	}

	f.logger.Debug("attempting delivery", slog.String("provider", name))

	if err := p.Send(ctx, msg); err != nil {
		if f.hooks.AttemptFailed != nil {
			f.hooks.AttemptFailed(name, msg, err)
		}
		return err
	}

	if f.hooks.Sent != nil {
		f.hooks.Sent(name, msg)
	}
	return nil
}
