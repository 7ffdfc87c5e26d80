package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Deliverer turns a claimed record into an actual delivery: content
// resolution, tracking rewrite, and provider handoff. Implemented by the
// client layer so the engine stays a pure state machine.
type Deliverer interface {
	Deliver(ctx context.Context, rec *Email) error
}

// BatchOptions tune one ProcessBatch pass.
type BatchOptions struct {
	// BatchSize overrides the configured batch size when positive.
	BatchSize int

	// IncludeFailedRetries folds failed records with remaining retry budget
	// back into the pending queue before claiming.
	IncludeFailedRetries bool
}

// BatchStats summarizes one ProcessBatch pass.
type BatchStats struct {
	Claimed   int
	Sent      int
	Retried   int
	Failed    int
	Cancelled int
	Deferred  int
	Requeued  int
	Children  int
}

// Engine drives scheduled emails through their lifecycle.
type Engine struct {
	logger    *slog.Logger
	store     Store
	deliverer Deliverer
	evaluator *Evaluator
	backoff   Backoff
	cfg       Config
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvaluator sets the condition evaluator. Without one, records carrying
// conditions are deferred.
func WithEvaluator(ev *Evaluator) EngineOption {
	return func(e *Engine) { e.evaluator = ev }
}

// WithEngineClock overrides the time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates the scheduling engine.
func NewEngine(store Store, deliverer Deliverer, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		logger:    slog.New(slog.DiscardHandler),
		store:     store,
		deliverer: deliverer,
		evaluator: NewEvaluator(),
		backoff:   cfg.Backoff(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessBatch runs one pass: optionally fold retryable failures back in,
// claim due records, gate each through expiry and conditions, and attempt
// delivery. Per-record failures never abort the pass.
func (e *Engine) ProcessBatch(ctx context.Context, opts BatchOptions) (BatchStats, error) {
	var stats BatchStats

	batch := e.cfg.BatchSize
	if opts.BatchSize > 0 {
		batch = opts.BatchSize
	}

	if opts.IncludeFailedRetries && e.cfg.Retry.Enabled {
		requeued, err := e.requeueFailed(ctx, batch)
		if err != nil {
			return stats, err
		}
		stats.Requeued = requeued
	}

	claimed, err := e.store.ClaimDue(ctx, e.now(), batch)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(claimed)

	for _, rec := range claimed {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		e.processOne(ctx, rec, &stats)
	}
	return stats, nil
}

// requeueFailed resets failed records with retry budget left to pending, due
// after a fresh backoff delay.
func (e *Engine) requeueFailed(ctx context.Context, limit int) (int, error) {
	recs, err := e.store.FindDueRetryable(ctx, e.backoff.MaxAttempts, limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, rec := range recs {
		if err := rec.Transition(StatusPending); err != nil {
			e.logger.Error("failed record in unexpected state",
				slog.Int64("id", rec.ID),
				slog.Any("error", err),
			)
			continue
		}
		// RetryAttempts counts completed attempts, so the next retry is the
		// 0-based attempt one below it.
		rec.ScheduledAt = e.now().Add(e.backoff.Delay(rec.RetryAttempts - 1))

		if err := e.store.Update(ctx, rec); err != nil {
			e.logger.Error("requeueing failed record",
				slog.Int64("id", rec.ID),
				slog.Any("error", err),
			)
			continue
		}
		requeued++
	}
	return requeued, nil
}

func (e *Engine) processOne(ctx context.Context, rec *Email, stats *BatchStats) {
	now := e.now()

	if rec.Expired(now) {
		e.finish(ctx, rec, StatusCancelled, func(r *Email) {
			r.LastError = "expired before delivery"
		})
		stats.Cancelled++
		return
	}

	if len(rec.Conditions) > 0 && !e.evaluator.Evaluate(ctx, rec.Conditions) {
		// Not a failure: the record stays queued for a later pass.
		e.finish(ctx, rec, StatusPending, nil)
		stats.Deferred++
		return
	}

	if err := e.deliverer.Deliver(ctx, rec); err != nil {
		e.handleFailure(ctx, rec, err, stats)
		return
	}

	sentAt := e.now()
	e.finish(ctx, rec, StatusSent, func(r *Email) {
		r.SentAt = &sentAt
		r.LastError = ""
	})
	stats.Sent++
	e.logger.Info("scheduled email sent",
		slog.Int64("id", rec.ID),
		slog.String("uuid", rec.UUID),
	)

	if rec.IsRecurring() {
		child, err := e.CreateNextOccurrence(ctx, rec)
		if err != nil {
			e.logger.Error("creating next occurrence",
				slog.Int64("id", rec.ID),
				slog.Any("error", err),
			)
			return
		}
		if child != nil {
			stats.Children++
		}
	}
}

func (e *Engine) handleFailure(ctx context.Context, rec *Email, cause error, stats *BatchStats) {
	// The attempt that just failed, 0-based, drives the backoff: the first
	// failure reschedules after the base delay.
	attempt := rec.RetryAttempts
	rec.RetryAttempts++

	if e.cfg.Retry.Enabled && rec.RetryAttempts < e.backoff.MaxAttempts {
		delay := e.backoff.Delay(attempt)
		e.finish(ctx, rec, StatusPending, func(r *Email) {
			r.ScheduledAt = e.now().Add(delay)
			r.LastError = cause.Error()
		})
		stats.Retried++
		e.logger.Warn("delivery failed, retry scheduled",
			slog.Int64("id", rec.ID),
			slog.Int("attempt", rec.RetryAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", cause),
		)
		return
	}

	e.finish(ctx, rec, StatusFailed, func(r *Email) {
		r.LastError = cause.Error()
	})
	stats.Failed++
	e.logger.Error("delivery failed permanently",
		slog.Int64("id", rec.ID),
		slog.Int("attempts", rec.RetryAttempts),
		slog.Any("error", cause),
	)
}

// finish transitions the record and persists it. A failed status update is
// logged but not propagated: the send already happened (or was skipped) and
// rolling it back is not possible.
func (e *Engine) finish(ctx context.Context, rec *Email, to Status, mutate func(*Email)) {
	if err := rec.Transition(to); err != nil {
		e.logger.Error("illegal status transition",
			slog.Int64("id", rec.ID),
			slog.Any("error", err),
		)
		return
	}
	if mutate != nil {
		mutate(rec)
	}
	if err := e.store.Update(ctx, rec); err != nil {
		e.logger.Error("persisting status update",
			slog.Int64("id", rec.ID),
			slog.String("status", string(rec.Status)),
			slog.Any("error", err),
		)
	}
}

// CreateNextOccurrence spawns the follow-up record for a successfully sent
// recurring email. It returns nil without error when the chain ends: the
// frequency is disabled, the next time passes expiry, or the occurrence cap
// is reached.
func (e *Engine) CreateNextOccurrence(ctx context.Context, rec *Email) (*Email, error) {
	if !rec.IsRecurring() {
		return nil, nil
	}
	if !e.cfg.Recurrence.FrequencyEnabled(rec.Frequency) {
		e.logger.Debug("recurrence disabled for frequency",
			slog.String("frequency", string(rec.Frequency)))
		return nil, nil
	}

	last := e.now()
	if rec.SentAt != nil {
		last = *rec.SentAt
	}
	next, err := NextTime(rec.Frequency, rec.FrequencyOptions, last)
	if err != nil {
		return nil, err
	}

	if rec.ExpiresAt != nil && next.After(*rec.ExpiresAt) {
		e.logger.Info("recurrence chain expired",
			slog.Int64("id", rec.ID),
			slog.Time("next", next),
		)
		return nil, nil
	}

	maxOcc := rec.FrequencyOptions.MaxOccurrences
	if maxOcc == 0 {
		maxOcc = e.cfg.Recurrence.DefaultMaxOccurrences
	}
	if maxOcc > 0 {
		count, err := e.store.CountChain(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if count >= maxOcc {
			e.logger.Info("recurrence chain reached max occurrences",
				slog.Int64("id", rec.ID),
				slog.Int("max", maxOcc),
			)
			return nil, nil
		}
	}

	child := rec.NextOccurrence(next)
	if err := e.store.Create(ctx, child); err != nil {
		return nil, err
	}
	e.logger.Info("next occurrence created",
		slog.Int64("parent_id", rec.ID),
		slog.Int("occurrence", child.OccurrenceNumber),
		slog.Time("scheduled_at", next),
	)
	return child, nil
}

// ProcessRecurringBatch is the safety net for chains whose post-send
// occurrence creation was missed (e.g. a restart between send and chaining):
// it finds recently sent recurring records without a child and chains them.
func (e *Engine) ProcessRecurringBatch(ctx context.Context, since time.Time, limit int) (int, error) {
	if !e.cfg.Recurrence.AutoRegenerate {
		return 0, nil
	}
	if limit <= 0 {
		limit = e.cfg.BatchSize
	}

	recs, err := e.store.FindSentWithoutChild(ctx, since, limit)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		child, err := e.CreateNextOccurrence(ctx, rec)
		if err != nil {
			e.logger.Error("regenerating occurrence",
				slog.Int64("id", rec.ID),
				slog.Any("error", err),
			)
			continue
		}
		if child != nil {
			created++
		}
	}
	return created, nil
}

// CleanupStats summarizes one Cleanup pass.
type CleanupStats struct {
	Cancelled int64
	Failed    int64
}

// Cleanup cancels pending records past expiry and permanently fails pending
// records whose retry budget is exhausted.
func (e *Engine) Cleanup(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats

	cancelled, err := e.store.CancelExpired(ctx, e.now())
	if err != nil {
		return stats, err
	}
	stats.Cancelled = cancelled

	failed, err := e.store.FailExhausted(ctx, e.backoff.MaxAttempts)
	if err != nil {
		return stats, err
	}
	stats.Failed = failed

	if stats.Cancelled > 0 || stats.Failed > 0 {
		e.logger.Info("cleanup pass",
			slog.Int64("cancelled", stats.Cancelled),
			slog.Int64("failed", stats.Failed),
		)
	}
	return stats, nil
}
