package schedule

import (
	"context"
	"log/slog"
	"time"
)

// ConditionType identifies one gating rule kind.
type ConditionType string

const (
	ConditionTime     ConditionType = "time"
	ConditionDatabase ConditionType = "database"
	ConditionCallback ConditionType = "callback"

	// ConditionDateRange is the legacy standalone date window; newer records
	// express the same thing inside a time condition.
	ConditionDateRange ConditionType = "date_range"
)

// Condition is one typed gating rule on a scheduled email. All conditions on
// a record must pass for it to send; evaluation short-circuits on the first
// failure.
type Condition struct {
	Type ConditionType `json:"type"`

	// time: day-of-week allow-list and/or a time-of-day window ("15:04"
	// format) and/or a date window.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	StartTime  string         `json:"start_time,omitempty"`
	EndTime    string         `json:"end_time,omitempty"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	EndDate    *time.Time     `json:"end_date,omitempty"`

	// database: existence check.
	Table string         `json:"table,omitempty"`
	Where map[string]any `json:"where,omitempty"`

	// callback: name of an in-process registered function. Not serializable
	// across workers; every worker must register the same names.
	Callback string `json:"callback,omitempty"`
}

// Exister answers database conditions. Implemented by the storage layer.
type Exister interface {
	Exists(ctx context.Context, table string, where map[string]any) (bool, error)
}

// CallbackFunc is an in-process gating function registered by name.
type CallbackFunc func(ctx context.Context) (bool, error)

// Evaluator evaluates condition lists. Unknown condition types pass (fail
// open); indeterminate results (lookup errors, unregistered callbacks) fail
// the condition, which defers the record rather than failing it.
type Evaluator struct {
	logger    *slog.Logger
	exister   Exister
	callbacks map[string]CallbackFunc
	now       func() time.Time
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithExister sets the backend for database conditions. Without one, every
// database condition is indeterminate and defers its record.
func WithExister(e Exister) EvaluatorOption {
	return func(ev *Evaluator) { ev.exister = e }
}

// WithEvaluatorLogger sets the logger for skip and failure events.
func WithEvaluatorLogger(l *slog.Logger) EvaluatorOption {
	return func(ev *Evaluator) {
		if l != nil {
			ev.logger = l
		}
	}
}

// WithClock overrides the time source for time conditions.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(ev *Evaluator) {
		if now != nil {
			ev.now = now
		}
	}
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	ev := &Evaluator{
		logger:    slog.New(slog.DiscardHandler),
		callbacks: make(map[string]CallbackFunc),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Register adds a named callback usable by callback conditions.
func (ev *Evaluator) Register(name string, fn CallbackFunc) {
	ev.callbacks[name] = fn
}

// Evaluate reports whether all conditions pass.
func (ev *Evaluator) Evaluate(ctx context.Context, conditions []Condition) bool {
	for _, c := range conditions {
		if !ev.evaluateOne(ctx, c) {
			return false
		}
	}
	return true
}

func (ev *Evaluator) evaluateOne(ctx context.Context, c Condition) bool {
	switch c.Type {
	case ConditionTime:
		return ev.evaluateTime(c)

	case ConditionDateRange:
		return inDateRange(ev.now(), c.StartDate, c.EndDate)

	case ConditionDatabase:
		if ev.exister == nil {
			ev.logger.Warn("database condition with no backend, deferring",
				slog.String("table", c.Table))
			return false
		}
		ok, err := ev.exister.Exists(ctx, c.Table, c.Where)
		if err != nil {
			ev.logger.Warn("database condition indeterminate, deferring",
				slog.String("table", c.Table),
				slog.Any("error", err),
			)
			return false
		}
		return ok

	case ConditionCallback:
		fn, ok := ev.callbacks[c.Callback]
		if !ok {
			ev.logger.Warn("callback condition not registered, deferring",
				slog.String("callback", c.Callback))
			return false
		}
		pass, err := fn(ctx)
		if err != nil {
			ev.logger.Warn("callback condition indeterminate, deferring",
				slog.String("callback", c.Callback),
				slog.Any("error", err),
			)
			return false
		}
		return pass

	default:
		ev.logger.Warn("unknown condition type, skipped",
			slog.String("type", string(c.Type)))
		return true
	}
}

func (ev *Evaluator) evaluateTime(c Condition) bool {
	now := ev.now()

	if len(c.DaysOfWeek) > 0 {
		allowed := false
		for _, day := range c.DaysOfWeek {
			if now.Weekday() == day {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if c.StartTime != "" && c.EndTime != "" {
		start, err1 := time.Parse("15:04", c.StartTime)
		end, err2 := time.Parse("15:04", c.EndTime)
		if err1 != nil || err2 != nil {
			ev.logger.Warn("time condition has malformed window, deferring",
				slog.String("start", c.StartTime),
				slog.String("end", c.EndTime),
			)
			return false
		}
		minute := now.Hour()*60 + now.Minute()
		from := start.Hour()*60 + start.Minute()
		to := end.Hour()*60 + end.Minute()
		if from <= to {
			if minute < from || minute > to {
				return false
			}
		} else {
			// Window wraps midnight, e.g. 22:00-06:00.
			if minute < from && minute > to {
				return false
			}
		}
	}

	return inDateRange(now, c.StartDate, c.EndDate)
}

func inDateRange(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
