package schedule

import (
	"fmt"
	"time"
)

// Frequency is the recurrence cadence of a scheduled email.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom:
		return true
	}
	return false
}

// IntervalUnit is the step unit for custom frequencies.
type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
	UnitWeeks   IntervalUnit = "weeks"
	UnitMonths  IntervalUnit = "months"
)

// FrequencyOptions refines a Frequency. All fields are optional; which apply
// depends on the frequency.
type FrequencyOptions struct {
	// DayOfWeek pins weekly recurrence to a specific weekday.
	DayOfWeek *time.Weekday `json:"day_of_week,omitempty"`

	// DayOfMonth pins monthly recurrence to a day, clamped to the length of
	// the target month.
	DayOfMonth *int `json:"day_of_month,omitempty"`

	// Interval and Unit define the step for custom frequencies.
	Interval int          `json:"interval,omitempty"`
	Unit     IntervalUnit `json:"unit,omitempty"`

	// MaxOccurrences caps the chain length; zero falls back to the
	// configured default.
	MaxOccurrences int `json:"max_occurrences,omitempty"`
}

// NextTime computes when the next occurrence is due, relative to the last
// send time.
func NextTime(freq Frequency, opts FrequencyOptions, last time.Time) (time.Time, error) {
	switch freq {
	case FrequencyDaily:
		return last.AddDate(0, 0, 1), nil

	case FrequencyWeekly:
		next := last.AddDate(0, 0, 7)
		if opts.DayOfWeek != nil {
			next = advanceToWeekday(next, *opts.DayOfWeek)
		}
		return next, nil

	case FrequencyMonthly:
		day := last.Day()
		if opts.DayOfMonth != nil {
			day = *opts.DayOfMonth
		}
		return addMonthClamped(last, 1, day), nil

	case FrequencyCustom:
		return addCustom(last, opts)

	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
	}
}

func addCustom(last time.Time, opts FrequencyOptions) (time.Time, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = 1
	}
	switch opts.Unit {
	case UnitMinutes:
		return last.Add(time.Duration(interval) * time.Minute), nil
	case UnitHours:
		return last.Add(time.Duration(interval) * time.Hour), nil
	case UnitDays:
		return last.AddDate(0, 0, interval), nil
	case UnitWeeks:
		return last.AddDate(0, 0, 7*interval), nil
	case UnitMonths:
		return addMonthClamped(last, interval, last.Day()), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownIntervalUnit, opts.Unit)
	}
}

// advanceToWeekday moves t forward to the next occurrence of day, keeping t
// itself when it already falls on day.
func advanceToWeekday(t time.Time, day time.Weekday) time.Time {
	diff := (int(day) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, diff)
}

// addMonthClamped adds months to t with the day-of-month clamped to the
// target month's length, avoiding the Jan 31 -> Mar 3 overflow of AddDate.
func addMonthClamped(t time.Time, months, day int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
