package abtest

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTestNotFound indicates no test exists with the given id.
	ErrTestNotFound = errors.New("abtest: test not found")

	// ErrVariantNotFound indicates no variant exists with the given id.
	ErrVariantNotFound = errors.New("abtest: variant not found")

	// ErrNoVariants indicates the test has no variants to compare.
	ErrNoVariants = errors.New("abtest: no variants")

	// ErrUnknownMetric indicates a winner metric outside the supported set.
	ErrUnknownMetric = errors.New("abtest: unknown metric")
)

// Metric selects which rate decides the winner.
type Metric string

const (
	MetricOpenRate  Metric = "open_rate"
	MetricClickRate Metric = "click_rate"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricOpenRate || m == MetricClickRate
}

// Test is one A/B comparison across variants of a message.
type Test struct {
	ID        int64
	Name      string
	Metric    Metric
	WinnerID  *int64
	CreatedAt time.Time
}

// Variant is one arm of a test with its counters.
type Variant struct {
	ID         int64
	TestID     int64
	Name       string
	Subject    string
	HTMLBody   string
	SentCount  int
	OpenCount  int
	ClickCount int
}

// Rate returns the variant's value for the metric. A variant with no sends
// rates zero rather than dividing by zero.
func (v Variant) Rate(metric Metric) float64 {
	if v.SentCount == 0 {
		return 0
	}
	switch metric {
	case MetricClickRate:
		return float64(v.ClickCount) / float64(v.SentCount)
	default:
		return float64(v.OpenCount) / float64(v.SentCount)
	}
}

// PickWinner returns the variant with the highest rate for the metric.
// Ties go to the variant with the higher sent count, since its rate rests on
// more evidence.
func PickWinner(variants []Variant, metric Metric) (*Variant, error) {
	if !metric.Valid() {
		return nil, ErrUnknownMetric
	}
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}

	best := variants[0]
	for _, v := range variants[1:] {
		rate, bestRate := v.Rate(metric), best.Rate(metric)
		switch {
		case rate > bestRate:
			best = v
		case rate == bestRate && v.SentCount > best.SentCount:
			best = v
		}
	}
	return &best, nil
}

// Store persists tests and variant counters. Implemented by the storage
// layer.
type Store interface {
	CreateTest(ctx context.Context, test *Test) error
	AddVariant(ctx context.Context, variant *Variant) error
	FindTest(ctx context.Context, id int64) (*Test, []Variant, error)

	// ListUnresolved returns up to limit tests that have no winner yet,
	// oldest first.
	ListUnresolved(ctx context.Context, limit int) ([]Test, error)

	IncrementSent(ctx context.Context, variantID int64) error
	IncrementOpen(ctx context.Context, variantID int64) error
	IncrementClick(ctx context.Context, variantID int64) error
	SetWinner(ctx context.Context, testID, variantID int64) error
}

// Resolve loads the test, picks the winner by the test's metric, and
// persists it.
func Resolve(ctx context.Context, store Store, testID int64) (*Variant, error) {
	test, variants, err := store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	winner, err := PickWinner(variants, test.Metric)
	if err != nil {
		return nil, err
	}
	if err := store.SetWinner(ctx, testID, winner.ID); err != nil {
		return nil, err
	}
	return winner, nil
}
