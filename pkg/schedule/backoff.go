package schedule

import (
	"math/rand/v2"
	"time"
)

// RetryStrategy selects how the retry delay grows with the attempt count.
type RetryStrategy string

const (
	StrategyExponential RetryStrategy = "exponential"
	StrategyLinear      RetryStrategy = "linear"
	StrategyFixed       RetryStrategy = "fixed"
)

// Valid reports whether s is a supported strategy.
func (s RetryStrategy) Valid() bool {
	switch s {
	case StrategyExponential, StrategyLinear, StrategyFixed:
		return true
	}
	return false
}

// Backoff computes retry delays with jitter. The zero value is unusable; use
// DefaultBackoff or fill the fields from configuration.
type Backoff struct {
	Strategy    RetryStrategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// jitter returns a uniform value in [0,1). Overridable in tests.
	jitter func() float64
}

// DefaultBackoff returns the standard retry policy: exponential growth from
// 5 minutes, capped at 120 minutes, 3 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Strategy:    StrategyExponential,
		BaseDelay:   5 * time.Minute,
		MaxDelay:    120 * time.Minute,
		MaxAttempts: 3,
	}
}

// Delay computes the wait before retry number attempt (0-based). The raw
// delay is capped at MaxDelay, then a uniform jitter in [0, 0.3*delay] is
// added and the sum capped again, keeping the result within MaxDelay while
// spreading retries that would otherwise cluster.
func (b Backoff) Delay(attempt int) time.Duration {
	raw := b.rawDelay(attempt)
	if raw > b.MaxDelay {
		raw = b.MaxDelay
	}

	jitterFn := b.jitter
	if jitterFn == nil {
		jitterFn = rand.Float64
	}
	delay := raw + time.Duration(jitterFn()*0.3*float64(raw))
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

func (b Backoff) rawDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	switch b.Strategy {
	case StrategyLinear:
		return b.BaseDelay * time.Duration(attempt+1)
	case StrategyFixed:
		return b.BaseDelay
	default:
		// Exponential. Shifting past 62 bits would overflow; anything near
		// that is beyond MaxDelay anyway.
		if attempt > 32 {
			return b.MaxDelay
		}
		return b.BaseDelay * time.Duration(int64(1)<<attempt)
	}
}
