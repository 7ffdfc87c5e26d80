package schedule

import (
	"fmt"
	"time"
)

// RetryConfig is the retry/backoff policy for failed sends.
type RetryConfig struct {
	Enabled     bool          `env:"SCHEDULE_RETRY_ENABLED" envDefault:"true" yaml:"enabled"`
	MaxAttempts int           `env:"SCHEDULE_RETRY_MAX_ATTEMPTS" envDefault:"3" yaml:"max_attempts"`
	BaseDelay   time.Duration `env:"SCHEDULE_RETRY_BASE_DELAY" envDefault:"5m" yaml:"base_delay"`
	MaxDelay    time.Duration `env:"SCHEDULE_RETRY_MAX_DELAY" envDefault:"120m" yaml:"max_delay"`
	Strategy    RetryStrategy `env:"SCHEDULE_RETRY_STRATEGY" envDefault:"exponential" yaml:"strategy"`
}

// RecurrenceConfig is the recurrence generation policy.
type RecurrenceConfig struct {
	Enabled bool `env:"SCHEDULE_RECURRENCE_ENABLED" envDefault:"true" yaml:"enabled"`

	// DisabledFrequencies names frequencies that must not generate children
	// even when a record requests them.
	DisabledFrequencies []Frequency `yaml:"disabled_frequencies"`

	// DefaultMaxOccurrences caps chains whose records carry no explicit cap.
	// Zero means unlimited.
	DefaultMaxOccurrences int `env:"SCHEDULE_RECURRENCE_MAX_OCCURRENCES" envDefault:"0" yaml:"default_max_occurrences"`

	// DefaultExpiryDays bounds new recurring roots created without an
	// explicit expires_at. Zero means no implied expiry.
	DefaultExpiryDays int `env:"SCHEDULE_RECURRENCE_EXPIRY_DAYS" envDefault:"0" yaml:"default_expiry_days"`

	// AutoRegenerate enables the safety-net pass that chains records whose
	// post-send occurrence creation was missed.
	AutoRegenerate bool `env:"SCHEDULE_RECURRENCE_AUTO_REGENERATE" envDefault:"true" yaml:"auto_regenerate"`
}

// FrequencyEnabled reports whether recurrence generation is allowed for freq.
func (c RecurrenceConfig) FrequencyEnabled(freq Frequency) bool {
	if !c.Enabled {
		return false
	}
	for _, disabled := range c.DisabledFrequencies {
		if disabled == freq {
			return false
		}
	}
	return true
}

// Config is the scheduling engine configuration.
type Config struct {
	Enabled    bool             `env:"SCHEDULE_ENABLED" envDefault:"true" yaml:"enabled"`
	BatchSize  int              `env:"SCHEDULE_BATCH_SIZE" envDefault:"50" yaml:"batch_size"`
	Retry      RetryConfig      `yaml:"retry"`
	Recurrence RecurrenceConfig `yaml:"recurrence"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		BatchSize: 50,
		Retry: RetryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			BaseDelay:   5 * time.Minute,
			MaxDelay:    120 * time.Minute,
			Strategy:    StrategyExponential,
		},
		Recurrence: RecurrenceConfig{
			Enabled:        true,
			AutoRegenerate: true,
		},
	}
}

// Validate rejects configurations the engine cannot honor. Unsupported
// strategy values are an error, not a silent degrade.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("schedule: batch size must be positive, got %d", c.BatchSize)
	}
	if !c.Retry.Strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRetryStrategy, c.Retry.Strategy)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("schedule: max attempts must not be negative, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("schedule: delays must satisfy 0 < base (%s) <= max (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	for _, freq := range c.Recurrence.DisabledFrequencies {
		if !freq.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
		}
	}
	return nil
}

// Backoff builds the retry policy from the config.
func (c Config) Backoff() Backoff {
	return Backoff{
		Strategy:    c.Retry.Strategy,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		MaxAttempts: c.Retry.MaxAttempts,
	}
}
