package mailcraft

import (
	"fmt"

	"github.com/mailcraft/mailcraft/pkg/schedule"
	"github.com/mailcraft/mailcraft/pkg/tracking"
)

// FailoverStrategy selects how the provider list is walked. Only sequential
// first-success-wins behavior exists; anything else fails validation instead
// of silently degrading.
type FailoverStrategy string

// StrategySequential walks providers in order, stopping at the first
// success.
const StrategySequential FailoverStrategy = "sequential"

// ProvidersConfig names the delivery providers and their failover order.
type ProvidersConfig struct {
	// Default is the provider used when a message pins no mailer and no
	// failover order is set.
	Default string `env:"MAIL_DEFAULT_PROVIDER" yaml:"default"`

	// Failover is the ordered provider list for sequential failover. When
	// empty, only Default is attempted.
	Failover []string `yaml:"failover"`

	Strategy FailoverStrategy `env:"MAIL_FAILOVER_STRATEGY" envDefault:"sequential" yaml:"strategy"`
}

// Order returns the effective provider order.
func (c ProvidersConfig) Order() []string {
	if len(c.Failover) > 0 {
		return c.Failover
	}
	if c.Default != "" {
		return []string{c.Default}
	}
	return nil
}

// Config is the top-level mailcraft configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Tracking  tracking.Config `yaml:"tracking"`
	Schedule  schedule.Config `yaml:"schedule"`
}

// DefaultConfig returns a config with scheduling defaults filled in. The
// provider section must still be populated by the caller.
func DefaultConfig() Config {
	return Config{
		Providers: ProvidersConfig{Strategy: StrategySequential},
		Schedule:  schedule.DefaultConfig(),
	}
}

// Validate rejects configurations the client cannot honor.
func (c Config) Validate() error {
	if c.Providers.Strategy != StrategySequential {
		return fmt.Errorf("%w: %q", ErrUnknownFailoverStrategy, c.Providers.Strategy)
	}
	if len(c.Providers.Order()) == 0 {
		return ErrNoProvidersConfigured
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	return nil
}
