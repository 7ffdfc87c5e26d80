package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var (
	recurringRegenerate bool
	recurringCleanup    bool
	recurringSince      time.Duration
	recurringLimit      int
)

var recurringCmd = &cobra.Command{
	Use:   "manage-recurring",
	Short: "Maintain recurrence chains and clean up stale schedules",
	Long: `Spawns missing next occurrences for recurring emails that sent but
never chained (for example when the process crashed mid-batch), and
optionally cancels expired schedules and fails ones with no retry budget
left.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if recurringRegenerate {
			since := time.Now().Add(-recurringSince)
			chained, err := a.engine.ProcessRecurringBatch(ctx, since, recurringLimit)
			if err != nil {
				return err
			}
			a.logger.Info("recurring chains extended", slog.Int("chained", chained))
		}

		if recurringCleanup {
			stats, err := a.engine.Cleanup(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("schedule cleanup completed",
				slog.Int64("cancelled", stats.Cancelled),
				slog.Int64("failed", stats.Failed),
			)
		}
		return nil
	},
}

func init() {
	recurringCmd.Flags().BoolVar(&recurringRegenerate, "regenerate", true, "spawn missing next occurrences")
	recurringCmd.Flags().BoolVar(&recurringCleanup, "cleanup", false, "cancel expired and fail exhausted schedules")
	recurringCmd.Flags().DurationVar(&recurringSince, "since", 48*time.Hour, "how far back to look for unchained sends")
	recurringCmd.Flags().IntVar(&recurringLimit, "limit", 100, "maximum records to chain in one run")
}
