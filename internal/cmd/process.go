package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mailcraft/mailcraft/pkg/schedule"
)

var (
	processBatchSize     int
	processIncludeFailed bool
)

var processCmd = &cobra.Command{
	Use:   "process-scheduled",
	Short: "Process one batch of due scheduled emails",
	Long: `Claims due pending emails and delivers them, honoring conditions,
retry budgets, and recurrence. Intended to run from cron when the serve
command's built-in periodic task is not used.`,
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

		batchSize := processBatchSize
		if batchSize <= 0 {
			batchSize = cfg.Mail.Schedule.BatchSize
		}

		stats, err := a.engine.ProcessBatch(ctx, schedule.BatchOptions{
			BatchSize:            batchSize,
			IncludeFailedRetries: processIncludeFailed,
		})
		if err != nil {
			return err
		}

		a.logger.Info("batch completed",
			slog.Int("claimed", stats.Claimed),
			slog.Int("sent", stats.Sent),
			slog.Int("retried", stats.Retried),
			slog.Int("failed", stats.Failed),
			slog.Int("cancelled", stats.Cancelled),
			slog.Int("deferred", stats.Deferred),
			slog.Int("requeued", stats.Requeued),
			slog.Int("children", stats.Children),
		)
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "override the configured batch size")
	processCmd.Flags().BoolVar(&processIncludeFailed, "include-failed", true, "requeue failed emails with retry budget left")
}
