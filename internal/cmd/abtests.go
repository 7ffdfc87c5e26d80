package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mailcraft/mailcraft/pkg/abtest"
)

var abtestsLimit int

var abtestsCmd = &cobra.Command{
	Use:   "process-abtests",
	Short: "Pick winners for unresolved A/B tests",
	Long: `Walks tests that have no winner yet and resolves each by its metric
(open rate or click rate), persisting the winning variant. Intended to run
on a cadence that gives variants time to accumulate opens and clicks.`,
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

		tests, err := a.abtests.ListUnresolved(ctx, abtestsLimit)
		if err != nil {
			return err
		}

		resolved := 0
		for _, test := range tests {
			winner, err := abtest.Resolve(ctx, a.abtests, test.ID)
			if err != nil {
				a.logger.Error("resolving test",
					slog.Int64("test_id", test.ID),
					slog.String("name", test.Name),
					slog.Any("error", err),
				)
				continue
			}
			resolved++
			a.logger.Info("test resolved",
				slog.Int64("test_id", test.ID),
				slog.String("name", test.Name),
				slog.String("winner", winner.Name),
			)
		}

		a.logger.Info("abtest pass completed",
			slog.Int("unresolved", len(tests)),
			slog.Int("resolved", resolved),
		)
		return nil
	},
}

func init() {
	abtestsCmd.Flags().IntVar(&abtestsLimit, "limit", 50, "maximum tests to resolve in one run")
}
