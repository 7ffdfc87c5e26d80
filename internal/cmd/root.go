// Package cmd provides the CLI commands for the mailcraft worker: schema
// migration, the tracking/queue server, and the scheduled email batch
// processors.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mailcraft",
	Short: "Transactional email worker",
	Long: `Mailcraft delivers, tracks, and schedules transactional email.

The serve command runs the tracking endpoints and the background queue;
process-scheduled and manage-recurring are the batch entrypoints, intended
to run from cron or as periodic queue tasks.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is mailcraft.yaml)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(recurringCmd)
	rootCmd.AddCommand(abtestsCmd)
}
