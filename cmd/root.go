package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "s3archivebuilder",
	Short: "Batch S3 objects into dated tar.gz archives for cold storage",
	Long: "s3archivebuilder lists a source bucket, groups objects by parent path and year, and queues each group. " +
		"Consumers pull the groups, fetch the objects concurrently, and upload one tar.gz per group to the target bucket.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $S3AB_CONFIG or /etc/s3archivebuilder/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
