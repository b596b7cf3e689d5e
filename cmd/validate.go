package cmd

import (
	"github.com/spf13/cobra"

	"S3ArchiveBuilder/internal/config"
)

var validateRole string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateRole, "role", "", "Also check the fields this role needs")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if role := resolveRole(validateRole, cfg); role != "" {
		if err := config.ValidateRole(cfg, role); err != nil {
			return err
		}
	}
	cmd.Println("Configuration OK")
	return nil
}
