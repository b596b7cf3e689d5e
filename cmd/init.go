package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"S3ArchiveBuilder/internal/config"
)

var (
	initOutput string
	initForce  bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initOutput, "output", "", "Where to write the sample config (default: --config or the standard path)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := initOutput
	if path == "" {
		path = configPath
	}
	if path == "" {
		path = config.ResolveConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Write(config.Sample(), path); err != nil {
		return err
	}
	cmd.Printf("Wrote sample configuration to %s\n", path)
	return nil
}
