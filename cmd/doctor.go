package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"S3ArchiveBuilder/internal/doctor"
)

var doctorRole string

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorRole, "role", "", "producer or consumer (overrides role in config)")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, bucket and queue connectivity, disk, and locks",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(true)
	if err != nil {
		cmd.Printf("Config: ERROR: %v\n", err)
		return err
	}

	results := doctor.Run(ctx, cfg, resolveRole(doctorRole, cfg), doctor.Deps{})
	allOK := true
	for _, r := range results {
		status := "OK"
		if !r.OK {
			status = "ERROR"
			allOK = false
		}
		cmd.Printf("%-12s %s: %s\n", r.Name, status, r.Detail)
	}
	if !allOK {
		return fmt.Errorf("one or more checks failed; see output above")
	}
	return nil
}
