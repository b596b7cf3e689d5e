package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"S3ArchiveBuilder/internal/checkpoint"
	"S3ArchiveBuilder/internal/config"
	"S3ArchiveBuilder/internal/queue"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth, producer checkpoints and leftover workspaces",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	backend := ""
	if cfg.Queue != nil {
		backend = cfg.Queue.Backend
	}
	q, err := queue.New(ctx, cfg.Queue)
	if err != nil {
		cmd.Printf("Queue (%s): ERROR: %v\n", backend, err)
	} else {
		defer q.Close()
		depth, err := q.ApproximateDepth(ctx)
		if err != nil {
			cmd.Printf("Queue (%s): ERROR: %v\n", backend, err)
		} else {
			cmd.Printf("Queue (%s): ~%d contexts waiting\n", backend, depth)
		}
	}

	cpDir := config.CheckpointDir(cfg.BaseDirectory)
	if _, err := os.Stat(cpDir); err == nil {
		store, err := checkpoint.Open(cpDir)
		if err != nil {
			cmd.Printf("Checkpoints: ERROR: %v (is a producer running?)\n", err)
		} else {
			defer store.Close()
			markers, err := store.List()
			if err != nil {
				return err
			}
			if len(markers) == 0 {
				cmd.Println("Checkpoints: none")
			}
			for _, m := range markers {
				state := "in progress"
				if m.Complete {
					state = "complete"
				}
				prefix := m.Prefix
				if prefix == "" {
					prefix = "(whole bucket)"
				}
				cmd.Printf("Checkpoint %s: last key %s, %d contexts, %s, updated %s\n",
					prefix, m.LastKey, m.Contexts, state, m.UpdatedAt.Format(time.RFC3339))
			}
		}
	} else {
		cmd.Println("Checkpoints: none")
	}

	if entries, err := os.ReadDir(config.ArchivesDir(cfg.BaseDirectory)); err == nil {
		cmd.Printf("Consumer workspaces on this host: %d\n", len(entries))
	}
	return nil
}
