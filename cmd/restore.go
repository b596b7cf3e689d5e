package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"S3ArchiveBuilder/internal/archive"
	"S3ArchiveBuilder/internal/restore"
	"S3ArchiveBuilder/internal/s3"
)

var (
	restoreKey    string
	restoreTarget string
	restoreList   bool
	restoreOnly   []string
	restoreVerify bool
)

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVar(&restoreKey, "key", "", "Archive key in the target bucket, e.g. cold/archive_dev1_2020.tar.gz (required)")
	restoreCmd.Flags().StringVar(&restoreTarget, "target", "", "Directory to extract into (required unless --list)")
	restoreCmd.Flags().BoolVar(&restoreList, "list", false, "List entries without extracting")
	restoreCmd.Flags().StringSliceVar(&restoreOnly, "only", nil, "Extract only these entry names")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify", true, "Check the archive digest against its manifest")
	_ = restoreCmd.MarkFlagRequired("key")
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download an archive from the target bucket and list or extract it",
	Long: "Download an archive from the target bucket and list or extract it. Archives in GLACIER " +
		"or DEEP_ARCHIVE must be restored to a readable tier in S3 first.",
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	if !restoreList && restoreTarget == "" {
		return fmt.Errorf("--target is required unless --list is set")
	}
	ctx := context.Background()
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	client, err := newTargetClient(ctx, cfg)
	if err != nil {
		return err
	}

	opts := restore.Options{ListOnly: restoreList, Only: restoreOnly}
	if restoreVerify {
		m, err := archive.ReadManifest(ctx, client, s3.ManifestKey(restoreKey))
		if err != nil {
			cmd.PrintErrf("Warning: manifest unavailable, digest not checked: %v\n", err)
		} else {
			opts.ExpectDigest = m.Digest
		}
	}

	res, err := restore.Restore(ctx, client, restoreKey, restoreTarget, opts)
	if err != nil {
		return err
	}
	for _, e := range res.Entries {
		cmd.Printf("%10s  %s\n", humanize.IBytes(uint64(e.Size)), e.Name)
	}
	cmd.Printf("%d entries, archive %s, %s\n", len(res.Entries), humanize.IBytes(uint64(res.Bytes)), res.Digest)
	return nil
}
