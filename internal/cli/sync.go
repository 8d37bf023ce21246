package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/wikidex/internal/config"
)

// SyncCmd returns the sync command
func SyncCmd() *cobra.Command {
	var spaceKey string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run an incremental sync against the index",
		Long:  "Apply source changes since the last watermark: re-ingest new and updated pages, append new attachments and comments. Without --space every space is synced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(spaceKey)
		},
	}

	cmd.Flags().StringVarP(&spaceKey, "space", "s", "", "Limit the sync to a single space key")

	return cmd
}

func runSync(spaceKey string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	if spaceKey != "" {
		return p.sync.SyncSpace(ctx, spaceKey)
	}
	return p.sync.SyncAllSpaces(ctx)
}
