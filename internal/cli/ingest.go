package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/wikidex/internal/config"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var spaceKey string
	var maxSpaces int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run a full ingest of wiki content",
		Long:  "Fetch, normalize, chunk, embed, and index wiki pages. Without --space every space is ingested.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(spaceKey, maxSpaces)
		},
	}

	cmd.Flags().StringVarP(&spaceKey, "space", "s", "", "Limit the ingest to a single space key")
	cmd.Flags().IntVar(&maxSpaces, "max-spaces", 0, "Cap the number of spaces ingested (0 uses MAX_SPACES)")

	return cmd
}

func runIngest(spaceKey string, maxSpaces int) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if maxSpaces > 0 {
		cfg.MaxSpaces = maxSpaces
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	if spaceKey != "" {
		return p.ingest.IngestSpace(ctx, spaceKey)
	}
	return p.ingest.IngestAllSpaces(ctx)
}
