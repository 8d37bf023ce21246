package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/wikidex/internal/config"
	"github.com/cloo-solutions/wikidex/internal/jobs"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var spaceKey string
	var retryDelay time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest then sync",
		Long:  "Run the whole pipeline in order: a full ingest followed by an incremental sync. Each failed step is retried once after the retry delay.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(spaceKey, retryDelay)
		},
	}

	cmd.Flags().StringVarP(&spaceKey, "space", "s", "", "Limit the pipeline to a single space key")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", jobs.DefaultRetryDelay, "Wait before retrying a failed step")

	return cmd
}

func runPipeline(spaceKey string, retryDelay time.Duration) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	ingestStep := p.ingest.IngestAllSpaces
	syncStep := p.sync.SyncAllSpaces
	if spaceKey != "" {
		ingestStep = func(ctx context.Context) error { return p.ingest.IngestSpace(ctx, spaceKey) }
		syncStep = func(ctx context.Context) error { return p.sync.SyncSpace(ctx, spaceKey) }
	}

	runner := jobs.NewRunner([]jobs.Step{
		{Name: "full_ingest", Run: ingestStep},
		{Name: "incremental_sync", Run: syncStep},
	}, retryDelay)

	return runner.Run(ctx)
}
