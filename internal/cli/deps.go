package cli

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/wikidex/internal/config"
	"github.com/cloo-solutions/wikidex/internal/confluence"
	"github.com/cloo-solutions/wikidex/internal/index"
	"github.com/cloo-solutions/wikidex/internal/openai"
	"github.com/cloo-solutions/wikidex/internal/service"
	"github.com/cloo-solutions/wikidex/internal/state"
)

// pipeline bundles the wired clients and services the commands share.
type pipeline struct {
	cfg        *config.Config
	source     *confluence.Client
	inference  *openai.Client
	index      *index.Client
	normalizer *service.Normalizer
	ingest     *service.IngestService
	sync       *service.SyncService
}

// buildPipeline wires the ingest and sync services against live clients.
// The index mapping is ensured up front so every command can assume it
// exists.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	if err := cfg.RequireSource(); err != nil {
		return nil, err
	}
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("OPENAI_API_KEY env var required")
	}

	source, err := confluence.NewClient(cfg.ConfluenceBase, cfg.ConfluencePAT)
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	inference := openai.NewClient(cfg.OpenAIAPIKey)

	idx, err := index.NewClient(index.Config{
		Addresses: []string{cfg.OpenSearchHost},
		Index:     cfg.IndexName,
	})
	if err != nil {
		return nil, err
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	normalizer, err := service.NewNormalizer(service.NormalizerConfig{
		Describer:   inference,
		Attachments: source,
		BaseURL:     cfg.ConfluenceBase,
		Throttle:    cfg.DescribeDelay,
	})
	if err != nil {
		return nil, err
	}

	ingest := service.NewIngestService(source, normalizer, inference, idx, service.IngestConfig{
		ChunkWidth: cfg.ChunkSize,
		MaxSpaces:  cfg.MaxSpaces,
		MaxPages:   cfg.MaxPages,
	})

	watermarks := state.NewWatermarkStore(cfg.SyncFile)
	syncSvc := service.NewSyncService(ingest, source, source, normalizer, idx, watermarks)

	return &pipeline{
		cfg:        cfg,
		source:     source,
		inference:  inference,
		index:      idx,
		normalizer: normalizer,
		ingest:     ingest,
		sync:       syncSvc,
	}, nil
}
