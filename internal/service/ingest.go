package service

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/wikidex/internal/domain"
	"github.com/cloo-solutions/wikidex/internal/telemetry"
)

// SourceClient defines the paginated read operations consumed from the
// document source. A false "more" return signals the last page.
type SourceClient interface {
	ListSpaces(ctx context.Context, limit, start int) ([]domain.Space, bool, error)
	ListPages(ctx context.Context, spaceKey string, limit, start int, includeHistory bool) ([]domain.Page, bool, error)
	ListComments(ctx context.Context, pageID string, limit, start int) ([]domain.Comment, bool, error)
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Indexer defines the search-index write operations.
type Indexer interface {
	IndexChunk(ctx context.Context, doc domain.IndexDocument) error
	AppendImages(ctx context.Context, pageID string, images []domain.ImageDescription) error
	AppendComments(ctx context.Context, pageID string, comments []string) error
	DeleteStaleChunks(ctx context.Context, pageID string, fromChunk int) error
}

// IngestConfig bounds a full ingest run.
type IngestConfig struct {
	ChunkWidth   int
	PageLimit    int
	CommentLimit int
	MaxSpaces    int
	MaxPages     int
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkWidth:   DefaultChunkWidth,
		PageLimit:    25,
		CommentLimit: 50,
		MaxSpaces:    10,
		MaxPages:     200,
	}
}

// IngestService performs the full ingest: every page of every space is
// normalized, chunked, embedded, and written to the index. Execution is
// strictly sequential; the first source or index error aborts the run.
type IngestService struct {
	source     SourceClient
	normalizer *Normalizer
	embedder   EmbeddingClient
	index      Indexer
	cfg        IngestConfig
}

func NewIngestService(source SourceClient, normalizer *Normalizer, embedder EmbeddingClient, index Indexer, cfg IngestConfig) *IngestService {
	defaults := DefaultIngestConfig()
	if cfg.ChunkWidth <= 0 {
		cfg.ChunkWidth = defaults.ChunkWidth
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaults.PageLimit
	}
	if cfg.CommentLimit <= 0 {
		cfg.CommentLimit = defaults.CommentLimit
	}
	if cfg.MaxSpaces <= 0 {
		cfg.MaxSpaces = defaults.MaxSpaces
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}

	return &IngestService{
		source:     source,
		normalizer: normalizer,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
	}
}

// IngestAllSpaces walks the space listing and ingests each space, capped
// at MaxSpaces.
func (s *IngestService) IngestAllSpaces(ctx context.Context) error {
	log.Println("listing spaces")

	seen := 0
	start := 0
	for seen < s.cfg.MaxSpaces {
		spaces, more, err := s.source.ListSpaces(ctx, s.cfg.PageLimit, start)
		if err != nil {
			return err
		}
		if len(spaces) == 0 {
			break
		}

		for _, space := range spaces {
			log.Printf("ingesting space %s (%s)", space.Key, space.Name)
			if err := s.IngestSpace(ctx, space.Key); err != nil {
				return err
			}
			seen++
			if seen >= s.cfg.MaxSpaces {
				break
			}
		}

		if !more {
			break
		}
		start += s.cfg.PageLimit
	}

	log.Printf("finished ingesting %d spaces", seen)
	return nil
}

// IngestSpace ingests every page in a space, capped at MaxPages.
func (s *IngestService) IngestSpace(ctx context.Context, spaceKey string) error {
	seen := 0
	start := 0
	for seen < s.cfg.MaxPages {
		pages, more, err := s.source.ListPages(ctx, spaceKey, s.cfg.PageLimit, start, false)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			break
		}

		for _, page := range pages {
			if err := s.IngestPage(ctx, page); err != nil {
				return err
			}
			seen++
			if seen >= s.cfg.MaxPages {
				break
			}
		}

		if !more {
			break
		}
		start += s.cfg.PageLimit
	}
	return nil
}

// IngestPage normalizes, chunks, embeds, and indexes a single page. Every
// chunk document carries the page's full image and comment lists; chunk 0
// is marked as the page's metadata holder for later incremental appends.
func (s *IngestService) IngestPage(ctx context.Context, page domain.Page) error {
	if err := page.Validate(); err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestPage", telemetry.SpanAttributes{
		SpaceKey:  page.SpaceKey,
		PageID:    page.ID,
		Operation: "ingest",
	})
	defer span.End()

	text, images, err := s.normalizer.NormalizePage(ctx, page.ID, page.Body)
	if err != nil {
		return fmt.Errorf("failed to normalize page %s: %w", page.ID, err)
	}

	comments, err := s.fetchCommentTexts(ctx, page.ID)
	if err != nil {
		return err
	}

	chunks := ChunkText(text, s.cfg.ChunkWidth)
	for i, chunk := range chunks {
		embedding, err := s.embedder.GenerateEmbedding(ctx, embeddingInput(chunk, page))
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of page %s: %w", i, page.ID, err)
		}

		doc := domain.IndexDocument{
			Title: page.Title,
			URL:   page.URL,
			Text:  chunk,
			Metadata: domain.DocumentMetadata{
				Space:  page.SpaceKey,
				PageID: page.ID,
				Chunk:  i,
			},
			Embedding:      embedding,
			Images:         images,
			Comments:       comments,
			MetadataHolder: i == 0,
		}

		if err := s.index.IndexChunk(ctx, doc); err != nil {
			return err
		}
	}

	// A shorter re-ingest would otherwise leave the previous run's tail
	// chunks serving retrieval under their old IDs.
	if err := s.index.DeleteStaleChunks(ctx, page.ID, len(chunks)); err != nil {
		return err
	}

	log.Printf("indexed page %s (%q) as %d chunk(s)", page.ID, page.Title, len(chunks))
	return nil
}

func (s *IngestService) fetchCommentTexts(ctx context.Context, pageID string) ([]string, error) {
	texts := []string{}
	start := 0
	for {
		comments, more, err := s.source.ListComments(ctx, pageID, s.cfg.CommentLimit, start)
		if err != nil {
			return nil, err
		}
		for _, comment := range comments {
			texts = append(texts, s.normalizer.NormalizeComment(comment.Body))
		}
		if !more {
			break
		}
		start += s.cfg.CommentLimit
	}
	return texts, nil
}

// embeddingInput picks the text to embed for a chunk. The embedding
// backend rejects empty input, so an empty chunk (empty page body) falls
// back to the page title, keeping the invariant that every page yields at
// least one index entry.
func embeddingInput(chunk string, page domain.Page) string {
	if chunk != "" {
		return chunk
	}
	if page.Title != "" {
		return page.Title
	}
	return page.ID
}
