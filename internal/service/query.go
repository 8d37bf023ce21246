package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/wikidex/internal/domain"
	"github.com/cloo-solutions/wikidex/internal/telemetry"
)

const (
	// DefaultTopK is the number of nearest chunks retrieved per question.
	DefaultTopK = 5

	// NoResultsAnswer is returned verbatim when the index has no match.
	NoResultsAnswer = "No relevant results found."

	// noKeyAnswerPlaceholder stands in for an answer when no inference
	// credential is configured.
	noKeyAnswerPlaceholder = "[openai key not set - answer not generated]"
)

// SimilaritySearcher retrieves the chunks nearest to a query vector.
type SimilaritySearcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.SearchHit, error)
}

// AnswerGenerator produces an answer grounded in the retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)
}

// QAResult is a fully assembled answer with its source links.
type QAResult struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

// QueryService answers questions over the index: it embeds the question,
// retrieves the nearest chunks, and asks the generator for an answer
// grounded in them. Retrieval failures abort; generation failures degrade
// to placeholder text so the caller still gets the sources.
type QueryService struct {
	embedder  EmbeddingClient
	searcher  SimilaritySearcher
	generator AnswerGenerator // nil when no inference credential is set
	topK      int
}

func NewQueryService(embedder EmbeddingClient, searcher SimilaritySearcher, generator AnswerGenerator, topK int) *QueryService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryService{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		topK:      topK,
	}
}

// Answer runs the retrieval pipeline for one question.
func (s *QueryService) Answer(ctx context.Context, question string) (*QAResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "QueryService.Answer", telemetry.SpanAttributes{
		Operation: "query",
	})
	defer span.End()

	embedding, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := s.searcher.Search(ctx, embedding, s.topK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if len(hits) == 0 {
		return &QAResult{
			Question: question,
			Answer:   NoResultsAnswer,
			Sources:  []string{},
		}, nil
	}

	return &QAResult{
		Question: question,
		Answer:   s.generate(ctx, question, buildContext(hits)),
		Sources:  collectSources(hits),
	}, nil
}

func (s *QueryService) generate(ctx context.Context, question, contextText string) string {
	if s.generator == nil {
		return noKeyAnswerPlaceholder
	}

	answer, err := s.generator.GenerateAnswer(ctx, question, contextText)
	if err != nil {
		return fmt.Sprintf("[answer generation failed: %v]", err)
	}
	return answer
}

// buildContext renders the hits as numbered blocks so the generator can
// cite them as [1], [2], and so on.
func buildContext(hits []domain.SearchHit) string {
	blocks := make([]string, len(hits))
	for i, hit := range hits {
		blocks[i] = fmt.Sprintf("[%d] %s: %s", i+1, hit.Title, hit.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// collectSources deduplicates hit URLs preserving first-seen order.
// Chunks of the same page share a URL, so without this the list would
// repeat entries.
func collectSources(hits []domain.SearchHit) []string {
	seen := make(map[string]struct{}, len(hits))
	sources := []string{}
	for _, hit := range hits {
		if hit.URL == "" {
			continue
		}
		if _, ok := seen[hit.URL]; ok {
			continue
		}
		seen[hit.URL] = struct{}{}
		sources = append(sources, hit.URL)
	}
	return sources
}
