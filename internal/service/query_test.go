package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/wikidex/internal/domain"
)

// MockSimilaritySearcher mocks index retrieval
type MockSimilaritySearcher struct {
	mock.Mock
}

func (m *MockSimilaritySearcher) Search(ctx context.Context, embedding []float32, topK int) ([]domain.SearchHit, error) {
	args := m.Called(ctx, embedding, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

// MockAnswerGenerator mocks answer generation
type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	args := m.Called(ctx, question, contextText)
	return args.String(0), args.Error(1)
}

func TestAnswer_HappyPath(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	generator := new(MockAnswerGenerator)
	svc := NewQueryService(embedder, searcher, generator, 0)

	embedding := []float32{0.1, 0.2}
	embedder.On("GenerateEmbedding", mock.Anything, "How do we deploy?").
		Return(embedding, nil)
	searcher.On("Search", mock.Anything, embedding, DefaultTopK).
		Return([]domain.SearchHit{
			{Title: "Deploy guide", URL: "https://wiki.example.com/p/1", Text: "Use the pipeline.", Score: 1.9},
			{Title: "Runbook", URL: "https://wiki.example.com/p/2", Text: "Page the on-call.", Score: 1.4},
		}, nil)
	generator.On("GenerateAnswer", mock.Anything, "How do we deploy?",
		"[1] Deploy guide: Use the pipeline.\n\n[2] Runbook: Page the on-call.").
		Return("Use the pipeline [1].", nil)

	result, err := svc.Answer(context.Background(), "How do we deploy?")

	require.NoError(t, err)
	assert.Equal(t, "How do we deploy?", result.Question)
	assert.Equal(t, "Use the pipeline [1].", result.Answer)
	assert.Equal(t, []string{"https://wiki.example.com/p/1", "https://wiki.example.com/p/2"}, result.Sources)
	generator.AssertExpectations(t)
}

func TestAnswer_EmptyQuestionRejected(t *testing.T) {
	svc := NewQueryService(new(MockEmbeddingClient), new(MockSimilaritySearcher), nil, 0)

	for _, question := range []string{"", "   ", "\t\n"} {
		_, err := svc.Answer(context.Background(), question)
		assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	}
}

func TestAnswer_NoHitsSkipsGenerator(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	generator := new(MockAnswerGenerator)
	svc := NewQueryService(embedder, searcher, generator, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, DefaultTopK).
		Return([]domain.SearchHit{}, nil)

	result, err := svc.Answer(context.Background(), "Anything indexed?")

	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, result.Answer)
	assert.Equal(t, []string{}, result.Sources)
	generator.AssertNotCalled(t, "GenerateAnswer", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswer_SourcesDedupedInFirstSeenOrder(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	generator := new(MockAnswerGenerator)
	svc := NewQueryService(embedder, searcher, generator, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	// Two chunks of the same page plus one with no link.
	searcher.On("Search", mock.Anything, mock.Anything, DefaultTopK).
		Return([]domain.SearchHit{
			{Title: "A", URL: "https://wiki.example.com/p/1", Text: "chunk 2"},
			{Title: "B", URL: "https://wiki.example.com/p/2", Text: "other"},
			{Title: "A", URL: "https://wiki.example.com/p/1", Text: "chunk 0"},
			{Title: "C", URL: "", Text: "orphan"},
		}, nil)
	generator.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything).
		Return("answer", nil)

	result, err := svc.Answer(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://wiki.example.com/p/1", "https://wiki.example.com/p/2"}, result.Sources)
}

func TestAnswer_GenerationFailureDegradesToPlaceholder(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	generator := new(MockAnswerGenerator)
	svc := NewQueryService(embedder, searcher, generator, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, DefaultTopK).
		Return([]domain.SearchHit{
			{Title: "A", URL: "https://wiki.example.com/p/1", Text: "chunk"},
		}, nil)
	generator.On("GenerateAnswer", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model overloaded"))

	result, err := svc.Answer(context.Background(), "question")

	// Sources survive even when generation fails.
	require.NoError(t, err)
	assert.Equal(t, "[answer generation failed: model overloaded]", result.Answer)
	assert.Equal(t, []string{"https://wiki.example.com/p/1"}, result.Sources)
}

func TestAnswer_NoGeneratorYieldsPlaceholder(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	svc := NewQueryService(embedder, searcher, nil, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, DefaultTopK).
		Return([]domain.SearchHit{
			{Title: "A", URL: "https://wiki.example.com/p/1", Text: "chunk"},
		}, nil)

	result, err := svc.Answer(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, "[openai key not set - answer not generated]", result.Answer)
	assert.Equal(t, []string{"https://wiki.example.com/p/1"}, result.Sources)
}

func TestAnswer_SearchFailureAborts(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	svc := NewQueryService(embedder, searcher, nil, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, DefaultTopK).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "search index unavailable", errors.New("dial tcp")))

	_, err := svc.Answer(context.Background(), "question")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUnavailable, domainErr.Code)
}

func TestAnswer_EmbeddingFailureAborts(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	svc := NewQueryService(embedder, new(MockSimilaritySearcher), nil, 0)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(nil, errors.New("rate limited"))

	_, err := svc.Answer(context.Background(), "question")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed question")
}

func TestAnswer_CustomTopK(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	searcher := new(MockSimilaritySearcher)
	svc := NewQueryService(embedder, searcher, nil, 3)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return([]float32{0.1}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, 3).
		Return([]domain.SearchHit{}, nil)

	_, err := svc.Answer(context.Background(), "question")

	require.NoError(t, err)
	searcher.AssertExpectations(t)
}
