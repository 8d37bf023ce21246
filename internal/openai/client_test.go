package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInferenceAPI is a mock for the OpenAI API
type MockInferenceAPI struct {
	mock.Mock
}

func (m *MockInferenceAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockInferenceAPI) CreateCompletion(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	text := "This is a page about deployment runbooks."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	_, err := client.GenerateEmbedding(context.Background(), "")

	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)

	_, err := client.GenerateEmbedding(context.Background(), "text")

	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	mockAPI.On("CreateEmbeddings", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := client.GenerateEmbedding(context.Background(), "text")

	assert.ErrorContains(t, err, "failed to create embedding")
}

func TestClient_DescribeImage_BuildsVisionMessage(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	imageURL := "https://wiki.example.com/download/att/diagram.png"

	mockAPI.On("CreateCompletion", ctx, mock.MatchedBy(func(messages []openai.ChatCompletionMessage) bool {
		if len(messages) != 1 || messages[0].Role != openai.ChatMessageRoleUser {
			return false
		}
		parts := messages[0].MultiContent
		if len(parts) != 2 {
			return false
		}
		return parts[0].Type == openai.ChatMessagePartTypeText &&
			parts[1].Type == openai.ChatMessagePartTypeImageURL &&
			parts[1].ImageURL.URL == imageURL
	})).Return("An architecture diagram with three services.", nil)

	description, err := client.DescribeImage(ctx, imageURL)

	require.NoError(t, err)
	assert.Equal(t, "An architecture diagram with three services.", description)
	mockAPI.AssertExpectations(t)
}

func TestClient_DescribeImage_EmptyURL(t *testing.T) {
	client := NewClient("")

	_, err := client.DescribeImage(context.Background(), "")

	assert.ErrorIs(t, err, ErrEmptyImageURL)
}

func TestClient_DescribeImage_APIError(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	mockAPI.On("CreateCompletion", mock.Anything, mock.Anything).Return("", errors.New("model overloaded"))

	_, err := client.DescribeImage(context.Background(), "https://example.com/img.png")

	assert.ErrorContains(t, err, "failed to describe image")
}

func TestClient_GenerateAnswer_IncludesQuestionAndContext(t *testing.T) {
	mockAPI := new(MockInferenceAPI)
	client := &Client{api: mockAPI, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()

	mockAPI.On("CreateCompletion", ctx, mock.MatchedBy(func(messages []openai.ChatCompletionMessage) bool {
		if len(messages) != 2 {
			return false
		}
		if messages[0].Role != openai.ChatMessageRoleSystem {
			return false
		}
		user := messages[1].Content
		return messages[1].Role == openai.ChatMessageRoleUser &&
			strings.Contains(user, "Question: What is X?") &&
			strings.Contains(user, "[1] Runbook: Hello world")
	})).Return("X is the deployment target [1].", nil)

	answer, err := client.GenerateAnswer(ctx, "What is X?", "[1] Runbook: Hello world")

	require.NoError(t, err)
	assert.Equal(t, "X is the deployment target [1].", answer)
	mockAPI.AssertExpectations(t)
}
