//go:build integration

package index

import (
	"context"
	"testing"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/wikidex/internal/domain"
	"github.com/cloo-solutions/wikidex/internal/testutil"
)

// unitVector returns a 1536-dim vector pointing along one axis, so cosine
// similarity between distinct axes is exactly zero.
func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

func refreshIndex(ctx context.Context, t *testing.T, endpoint, index string) {
	t.Helper()
	raw, err := opensearch.NewClient(opensearch.Config{Addresses: []string{endpoint}})
	require.NoError(t, err)
	res, err := opensearchapi.IndicesRefreshRequest{Index: []string{index}}.Do(ctx, raw)
	require.NoError(t, err)
	res.Body.Close()
}

func TestClient_Integration_IndexAppendSearch(t *testing.T) {
	ctx := context.Background()

	osC := testutil.NewOpenSearchContainer(ctx, t)
	defer osC.Terminate(ctx)

	client, err := NewClient(Config{
		Addresses: []string{osC.Endpoint()},
		Index:     "confluence-it",
	})
	require.NoError(t, err)

	require.NoError(t, client.EnsureIndex(ctx))
	// Idempotent on an existing index.
	require.NoError(t, client.EnsureIndex(ctx))

	docs := []domain.IndexDocument{
		{
			Title:          "Deploy guide",
			URL:            "https://wiki.example.com/p/1",
			Text:           "Use the pipeline.",
			Metadata:       domain.DocumentMetadata{Space: "ENG", PageID: "1", Chunk: 0},
			Embedding:      unitVector(0),
			Images:         []domain.ImageDescription{},
			Comments:       []string{},
			MetadataHolder: true,
		},
		{
			Title:          "Runbook",
			URL:            "https://wiki.example.com/p/2",
			Text:           "Page the on-call.",
			Metadata:       domain.DocumentMetadata{Space: "ENG", PageID: "2", Chunk: 0},
			Embedding:      unitVector(1),
			Images:         []domain.ImageDescription{},
			Comments:       []string{},
			MetadataHolder: true,
		},
	}
	for _, doc := range docs {
		require.NoError(t, client.IndexChunk(ctx, doc))
	}

	require.NoError(t, client.AppendComments(ctx, "1", []string{"first comment"}))
	require.NoError(t, client.AppendImages(ctx, "1", []domain.ImageDescription{
		{URL: "https://wiki.example.com/d/a.png", Description: "A diagram."},
	}))

	refreshIndex(ctx, t, osC.Endpoint(), "confluence-it")

	hits, err := client.Search(ctx, unitVector(0), 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	// The aligned vector scores 2.0 (cosine 1 + 1), the orthogonal one 1.0.
	assert.Equal(t, "Deploy guide", hits[0].Title)
	assert.InDelta(t, 2.0, hits[0].Score, 0.01)
	assert.Equal(t, "Runbook", hits[1].Title)
	assert.InDelta(t, 1.0, hits[1].Score, 0.01)
}

func TestClient_Integration_ReingestOverwrites(t *testing.T) {
	ctx := context.Background()

	osC := testutil.NewOpenSearchContainer(ctx, t)
	defer osC.Terminate(ctx)

	client, err := NewClient(Config{
		Addresses: []string{osC.Endpoint()},
		Index:     "confluence-it",
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureIndex(ctx))

	doc := domain.IndexDocument{
		Title:          "Original",
		URL:            "https://wiki.example.com/p/1",
		Text:           "old text",
		Metadata:       domain.DocumentMetadata{Space: "ENG", PageID: "1", Chunk: 0},
		Embedding:      unitVector(0),
		Images:         []domain.ImageDescription{},
		Comments:       []string{},
		MetadataHolder: true,
	}
	require.NoError(t, client.IndexChunk(ctx, doc))

	doc.Title = "Rewritten"
	doc.Text = "new text"
	require.NoError(t, client.IndexChunk(ctx, doc))

	refreshIndex(ctx, t, osC.Endpoint(), "confluence-it")

	hits, err := client.Search(ctx, unitVector(0), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Rewritten", hits[0].Title)
	assert.Equal(t, "new text", hits[0].Text)
}

func TestClient_Integration_DeleteStaleChunks(t *testing.T) {
	ctx := context.Background()

	osC := testutil.NewOpenSearchContainer(ctx, t)
	defer osC.Terminate(ctx)

	client, err := NewClient(Config{
		Addresses: []string{osC.Endpoint()},
		Index:     "confluence-it",
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureIndex(ctx))

	for chunk := 0; chunk < 3; chunk++ {
		require.NoError(t, client.IndexChunk(ctx, domain.IndexDocument{
			Title:          "Shrinking",
			URL:            "https://wiki.example.com/p/1",
			Text:           "chunk text",
			Metadata:       domain.DocumentMetadata{Space: "ENG", PageID: "1", Chunk: chunk},
			Embedding:      unitVector(chunk),
			Images:         []domain.ImageDescription{},
			Comments:       []string{},
			MetadataHolder: chunk == 0,
		}))
	}
	refreshIndex(ctx, t, osC.Endpoint(), "confluence-it")

	// The page shrank to one chunk; the tail documents must go.
	require.NoError(t, client.DeleteStaleChunks(ctx, "1", 1))
	refreshIndex(ctx, t, osC.Endpoint(), "confluence-it")

	hits, err := client.Search(ctx, unitVector(0), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Shrinking", hits[0].Title)
}
