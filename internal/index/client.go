// Package index wraps the OpenSearch document store: index-or-replace of
// chunk documents, partial append updates via painless scripts, and
// vector similarity search with a client-supplied scoring expression.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/cloo-solutions/wikidex/internal/domain"
)

const (
	// DefaultIndexName is the index holding one document per page chunk.
	DefaultIndexName = "confluence"

	// scoreScript shifts cosine similarity by +1.0 so scores stay
	// non-negative, which the scoring engine requires.
	scoreScript = "cosineSimilarity(params.query_vector, 'embedding') + 1.0"

	appendImagesScript   = "ctx._source.images.addAll(params.new_images)"
	appendCommentsScript = "ctx._source.comments.addAll(params.new_comments)"
)

type Config struct {
	Addresses []string
	Index     string
	// Transport overrides the HTTP transport; tests use it to capture
	// requests without a live cluster.
	Transport http.RoundTripper
}

// Client is a thin wrapper over the OpenSearch API client scoped to a
// single index.
type Client struct {
	os    *opensearch.Client
	index string
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("at least one index address is required")
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index client: %w", err)
	}

	return &Client{os: osClient, index: cfg.Index}, nil
}

// EnsureIndex creates the index with its vector mapping if it does not
// exist yet. Safe to call on every run.
func (c *Client) EnsureIndex(ctx context.Context) error {
	existsRes, err := opensearchapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer existsRes.Body.Close()

	if existsRes.StatusCode == http.StatusOK {
		return nil
	}
	if existsRes.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to check index: %s", existsRes.String())
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"title": map[string]any{"type": "text"},
				"url":   map[string]any{"type": "keyword"},
				"text":  map[string]any{"type": "text"},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": 1536,
				},
				"metadata": map[string]any{
					"properties": map[string]any{
						"space":   map[string]any{"type": "keyword"},
						"page_id": map[string]any{"type": "keyword"},
						"chunk":   map[string]any{"type": "integer"},
					},
				},
				"images": map[string]any{
					"properties": map[string]any{
						"url":         map[string]any{"type": "keyword"},
						"description": map[string]any{"type": "text"},
					},
				},
				"comments":        map[string]any{"type": "text"},
				"metadata_holder": map[string]any{"type": "boolean"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	createRes, err := opensearchapi.IndicesCreateRequest{
		Index: c.index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}
	return nil
}

// IndexChunk writes or replaces one chunk document under its explicit
// identifier, so re-ingesting a page overwrites its previous documents.
func (c *Client) IndexChunk(ctx context.Context, doc domain.IndexDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal index document: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "index write failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.NewDomainError(domain.ErrCodeUnavailable, fmt.Sprintf("index write failed: %s", res.String()))
	}
	return nil
}

// AppendImages appends new image descriptions to the page's
// metadata-holder document (chunk 0) in place.
func (c *Client) AppendImages(ctx context.Context, pageID string, images []domain.ImageDescription) error {
	if len(images) == 0 {
		return nil
	}
	return c.scriptUpdate(ctx, pageID, appendImagesScript, map[string]any{"new_images": images})
}

// AppendComments appends new comment texts to the page's metadata-holder
// document (chunk 0) in place.
func (c *Client) AppendComments(ctx context.Context, pageID string, comments []string) error {
	if len(comments) == 0 {
		return nil
	}
	return c.scriptUpdate(ctx, pageID, appendCommentsScript, map[string]any{"new_comments": comments})
}

func (c *Client) scriptUpdate(ctx context.Context, pageID, script string, params map[string]any) error {
	payload := map[string]any{
		"script": map[string]any{
			"source": script,
			"lang":   "painless",
			"params": params,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal update script: %w", err)
	}

	res, err := opensearchapi.UpdateRequest{
		Index:      c.index,
		DocumentID: domain.DocumentID(pageID, 0),
		Body:       bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "index update failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.NewDomainError(domain.ErrCodeUnavailable, fmt.Sprintf("index update failed: %s", res.String()))
	}
	return nil
}

// DeleteStaleChunks removes a page's chunk documents at or above
// fromChunk. A re-ingest that produced fewer chunks than the previous
// run calls this with the new chunk count so no stale tail documents
// keep serving retrieval.
func (c *Client) DeleteStaleChunks(ctx context.Context, pageID string, fromChunk int) error {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"metadata.page_id": pageID}},
					map[string]any{"range": map[string]any{"metadata.chunk": map[string]any{"gte": fromChunk}}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal delete query: %w", err)
	}

	res, err := opensearchapi.DeleteByQueryRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "index delete failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.NewDomainError(domain.ErrCodeUnavailable, fmt.Sprintf("index delete failed: %s", res.String()))
	}
	return nil
}

// Search returns the topK documents ranked by shifted cosine similarity
// between the query embedding and each document's stored embedding.
func (c *Client) Search(ctx context.Context, embedding []float32, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 5
	}

	query := map[string]any{
		"size": topK,
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": scoreScript,
					"params": map[string]any{"query_vector": embedding},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, c.os)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnavailable, "index search failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, domain.NewDomainError(domain.ErrCodeUnavailable, fmt.Sprintf("index search failed: %s", res.String()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Title string `json:"title"`
					URL   string `json:"url"`
					Text  string `json:"text"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, domain.SearchHit{
			Title: h.Source.Title,
			URL:   h.Source.URL,
			Text:  h.Source.Text,
			Score: h.Score,
		})
	}
	return hits, nil
}
