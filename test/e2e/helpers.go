//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/wikidex/internal/api/handlers"
	"github.com/cloo-solutions/wikidex/internal/confluence"
	"github.com/cloo-solutions/wikidex/internal/domain"
	"github.com/cloo-solutions/wikidex/internal/server"
	"github.com/cloo-solutions/wikidex/internal/service"
)

// E2ETestEnv wires real services against a stub wiki backend, a
// deterministic embedder, and an in-memory vector index.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Wiki       *StubWiki
	WikiServer *httptest.Server
	Index      *MemoryIndex
	Source     *confluence.Client
	Ingest     *service.IngestService
	Sync       *service.SyncService
	Query      *service.QueryService
	Watermarks *MemoryWatermarks
	APIServer  *httptest.Server
	HTTPClient *http.Client
}

// SetupE2EEnv builds the full pipeline around stub collaborators.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	wiki := NewStubWiki()
	wikiServer := httptest.NewServer(wiki)

	source, err := confluence.NewClient(wikiServer.URL, "e2e-token")
	if err != nil {
		t.Fatalf("failed to create source client: %v", err)
	}

	embedder := &HashEmbedder{}
	index := NewMemoryIndex()

	normalizer, err := service.NewNormalizer(service.NormalizerConfig{
		Describer:   &StubDescriber{},
		Attachments: source,
		BaseURL:     wikiServer.URL,
	})
	if err != nil {
		t.Fatalf("failed to create normalizer: %v", err)
	}

	ingest := service.NewIngestService(source, normalizer, embedder, index, service.DefaultIngestConfig())
	watermarks := &MemoryWatermarks{}
	syncSvc := service.NewSyncService(ingest, source, source, normalizer, index, watermarks)

	query := service.NewQueryService(embedder, index, &StubGenerator{}, service.DefaultTopK)

	apiServer := httptest.NewServer(server.NewRouter(server.RouterConfig{
		QAHandler: handlers.NewQAHandler(query),
	}))

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Wiki:       wiki,
		WikiServer: wikiServer,
		Index:      index,
		Source:     source,
		Ingest:     ingest,
		Sync:       syncSvc,
		Query:      query,
		Watermarks: watermarks,
		APIServer:  apiServer,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.APIServer != nil {
		e.APIServer.Close()
	}
	if e.WikiServer != nil {
		e.WikiServer.Close()
	}
}

// GetQA issues a GET /qa request against the API server.
func (e *E2ETestEnv) GetQA(question string) (int, handlers.QAResponse, error) {
	resp, err := e.HTTPClient.Get(e.APIServer.URL + "/qa?q=" + strings.ReplaceAll(question, " ", "+"))
	if err != nil {
		return 0, handlers.QAResponse{}, err
	}
	defer resp.Body.Close()

	var body handlers.QAResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, handlers.QAResponse{}, err
	}
	return resp.StatusCode, body, nil
}

// StubWiki serves the wiki REST shapes from in-memory fixtures.
type StubWiki struct {
	mu       sync.Mutex
	Spaces   []map[string]any
	Pages    map[string][]map[string]any // space key -> page records
	Comments map[string][]map[string]any // page id -> comment records
}

func NewStubWiki() *StubWiki {
	return &StubWiki{
		Pages:    map[string][]map[string]any{},
		Comments: map[string][]map[string]any{},
	}
}

// AddSpace registers a space record in the stub.
func (s *StubWiki) AddSpace(key, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spaces = append(s.Spaces, map[string]any{"key": key, "name": name})
}

// AddPage registers a page record in the stub.
func (s *StubWiki) AddPage(spaceKey, id, title, body string, created, updated time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pages[spaceKey] = append(s.Pages[spaceKey], map[string]any{
		"id":    id,
		"title": title,
		"body":  map[string]any{"storage": map[string]any{"value": body}},
		"history": map[string]any{
			"createdDate": created.UTC().Format(time.RFC3339),
			"lastUpdated": map[string]any{"when": updated.UTC().Format(time.RFC3339)},
		},
		"space":  map[string]any{"key": spaceKey},
		"_links": map[string]any{"webui": "/pages/" + id},
	})
}

// AddComment registers a comment record for a page.
func (s *StubWiki) AddComment(pageID, id, body string, created time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Comments[pageID] = append(s.Comments[pageID], map[string]any{
		"id":   id,
		"body": map[string]any{"storage": map[string]any{"value": body}},
		"history": map[string]any{
			"createdDate": created.UTC().Format(time.RFC3339),
		},
	})
}

func (s *StubWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.URL.Path == "/rest/api/space":
		writeListing(w, s.Spaces)
	case r.URL.Path == "/rest/api/content":
		spaceKey := r.URL.Query().Get("spaceKey")
		writeListing(w, s.Pages[spaceKey])
	case strings.HasSuffix(r.URL.Path, "/child/attachment"):
		writeListing(w, nil)
	case strings.HasSuffix(r.URL.Path, "/child/comment"):
		// /rest/api/content/{id}/child/comment
		pageID := pathSegment(r.URL.Path, 3)
		writeListing(w, s.Comments[pageID])
	default:
		http.NotFound(w, r)
	}
}

func pathSegment(path string, i int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func writeListing(w http.ResponseWriter, results []map[string]any) {
	if results == nil {
		results = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

// HashEmbedder produces deterministic vectors: each word increments a
// bucket, so texts sharing words land near each other.
type HashEmbedder struct{}

func (h *HashEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var sum int
		for _, r := range word {
			sum += int(r)
		}
		v[sum%len(v)]++
	}
	// Avoid the zero vector for empty text.
	v[0]++
	return v, nil
}

// StubDescriber returns a canned description for every image.
type StubDescriber struct{}

func (d *StubDescriber) DescribeImage(_ context.Context, imageURL string) (string, error) {
	return "An image at " + imageURL, nil
}

// StubGenerator answers by echoing the first context block.
type StubGenerator struct{}

func (g *StubGenerator) GenerateAnswer(_ context.Context, question, contextText string) (string, error) {
	first := strings.SplitN(contextText, "\n\n", 2)[0]
	return fmt.Sprintf("Answer to %q based on %s", question, first), nil
}

// MemoryIndex is an in-memory stand-in for the vector index: it stores
// chunk documents by ID and ranks searches by shifted cosine similarity.
type MemoryIndex struct {
	mu   sync.Mutex
	Docs map[string]domain.IndexDocument
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{Docs: map[string]domain.IndexDocument{}}
}

func (m *MemoryIndex) IndexChunk(_ context.Context, doc domain.IndexDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Docs[doc.ID()] = doc
	return nil
}

func (m *MemoryIndex) AppendImages(_ context.Context, pageID string, images []domain.ImageDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.DocumentID(pageID, 0)
	doc, ok := m.Docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	doc.Images = append(doc.Images, images...)
	m.Docs[id] = doc
	return nil
}

func (m *MemoryIndex) AppendComments(_ context.Context, pageID string, comments []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.DocumentID(pageID, 0)
	doc, ok := m.Docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	doc.Comments = append(doc.Comments, comments...)
	m.Docs[id] = doc
	return nil
}

func (m *MemoryIndex) DeleteStaleChunks(_ context.Context, pageID string, fromChunk int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, doc := range m.Docs {
		if doc.Metadata.PageID == pageID && doc.Metadata.Chunk >= fromChunk {
			delete(m.Docs, id)
		}
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, embedding []float32, topK int) ([]domain.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := make([]domain.SearchHit, 0, len(m.Docs))
	for _, doc := range m.Docs {
		hits = append(hits, domain.SearchHit{
			Title: doc.Title,
			URL:   doc.URL,
			Text:  doc.Text,
			Score: cosine(embedding, doc.Embedding) + 1.0,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MemoryWatermarks holds the sync watermark in memory.
type MemoryWatermarks struct {
	mu    sync.Mutex
	value time.Time
}

func (m *MemoryWatermarks) Load() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryWatermarks) Save(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = t
	return nil
}
