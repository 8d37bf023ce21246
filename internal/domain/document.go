package domain

import "fmt"

// ImageDescription is text generated for an image by the inference
// collaborator, paired with the image's resolved absolute URL.
type ImageDescription struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// DocumentMetadata locates an index document within the source wiki.
type DocumentMetadata struct {
	Space  string `json:"space"`
	PageID string `json:"page_id"`
	Chunk  int    `json:"chunk"`
}

// IndexDocument is one persisted search-index entry per chunk of a page's
// normalized text. MetadataHolder marks the single document per page that
// receives incremental image/comment appends; it is set on chunk 0.
type IndexDocument struct {
	Title          string             `json:"title"`
	URL            string             `json:"url"`
	Text           string             `json:"text"`
	Metadata       DocumentMetadata   `json:"metadata"`
	Embedding      []float32          `json:"embedding"`
	Images         []ImageDescription `json:"images"`
	Comments       []string           `json:"comments"`
	MetadataHolder bool               `json:"metadata_holder"`
}

// ID returns the document's explicit index identifier, derived from the
// chunk identity (page id, chunk index). Re-ingesting a page overwrites
// the same identifiers in place.
func (d *IndexDocument) ID() string {
	return DocumentID(d.Metadata.PageID, d.Metadata.Chunk)
}

// DocumentID builds the index identifier for a page chunk.
func DocumentID(pageID string, chunk int) string {
	return fmt.Sprintf("%s-%d", pageID, chunk)
}

// SearchHit is a retrieved index document with its similarity score.
// Cosine similarity is shifted by +1.0 so scores are non-negative.
type SearchHit struct {
	Title string
	URL   string
	Text  string
	Score float64
}
