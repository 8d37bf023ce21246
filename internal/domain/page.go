package domain

import "time"

// Space is a named collection of pages in the source wiki.
type Space struct {
	Key  string
	Name string
}

// Page is a document within a space, read-only from this system's
// perspective. URL is the canonical web link, already resolved to an
// absolute URL by the source client.
type Page struct {
	ID        string
	Title     string
	SpaceKey  string
	Body      string // raw storage-format markup
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attachment is a binary resource attached to a page. Only the download
// URL is kept; the binary itself is never stored locally.
type Attachment struct {
	ID          string
	PageID      string
	DownloadURL string
	CreatedAt   time.Time
}

// Comment is a text annotation on a page. Body is raw markup; the
// normalizer extracts plain text before indexing.
type Comment struct {
	ID        string
	PageID    string
	Body      string
	CreatedAt time.Time
}

// Validate checks that a page carries the fields ingestion depends on.
func (p *Page) Validate() error {
	if p.ID == "" {
		return ErrMissingPageID
	}
	if p.SpaceKey == "" {
		return ErrMissingSpaceKey
	}
	return nil
}
