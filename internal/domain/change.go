package domain

import "time"

// Change classifies a page against the sync watermark.
type Change int

const (
	// ChangeUnchanged means neither timestamp is after the watermark.
	ChangeUnchanged Change = iota
	// ChangeNew means the page was created after the watermark.
	ChangeNew
	// ChangeUpdated means the page existed before the watermark but was
	// updated after it.
	ChangeUpdated
)

func (c Change) String() string {
	switch c {
	case ChangeNew:
		return "new"
	case ChangeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ClassifyPage compares a page's creation/update timestamps against the
// watermark. Comparisons are strictly greater-than: a timestamp exactly
// equal to the watermark counts as already synced. A record created in the
// same instant the watermark was taken is therefore skipped; the boundary
// is pinned by tests rather than special-cased.
func ClassifyPage(created, updated, watermark time.Time) Change {
	if created.After(watermark) {
		return ChangeNew
	}
	if updated.After(watermark) {
		return ChangeUpdated
	}
	return ChangeUnchanged
}

// CreatedSince reports whether a record's creation timestamp is strictly
// after the watermark. Used for attachments and comments, which are
// appended individually rather than re-ingested with the page.
func CreatedSince(created, watermark time.Time) bool {
	return created.After(watermark)
}
