// Package confluence is a read-only client for the wiki's REST API. It
// lists spaces, pages, attachments, and comments with limit/offset
// pagination, requesting body and history expansions inline so no second
// round trip per record is needed.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cloo-solutions/wikidex/internal/domain"
)

const (
	// DefaultPageLimit is the page size used when listing content.
	DefaultPageLimit = 25
	// DefaultChildLimit is the page size for attachment/comment listings.
	DefaultChildLimit = 50

	defaultTimeout = 30 * time.Second
)

// StatusError is returned for any non-2xx response from the source. A
// status error aborts the current run; retries are the scheduler's job.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source request failed (%d): %s", e.StatusCode, e.URL)
}

// Client issues authenticated, paginated read requests against the
// document source. One request is in flight at a time.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewClient creates a source client for the given base URL (no trailing
// slash) authenticated with a bearer token.
func NewClient(baseURL, token string) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid source base URL: %q", baseURL)
	}

	return &Client{
		baseURL:    parsed,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// AbsoluteURL resolves a reference from the source's _links payloads
// (webui, download) against the base URL.
func (c *Client) AbsoluteURL(ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.baseURL.ResolveReference(parsed).String()
}

// ListSpaces returns one page of spaces plus a flag indicating whether
// more pages may remain (a full page signals more).
func (c *Client) ListSpaces(ctx context.Context, limit, start int) ([]domain.Space, bool, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("start", strconv.Itoa(start))

	var payload listPayload
	if err := c.get(ctx, "/rest/api/space", params, &payload); err != nil {
		return nil, false, err
	}

	spaces := make([]domain.Space, 0, len(payload.Results))
	for _, rec := range payload.Results {
		spaces = append(spaces, domain.Space{Key: rec.Key, Name: rec.Name})
	}
	return spaces, len(payload.Results) == limit, nil
}

// ListPages returns one page of pages in a space with body markup
// expanded. When includeHistory is set (the sync path), creation and
// last-updated timestamps are expanded inline as well.
func (c *Client) ListPages(ctx context.Context, spaceKey string, limit, start int, includeHistory bool) ([]domain.Page, bool, error) {
	expand := "body.storage"
	if includeHistory {
		expand = "body.storage,history,history.lastUpdated"
	}

	params := url.Values{}
	params.Set("spaceKey", spaceKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("start", strconv.Itoa(start))
	params.Set("expand", expand)

	var payload listPayload
	if err := c.get(ctx, "/rest/api/content", params, &payload); err != nil {
		return nil, false, err
	}

	pages := make([]domain.Page, 0, len(payload.Results))
	for _, rec := range payload.Results {
		page := domain.Page{
			ID:        rec.ID,
			Title:     rec.Title,
			SpaceKey:  rec.Space.Key,
			Body:      rec.Body.Storage.Value,
			URL:       c.AbsoluteURL(rec.Links.WebUI),
			CreatedAt: parseTimestamp(rec.History.CreatedDate),
			UpdatedAt: parseTimestamp(rec.History.LastUpdated.When),
		}
		if page.SpaceKey == "" {
			page.SpaceKey = spaceKey
		}
		pages = append(pages, page)
	}
	return pages, len(payload.Results) == limit, nil
}

// ListAttachments returns a page's attachments with history expanded and
// download links resolved to absolute URLs. Attachments without a
// download link are skipped.
func (c *Client) ListAttachments(ctx context.Context, pageID string, limit int) ([]domain.Attachment, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("expand", "history")

	var payload listPayload
	if err := c.get(ctx, "/rest/api/content/"+pageID+"/child/attachment", params, &payload); err != nil {
		return nil, err
	}

	attachments := make([]domain.Attachment, 0, len(payload.Results))
	for _, rec := range payload.Results {
		if rec.Links.Download == "" {
			continue
		}
		attachments = append(attachments, domain.Attachment{
			ID:          rec.ID,
			PageID:      pageID,
			DownloadURL: c.AbsoluteURL(rec.Links.Download),
			CreatedAt:   parseTimestamp(rec.History.CreatedDate),
		})
	}
	return attachments, nil
}

// ListComments returns one page of comments with body markup and history
// expanded. Bodies are raw markup; the normalizer extracts plain text.
func (c *Client) ListComments(ctx context.Context, pageID string, limit, start int) ([]domain.Comment, bool, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("start", strconv.Itoa(start))
	params.Set("expand", "body.storage,history")

	var payload listPayload
	if err := c.get(ctx, "/rest/api/content/"+pageID+"/child/comment", params, &payload); err != nil {
		return nil, false, err
	}

	comments := make([]domain.Comment, 0, len(payload.Results))
	for _, rec := range payload.Results {
		comments = append(comments, domain.Comment{
			ID:        rec.ID,
			PageID:    pageID,
			Body:      rec.Body.Storage.Value,
			CreatedAt: parseTimestamp(rec.History.CreatedDate),
		})
	}
	return comments, len(payload.Results) == limit, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := *c.baseURL
	u.Path = joinPath(u.Path, path)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build source request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode source response: %w", err)
	}
	return nil
}

func joinPath(base, path string) string {
	if base == "" || base == "/" {
		return path
	}
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + path
}

// parseTimestamp parses the source's ISO-8601 UTC timestamps. Absent or
// malformed values yield the zero time, which never classifies as new.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// listPayload covers every paginated listing the client consumes; the
// source nests bodies and history the same way for all content types.
type listPayload struct {
	Results []contentRecord `json:"results"`
}

type contentRecord struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	History struct {
		CreatedDate string `json:"createdDate"`
		LastUpdated struct {
			When string `json:"when"`
		} `json:"lastUpdated"`
	} `json:"history"`
	Links struct {
		WebUI    string `json:"webui"`
		Download string `json:"download"`
	} `json:"_links"`
}
