package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/cloo-solutions/wikidex/internal/domain"
)

const (
	// DefaultDescribeDelay is the throttle between successive inference
	// calls, keeping within the collaborator's rate limit. A deliberate
	// delay, not a retry.
	DefaultDescribeDelay = 200 * time.Millisecond

	// noKeyPlaceholder stands in for a description when no inference
	// credential is configured.
	noKeyPlaceholder = "[openai key not set - image not described]"

	attachmentLimit = 50
)

// ImageDescriber obtains a textual description for the image at a URL.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// AttachmentLister fetches a page's attachments from the source.
type AttachmentLister interface {
	ListAttachments(ctx context.Context, pageID string, limit int) ([]domain.Attachment, error)
}

// Normalizer converts a page's rich markup into plain text, replacing
// embedded images with generated descriptions and collecting attachment
// descriptions. Description failures never drop a page: they degrade to
// sentinel text and processing continues.
type Normalizer struct {
	describer   ImageDescriber // nil when no inference credential is set
	attachments AttachmentLister
	baseURL     *url.URL
	throttle    time.Duration
	sleep       func(time.Duration)
}

type NormalizerConfig struct {
	Describer   ImageDescriber
	Attachments AttachmentLister
	BaseURL     string
	Throttle    time.Duration
}

func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source base URL: %w", err)
	}

	return &Normalizer{
		describer:   cfg.Describer,
		attachments: cfg.Attachments,
		baseURL:     base,
		throttle:    cfg.Throttle,
		sleep:       time.Sleep,
	}, nil
}

// NormalizePage produces plain text with embedded images replaced by
// bracketed description text, plus the list of image records: inline
// images first, then attachment descriptions (attachments are not
// necessarily referenced in the body, so they are never inlined).
func (n *Normalizer) NormalizePage(ctx context.Context, pageID, markup string) (string, []domain.ImageDescription, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	images := []domain.ImageDescription{}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		if src == "" {
			sel.Remove()
			return
		}

		imageURL := n.resolveURL(src)
		description := n.describe(ctx, imageURL)
		images = append(images, domain.ImageDescription{URL: imageURL, Description: description})

		sel.ReplaceWithNodes(&html.Node{
			Type: html.TextNode,
			Data: fmt.Sprintf("[Image description: %s]", description),
		})

		if n.throttle > 0 {
			n.sleep(n.throttle)
		}
	})

	images = append(images, n.describeAttachments(ctx, pageID)...)

	return extractText(doc), images, nil
}

// NormalizeComment extracts a comment's plain text from its markup.
func (n *Normalizer) NormalizeComment(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.TrimSpace(markup)
	}
	return extractText(doc)
}

// DescribeAttachment produces the image record for a single attachment,
// degrading to sentinel text on failure. The sync path uses it for
// attachments created since the watermark.
func (n *Normalizer) DescribeAttachment(ctx context.Context, att domain.Attachment) domain.ImageDescription {
	description := n.describe(ctx, att.DownloadURL)
	if n.throttle > 0 {
		n.sleep(n.throttle)
	}
	return domain.ImageDescription{URL: att.DownloadURL, Description: description}
}

// describeAttachments lists and describes the page's attachments. A
// listing failure is non-fatal: the page is indexed without them.
func (n *Normalizer) describeAttachments(ctx context.Context, pageID string) []domain.ImageDescription {
	if n.attachments == nil {
		return nil
	}

	attachments, err := n.attachments.ListAttachments(ctx, pageID, attachmentLimit)
	if err != nil {
		log.Printf("failed to list attachments for page %s: %v", pageID, err)
		return nil
	}

	described := make([]domain.ImageDescription, 0, len(attachments))
	for _, att := range attachments {
		described = append(described, n.DescribeAttachment(ctx, att))
	}
	return described
}

func (n *Normalizer) describe(ctx context.Context, imageURL string) string {
	if n.describer == nil {
		return noKeyPlaceholder
	}

	description, err := n.describer.DescribeImage(ctx, imageURL)
	if err != nil {
		return fmt.Sprintf("[image description failed: %v]", err)
	}
	return strings.TrimSpace(description)
}

func (n *Normalizer) resolveURL(src string) string {
	parsed, err := url.Parse(src)
	if err != nil {
		return src
	}
	if parsed.IsAbs() {
		return src
	}
	return n.baseURL.ResolveReference(parsed).String()
}

// extractText concatenates the document's trimmed text nodes joined by
// single spaces.
func extractText(doc *goquery.Document) string {
	var parts []string
	for _, node := range doc.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(node *html.Node, parts *[]string) {
	if node.Type == html.TextNode {
		if trimmed := strings.TrimSpace(node.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}
