package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/wikidex/internal/domain"
	"github.com/cloo-solutions/wikidex/internal/telemetry"
)

// WatermarkStore persists the completion time of the last successful
// sync run.
type WatermarkStore interface {
	Load() (time.Time, error)
	Save(t time.Time) error
}

// SyncService brings the index up to date with source changes since the
// last run. Pages created or updated after the watermark are re-ingested
// in full. For pages that did not change, attachments and comments newer
// than the watermark are appended to the page's metadata holder document.
// The watermark advances only after the whole run succeeds.
type SyncService struct {
	ingest      *IngestService
	source      SourceClient
	attachments AttachmentLister
	normalizer  *Normalizer
	index       Indexer
	watermarks  WatermarkStore
	now         func() time.Time
}

func NewSyncService(ingest *IngestService, source SourceClient, attachments AttachmentLister, normalizer *Normalizer, index Indexer, watermarks WatermarkStore) *SyncService {
	return &SyncService{
		ingest:      ingest,
		source:      source,
		attachments: attachments,
		normalizer:  normalizer,
		index:       index,
		watermarks:  watermarks,
		now:         time.Now,
	}
}

// SyncSpace runs one incremental pass over a space.
func (s *SyncService) SyncSpace(ctx context.Context, spaceKey string) error {
	ctx, span := telemetry.StartSpan(ctx, "SyncService.SyncSpace", telemetry.SpanAttributes{
		SpaceKey:  spaceKey,
		Operation: "sync",
	})
	defer span.End()

	since, err := s.watermarks.Load()
	if err != nil {
		return fmt.Errorf("failed to load sync watermark: %w", err)
	}

	if err := s.syncSpaceSince(ctx, spaceKey, since); err != nil {
		return err
	}

	return s.advanceWatermark(spaceKey)
}

// SyncAllSpaces runs one incremental pass over every space. The watermark
// is loaded once up front so later spaces compare against the same point
// in time, and saved once after all spaces succeed.
func (s *SyncService) SyncAllSpaces(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "SyncService.SyncAllSpaces", telemetry.SpanAttributes{
		Operation: "sync",
	})
	defer span.End()

	since, err := s.watermarks.Load()
	if err != nil {
		return fmt.Errorf("failed to load sync watermark: %w", err)
	}

	limit := s.ingest.cfg.PageLimit
	seen := 0
	start := 0
	for seen < s.ingest.cfg.MaxSpaces {
		spaces, more, err := s.source.ListSpaces(ctx, limit, start)
		if err != nil {
			return err
		}
		if len(spaces) == 0 {
			break
		}

		for _, space := range spaces {
			if err := s.syncSpaceSince(ctx, space.Key, since); err != nil {
				return err
			}
			seen++
			if seen >= s.ingest.cfg.MaxSpaces {
				break
			}
		}

		if !more {
			break
		}
		start += limit
	}

	return s.advanceWatermark("all")
}

func (s *SyncService) advanceWatermark(scope string) error {
	completed := s.now().UTC()
	if err := s.watermarks.Save(completed); err != nil {
		return fmt.Errorf("failed to save sync watermark: %w", err)
	}
	log.Printf("sync of %s complete, watermark advanced to %s", scope, completed.Format(time.RFC3339))
	return nil
}

func (s *SyncService) syncSpaceSince(ctx context.Context, spaceKey string, since time.Time) error {
	if since.IsZero() {
		log.Printf("no previous sync for space %s, treating every page as new", spaceKey)
	} else {
		log.Printf("syncing space %s, changes since %s", spaceKey, since.Format(time.RFC3339))
	}

	limit := s.ingest.cfg.PageLimit
	seen := 0
	start := 0
	for seen < s.ingest.cfg.MaxPages {
		pages, more, err := s.source.ListPages(ctx, spaceKey, limit, start, true)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			break
		}

		for _, page := range pages {
			if err := s.syncPage(ctx, page, since); err != nil {
				return err
			}
			seen++
			if seen >= s.ingest.cfg.MaxPages {
				break
			}
		}

		if !more {
			break
		}
		start += limit
	}

	return nil
}

// syncPage applies one page's changes. A re-ingested page already carries
// its full image and comment lists, so the append phase only runs for
// pages classified as unchanged.
func (s *SyncService) syncPage(ctx context.Context, page domain.Page, since time.Time) error {
	switch change := domain.ClassifyPage(page.CreatedAt, page.UpdatedAt, since); change {
	case domain.ChangeNew, domain.ChangeUpdated:
		log.Printf("page %s is %s, re-ingesting", page.ID, change)
		telemetry.AddBreadcrumb(ctx, "sync", fmt.Sprintf("page %s is %s, re-ingesting", page.ID, change))
		return s.ingest.IngestPage(ctx, page)
	}

	if err := s.appendNewImages(ctx, page, since); err != nil {
		return err
	}
	return s.appendNewComments(ctx, page, since)
}

func (s *SyncService) appendNewImages(ctx context.Context, page domain.Page, since time.Time) error {
	attachments, err := s.attachments.ListAttachments(ctx, page.ID, attachmentLimit)
	if err != nil {
		return fmt.Errorf("failed to list attachments for page %s: %w", page.ID, err)
	}

	var images []domain.ImageDescription
	for _, att := range attachments {
		if !domain.CreatedSince(att.CreatedAt, since) {
			continue
		}
		images = append(images, s.normalizer.DescribeAttachment(ctx, att))
	}
	if len(images) == 0 {
		return nil
	}

	log.Printf("appending %d new image description(s) to page %s", len(images), page.ID)
	return s.index.AppendImages(ctx, page.ID, images)
}

func (s *SyncService) appendNewComments(ctx context.Context, page domain.Page, since time.Time) error {
	var texts []string
	limit := s.ingest.cfg.CommentLimit
	start := 0
	for {
		comments, more, err := s.source.ListComments(ctx, page.ID, limit, start)
		if err != nil {
			return err
		}
		for _, comment := range comments {
			if !domain.CreatedSince(comment.CreatedAt, since) {
				continue
			}
			texts = append(texts, s.normalizer.NormalizeComment(comment.Body))
		}
		if !more {
			break
		}
		start += limit
	}
	if len(texts) == 0 {
		return nil
	}

	log.Printf("appending %d new comment(s) to page %s", len(texts), page.ID)
	return s.index.AppendComments(ctx, page.ID, texts)
}
