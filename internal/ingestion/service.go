// Package ingestion turns posting URLs and raw HTML into persisted
// JobPosting records. Failures are recorded on the posting row, not
// returned as errors: a bad URL still yields a record the UI can render.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/fetch"
)

// Default timeouts; overridable via Options
const (
	DefaultScrapeTimeout  = 20 * time.Second
	DefaultExtractTimeout = 30 * time.Second
)

// Scraper fetches and text-extracts a posting page
type Scraper interface {
	Scrape(ctx context.Context, urlStr string) (*fetch.Page, error)
}

// Store is the persistence surface the ingestion service needs
type Store interface {
	CreateJobPosting(ctx context.Context, input *db.JobPostingCreateInput) (*db.JobPosting, bool, error)
	GetJobPostingByID(ctx context.Context, id uuid.UUID) (*db.JobPosting, error)
	GetJobPostingByNormalizedURL(ctx context.Context, userID uuid.UUID, normalizedURL string) (*db.JobPosting, error)
	DeleteJobPostingIfPending(ctx context.Context, id uuid.UUID) error
	MarkJobPostingScraped(ctx context.Context, id uuid.UUID, extracted *db.JobPostingExtractedFields) (*db.JobPosting, error)
	MarkJobPostingExtractionFailed(ctx context.Context, id uuid.UUID, description, rawHTML, contentHash, errorMsg string) (*db.JobPosting, error)
	MarkJobPostingFailed(ctx context.Context, id uuid.UUID, status, errorMsg string) (*db.JobPosting, error)
	ListJobPostings(ctx context.Context, userID uuid.UUID, opts db.ListJobPostingsOptions) ([]db.JobPosting, int, error)
}

// Options configures the ingestion service
type Options struct {
	ScrapeTimeout  time.Duration // per scrape attempt
	ExtractTimeout time.Duration // per extraction call
	Verbose        bool
}

// Service runs the ingestion pipeline: normalize, dedup, scrape, extract,
// persist.
type Service struct {
	store     Store
	scraper   Scraper
	extractor Extractor
	opts      Options

	// group collapses concurrent ingests of the same (user, URL) so the
	// page is scraped at most once. The UNIQUE constraint on the posting
	// table is the backstop across processes.
	group singleflight.Group
}

// NewService creates an ingestion service
func NewService(store Store, scraper Scraper, extractor Extractor, opts Options) *Service {
	if opts.ScrapeTimeout <= 0 {
		opts.ScrapeTimeout = DefaultScrapeTimeout
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = DefaultExtractTimeout
	}
	return &Service{store: store, scraper: scraper, extractor: extractor, opts: opts}
}

// IngestFromURL ingests the posting at a URL for a user. Re-ingesting a URL
// that normalizes to an existing posting returns that posting unchanged,
// whatever its status. Scrape and extraction failures come back as posting
// records in a failed state, never as errors; the error return is reserved
// for invalid input, storage faults and cancellation. A canceled context
// rolls back the in-flight row, so the URL can be ingested again later.
func (s *Service) IngestFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*db.JobPosting, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	key := userID.String() + "|" + normalized
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.ingestURL(ctx, userID, rawURL, normalized)
	})
	if err != nil {
		return nil, err
	}
	return result.(*db.JobPosting), nil
}

func (s *Service) ingestURL(ctx context.Context, userID uuid.UUID, rawURL, normalized string) (*db.JobPosting, error) {
	existing, err := s.store.GetJobPostingByNormalizedURL(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	posting, created, err := s.store.CreateJobPosting(ctx, &db.JobPostingCreateInput{
		UserID:        userID,
		URL:           rawURL,
		NormalizedURL: normalized,
		Platform:      string(fetch.DetectPlatform(rawURL)),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race to another process
		return posting, nil
	}

	page, err := s.scrapeWithRetry(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.rollbackPending(ctx, posting.ID)
		}
		return s.store.MarkJobPostingFailed(ctx, posting.ID, db.PostingStatusFailed,
			fmt.Sprintf("scrape failed: %v", err))
	}

	result, err := s.extractAndPersist(ctx, posting.ID, page)
	if err != nil && ctx.Err() != nil {
		return nil, s.rollbackPending(ctx, posting.ID)
	}
	return result, err
}

// IngestFromHTML runs the same pipeline on caller-supplied page content,
// skipping the fetch step.
func (s *Service) IngestFromHTML(ctx context.Context, userID uuid.UUID, html, rawURL string) (*db.JobPosting, error) {
	if html == "" {
		return nil, fmt.Errorf("html content is empty")
	}
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetJobPostingByNormalizedURL(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	page, err := fetch.PageFromHTML(html, rawURL)
	if err != nil {
		return nil, err
	}

	posting, created, err := s.store.CreateJobPosting(ctx, &db.JobPostingCreateInput{
		UserID:        userID,
		URL:           rawURL,
		NormalizedURL: normalized,
		Platform:      string(page.Platform),
		RawHTML:       html,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return posting, nil
	}

	result, err := s.extractAndPersist(ctx, posting.ID, page)
	if err != nil && ctx.Err() != nil {
		return nil, s.rollbackPending(ctx, posting.ID)
	}
	return result, err
}

// rollbackPending removes the pending row this call created, so a later
// ingest of the same URL starts from scratch instead of finding a dead row.
// The delete runs on a detached context: the caller's is already canceled.
func (s *Service) rollbackPending(ctx context.Context, id uuid.UUID) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteJobPostingIfPending(cleanupCtx, id); err != nil {
		log.Printf("[INGEST] failed to roll back pending posting %s: %v", id, err)
	}
	return ctx.Err()
}

// scrapeWithRetry runs one scrape attempt under the configured timeout and
// retries exactly once on failure.
func (s *Service) scrapeWithRetry(ctx context.Context, rawURL string) (*fetch.Page, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.ScrapeTimeout)
		page, err := s.scraper.Scrape(attemptCtx, rawURL)
		cancel()
		if err == nil {
			return page, nil
		}
		lastErr = err
		if s.opts.Verbose {
			log.Printf("[INGEST] scrape attempt %d failed for %s: %v", attempt+1, rawURL, err)
		}
	}
	return nil, lastErr
}

// extractAndPersist runs structured extraction on a fetched page and records
// the outcome on the posting. An extraction failure keeps the raw text.
func (s *Service) extractAndPersist(ctx context.Context, postingID uuid.UUID, page *fetch.Page) (*db.JobPosting, error) {
	contentHash := db.HashPostingContent(page.Text)

	extractCtx, cancel := context.WithTimeout(ctx, s.opts.ExtractTimeout)
	fields, err := s.extractor.Extract(extractCtx, page.Text, string(page.Platform))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.opts.Verbose {
			log.Printf("[INGEST] extraction failed for posting %s: %v", postingID, err)
		}
		var extErr *ExtractionError
		msg := "extraction failed"
		if errors.As(err, &extErr) {
			msg = extErr.Error()
		}
		return s.store.MarkJobPostingExtractionFailed(ctx, postingID, page.Text, page.HTML, contentHash, msg)
	}

	return s.store.MarkJobPostingScraped(ctx, postingID, &db.JobPostingExtractedFields{
		Company:      fields.Company,
		RoleTitle:    fields.Title,
		Location:     fields.Location,
		RemotePolicy: fields.RemotePolicy,
		Salary:       fields.Salary,
		Description:  fields.Description,
		Requirements: fields.Requirements,
		Benefits:     fields.Benefits,
		RawHTML:      page.HTML,
		ContentHash:  contentHash,
	})
}

// Get loads a posting owned by the user
func (s *Service) Get(ctx context.Context, userID, postingID uuid.UUID) (*db.JobPosting, error) {
	posting, err := s.store.GetJobPostingByID(ctx, postingID)
	if err != nil {
		return nil, err
	}
	if posting == nil || posting.UserID != userID {
		return nil, nil
	}
	return posting, nil
}

// List returns the user's postings
func (s *Service) List(ctx context.Context, userID uuid.UUID, opts db.ListJobPostingsOptions) ([]db.JobPosting, int, error) {
	return s.store.ListJobPostings(ctx, userID, opts)
}
