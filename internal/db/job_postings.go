package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Job Posting Methods
// -----------------------------------------------------------------------------

const jobPostingColumns = `id, user_id, url, url_normalized, platform, company, role_title,
	        location, remote_policy, salary, description, requirements, benefits,
	        status, error_message, content_hash, created_at, updated_at`

// scanJobPosting scans a full posting row, decoding the JSONB list fields.
func scanJobPosting(row pgx.Row) (*JobPosting, error) {
	var p JobPosting
	var requirementsJSON, benefitsJSON []byte

	err := row.Scan(&p.ID, &p.UserID, &p.URL, &p.NormalizedURL, &p.Platform, &p.Company,
		&p.RoleTitle, &p.Location, &p.RemotePolicy, &p.Salary, &p.Description,
		&requirementsJSON, &benefitsJSON, &p.Status, &p.ErrorMessage, &p.ContentHash,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if requirementsJSON != nil {
		_ = json.Unmarshal(requirementsJSON, &p.Requirements)
	}
	if benefitsJSON != nil {
		_ = json.Unmarshal(benefitsJSON, &p.Benefits)
	}

	return &p, nil
}

// CreateJobPosting inserts a pending posting row for a user. The UNIQUE
// constraint on (user_id, url_normalized) makes this race-safe: when two
// requests insert the same posting concurrently, exactly one row is created
// and both callers get it back. The bool result reports whether this call
// created the row.
func (db *DB) CreateJobPosting(ctx context.Context, input *JobPostingCreateInput) (*JobPosting, bool, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (user_id, url, url_normalized, platform, raw_html, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, url_normalized) DO NOTHING
		 RETURNING `+jobPostingColumns,
		input.UserID, input.URL, input.NormalizedURL, input.Platform,
		nullIfEmpty(input.RawHTML), PostingStatusPending,
	)

	p, err := scanJobPosting(row)
	if err == nil {
		return p, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create job posting: %w", err)
	}

	// Conflict: another request already owns this URL. Return the existing row.
	existing, err := db.GetJobPostingByNormalizedURL(ctx, input.UserID, input.NormalizedURL)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("job posting conflict but no existing row for %s", input.NormalizedURL)
	}
	return existing, false, nil
}

// GetJobPostingByID retrieves a job posting by its ID
func (db *DB) GetJobPostingByID(ctx context.Context, id uuid.UUID) (*JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobPostingColumns+` FROM job_postings WHERE id = $1`, id)

	p, err := scanJobPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	return p, nil
}

// GetJobPostingByNormalizedURL retrieves a user's posting for a normalized URL
func (db *DB) GetJobPostingByNormalizedURL(ctx context.Context, userID uuid.UUID, normalizedURL string) (*JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobPostingColumns+` FROM job_postings
		 WHERE user_id = $1 AND url_normalized = $2`,
		userID, normalizedURL)

	p, err := scanJobPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	return p, nil
}

// MarkJobPostingScraped records a successful scrape + extraction on a posting
func (db *DB) MarkJobPostingScraped(ctx context.Context, id uuid.UUID, extracted *JobPostingExtractedFields) (*JobPosting, error) {
	requirementsJSON, err := json.Marshal(extracted.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requirements: %w", err)
	}
	benefitsJSON, err := json.Marshal(extracted.Benefits)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal benefits: %w", err)
	}

	row := db.pool.QueryRow(ctx,
		`UPDATE job_postings SET
		     company = $2,
		     role_title = $3,
		     location = $4,
		     remote_policy = $5,
		     salary = $6,
		     description = $7,
		     requirements = $8,
		     benefits = $9,
		     raw_html = $10,
		     content_hash = $11,
		     status = $12,
		     error_message = NULL,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobPostingColumns,
		id, nullIfEmpty(extracted.Company), nullIfEmpty(extracted.RoleTitle),
		nullIfEmpty(extracted.Location), nullIfEmpty(extracted.RemotePolicy),
		nullIfEmpty(extracted.Salary), nullIfEmpty(extracted.Description),
		requirementsJSON, benefitsJSON, nullIfEmpty(extracted.RawHTML),
		nullIfEmpty(extracted.ContentHash), PostingStatusScraped,
	)

	p, err := scanJobPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to mark job posting scraped: %w", err)
	}
	return p, nil
}

// DeleteJobPostingIfPending removes a posting row that never made it past the
// pending state, so the URL can be ingested again from scratch. The status
// guard keeps a row that another request already completed intact.
func (db *DB) DeleteJobPostingIfPending(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM job_postings WHERE id = $1 AND status = $2`,
		id, PostingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to delete pending job posting: %w", err)
	}
	return nil
}

// MarkJobPostingFailed records a failed ingestion on a posting. The failure is
// data, not an error: the row stays queryable with its reason attached.
func (db *DB) MarkJobPostingFailed(ctx context.Context, id uuid.UUID, status, errorMsg string) (*JobPosting, error) {
	if status != PostingStatusFailed && status != PostingStatusExtractionFailed {
		return nil, fmt.Errorf("invalid failure status: %s", status)
	}

	row := db.pool.QueryRow(ctx,
		`UPDATE job_postings SET status = $2, error_message = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobPostingColumns,
		id, status, errorMsg,
	)

	p, err := scanJobPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to mark job posting failed: %w", err)
	}
	return p, nil
}

// MarkJobPostingExtractionFailed records a fetch that succeeded but whose
// structured extraction did not. The raw description is retained so an
// application can still be created against the posting.
func (db *DB) MarkJobPostingExtractionFailed(ctx context.Context, id uuid.UUID, description, rawHTML, contentHash, errorMsg string) (*JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE job_postings SET
		     description = $2,
		     raw_html = $3,
		     content_hash = $4,
		     status = $5,
		     error_message = $6,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobPostingColumns,
		id, nullIfEmpty(description), nullIfEmpty(rawHTML), nullIfEmpty(contentHash),
		PostingStatusExtractionFailed, errorMsg,
	)

	p, err := scanJobPosting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to mark job posting extraction failed: %w", err)
	}
	return p, nil
}

// ListJobPostingsOptions contains filters for listing job postings
type ListJobPostingsOptions struct {
	Status   *string // Filter by ingestion status
	Platform *string // Filter by platform (greenhouse, lever, etc.)
	Limit    int     // Pagination limit
	Offset   int     // Pagination offset
}

// ListJobPostings lists a user's postings with optional filters and pagination
func (db *DB) ListJobPostings(ctx context.Context, userID uuid.UUID, opts ListJobPostingsOptions) ([]JobPosting, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	argIndex := 2

	if opts.Status != nil && *opts.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *opts.Status)
		argIndex++
	}
	if opts.Platform != nil && *opts.Platform != "" {
		conditions = append(conditions, fmt.Sprintf("platform = $%d", argIndex))
		args = append(args, *opts.Platform)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM job_postings %s", whereClause)
	var total int
	if err := db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count job postings: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT `+jobPostingColumns+` FROM job_postings %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list job postings: %w", err)
	}
	defer rows.Close()

	var postings []JobPosting
	for rows.Next() {
		p, err := scanJobPosting(rows)
		if err != nil {
			return nil, 0, err
		}
		postings = append(postings, *p)
	}

	return postings, total, nil
}

// nullIfEmpty converts an empty string to nil for nullable columns
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
