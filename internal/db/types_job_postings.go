package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Job posting lifecycle status constants
const (
	// PostingStatusPending is a posting created but not yet scraped
	PostingStatusPending = "pending"
	// PostingStatusScraped is a fully ingested posting; immutable from here on
	PostingStatusScraped = "scraped"
	// PostingStatusExtractionFailed means the page was fetched but structured
	// extraction failed; the raw description is retained
	PostingStatusExtractionFailed = "extraction_failed"
	// PostingStatusFailed means the scrape itself failed after retry
	PostingStatusFailed = "failed"
)

// StructuredList holds schema-flexible requirement/benefit data. Platforms
// differ in how much structure they expose, so a raw fallback is kept
// alongside the parsed items instead of passing opaque blobs around.
type StructuredList struct {
	Items  []string `json:"items,omitempty"`
	Raw    string   `json:"raw,omitempty"`
	Source string   `json:"source,omitempty"` // platform the structure came from
}

// IsEmpty reports whether the list carries neither parsed items nor raw text.
func (l StructuredList) IsEmpty() bool {
	return len(l.Items) == 0 && l.Raw == ""
}

// JobPosting represents an ingested job posting owned by a single user
type JobPosting struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalized_url"`
	Platform      string    `json:"platform,omitempty"`

	Company      *string `json:"company,omitempty"`
	RoleTitle    *string `json:"role_title,omitempty"`
	Location     *string `json:"location,omitempty"`
	RemotePolicy *string `json:"remote_policy,omitempty"`
	Salary       *string `json:"salary,omitempty"`
	Description  *string `json:"description,omitempty"`

	Requirements StructuredList `json:"requirements,omitempty"`
	Benefits     StructuredList `json:"benefits,omitempty"`

	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`

	RawHTML     *string `json:"-"` // Don't serialize (large)
	ContentHash *string `json:"content_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsScraped reports whether ingestion completed with structured fields.
func (p *JobPosting) IsScraped() bool {
	return p.Status == PostingStatusScraped
}

// Usable reports whether an application can be created against this posting.
// A failed scrape has no content to apply against; an extraction failure
// still carries the raw description.
func (p *JobPosting) Usable() bool {
	return p.Status == PostingStatusScraped || p.Status == PostingStatusExtractionFailed
}

// JobPostingCreateInput is used when claiming a posting row before ingestion
type JobPostingCreateInput struct {
	UserID        uuid.UUID
	URL           string
	NormalizedURL string
	Platform      string
	RawHTML       string
}

// JobPostingExtractedFields holds the structured output of a successful
// scrape + extraction, applied to a pending posting in one update.
type JobPostingExtractedFields struct {
	Company      string
	RoleTitle    string
	Location     string
	RemotePolicy string
	Salary       string
	Description  string
	Requirements StructuredList
	Benefits     StructuredList
	RawHTML      string
	ContentHash  string
}

// HashPostingContent generates a SHA-256 hash of the posting text
func HashPostingContent(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
