package db

import (
	"time"

	"github.com/google/uuid"
)

// Artifact kinds. Resume generation is the only kind that consumes quota;
// the premium kinds are tier-gated but uncounted.
const (
	ArtifactKindResume        = "resume"
	ArtifactKindCoverLetter   = "cover_letter"
	ArtifactKindDeepDive      = "deep_dive"
	ArtifactKindFollowup      = "followup"
	ArtifactKindInterviewPrep = "interview_prep"
	ArtifactKindImprovement   = "improvement"
)

// GeneratedArtifact is a persisted generation result tied to an application.
// Immutable once created.
type GeneratedArtifact struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        uuid.UUID `json:"user_id"`
	Kind          string    `json:"kind"`
	Content       string    `json:"content"`
	Model         string    `json:"model,omitempty"`
	TemplateID    string    `json:"template_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArtifactCreateInput is used when persisting a generated artifact
type ArtifactCreateInput struct {
	ApplicationID uuid.UUID
	UserID        uuid.UUID
	Kind          string
	Content       string
	Model         string
	TemplateID    string

	// CountsTowardQuota persists the artifact and increments the user's
	// resume counter in a single transaction. When the counter is already
	// at Limit the insert is aborted with ErrQuotaExhausted.
	CountsTowardQuota bool
	Limit             int
}

// UsageCounter tracks per-user consumption of quota-limited generation.
type UsageCounter struct {
	UserID      uuid.UUID `json:"user_id"`
	ResumesUsed int       `json:"resumes_used"`
	PeriodStart time.Time `json:"period_start"`
	UpdatedAt   time.Time `json:"updated_at"`
}
