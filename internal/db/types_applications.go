package db

import (
	"time"

	"github.com/google/uuid"
)

// Application represents a user's application to a job posting.
// Status transitions are serialized with optimistic versioning: every read
// carries Version, and a transition with a stale version is rejected.
type Application struct {
	ID           uuid.UUID  `json:"id"`
	JobPostingID uuid.UUID  `json:"job_posting_id"`
	UserID       uuid.UUID  `json:"user_id"`
	Status       string     `json:"status"`
	Notes        *string    `json:"notes,omitempty"`
	AppliedAt    *time.Time `json:"applied_at,omitempty"`
	ReminderAt   *time.Time `json:"reminder_at,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ApplicationEvent is one entry in an application's append-only audit log.
// The event log is the source of truth: Application.Status always equals the
// ToStatus of the most recent event.
type ApplicationEvent struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ApplicationCreateInput is used when creating a new application
type ApplicationCreateInput struct {
	JobPostingID  uuid.UUID
	UserID        uuid.UUID
	InitialStatus string
	Notes         string
}

// TransitionInput describes one status transition to apply atomically:
// the status update and the event append either both persist or neither does.
type TransitionInput struct {
	ApplicationID   uuid.UUID
	ExpectedVersion int
	FromStatus      string
	ToStatus        string
	Notes           string
	AppliedAt       *time.Time // set when entering Applied
	ReminderAt      *time.Time // set when scheduling a follow-up
}
