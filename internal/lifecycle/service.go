package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/db"
)

// Sentinel errors
var (
	// ErrNotFound is returned when an application or posting does not exist
	// or belongs to another user.
	ErrNotFound = errors.New("application not found")
	// ErrPostingNotUsable is returned when the posting has no content to
	// apply against (scrape failed outright).
	ErrPostingNotUsable = errors.New("job posting is not usable")
	// ErrDuplicateApplication is returned when the posting already has an
	// application.
	ErrDuplicateApplication = errors.New("application already exists for this posting")
)

// InvalidTransitionError is returned for any edge outside the transition
// table, including self-transitions and edges out of terminal states.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	if IsTerminal(e.From) {
		return fmt.Sprintf("invalid transition: %s is terminal", e.From)
	}
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// Store is the persistence surface the lifecycle service needs
type Store interface {
	GetJobPostingByID(ctx context.Context, id uuid.UUID) (*db.JobPosting, error)
	CreateApplication(ctx context.Context, input *db.ApplicationCreateInput) (*db.Application, error)
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*db.Application, error)
	GetApplicationByPostingID(ctx context.Context, userID, postingID uuid.UUID) (*db.Application, error)
	ListApplications(ctx context.Context, userID uuid.UUID, opts db.ListApplicationsOptions) ([]db.Application, int, error)
	TransitionApplication(ctx context.Context, input *db.TransitionInput) (*db.Application, error)
	ListApplicationEvents(ctx context.Context, applicationID uuid.UUID) ([]db.ApplicationEvent, error)
}

// Service manages application lifecycles
type Service struct {
	store Store
}

// NewService creates a new lifecycle service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create starts a Pending application against a posting the user owns.
// A posting whose scrape failed outright has nothing to apply against;
// an extraction failure still carries the raw description, so it is allowed.
func (s *Service) Create(ctx context.Context, userID, postingID uuid.UUID, notes string) (*db.Application, error) {
	posting, err := s.store.GetJobPostingByID(ctx, postingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job posting: %w", err)
	}
	if posting == nil || posting.UserID != userID {
		return nil, ErrNotFound
	}
	if !posting.Usable() {
		return nil, ErrPostingNotUsable
	}

	existing, err := s.store.GetApplicationByPostingID(ctx, userID, postingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateApplication
	}

	app, err := s.store.CreateApplication(ctx, &db.ApplicationCreateInput{
		JobPostingID:  postingID,
		UserID:        userID,
		InitialStatus: string(StatusPending),
		Notes:         notes,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Get loads an application owned by the user
func (s *Service) Get(ctx context.Context, userID, appID uuid.UUID) (*db.Application, error) {
	app, err := s.store.GetApplicationByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.UserID != userID {
		return nil, ErrNotFound
	}
	return app, nil
}

// List returns the user's applications
func (s *Service) List(ctx context.Context, userID uuid.UUID, opts db.ListApplicationsOptions) ([]db.Application, int, error) {
	return s.store.ListApplications(ctx, userID, opts)
}

// Events returns an application's audit log, oldest first
func (s *Service) Events(ctx context.Context, userID, appID uuid.UUID) ([]db.ApplicationEvent, error) {
	if _, err := s.Get(ctx, userID, appID); err != nil {
		return nil, err
	}
	return s.store.ListApplicationEvents(ctx, appID)
}

// TransitionOptions carries optional data attached to a transition
type TransitionOptions struct {
	Notes      string
	ReminderAt *time.Time // only meaningful when scheduling a follow-up
}

// TransitionTo moves an application to a new status. The edge is validated
// against the table, then applied under the application's current version.
// A stale version means a concurrent transition won; the service re-reads
// and re-validates once, since the edge that was legal a moment ago may not
// be legal from the new state.
func (s *Service) TransitionTo(ctx context.Context, userID, appID uuid.UUID, to Status, opts TransitionOptions) (*db.Application, error) {
	if !to.IsValid() {
		return nil, &InvalidTransitionError{To: to}
	}

	app, err := s.Get(ctx, userID, appID)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyTransition(ctx, app, to, opts)
	if errors.Is(err, db.ErrStaleVersion) {
		app, err = s.Get(ctx, userID, appID)
		if err != nil {
			return nil, err
		}
		updated, err = s.applyTransition(ctx, app, to, opts)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) applyTransition(ctx context.Context, app *db.Application, to Status, opts TransitionOptions) (*db.Application, error) {
	from := Status(app.Status)
	if !CanTransition(from, to) {
		return nil, &InvalidTransitionError{From: from, To: to}
	}

	input := &db.TransitionInput{
		ApplicationID:   app.ID,
		ExpectedVersion: app.Version,
		FromStatus:      string(from),
		ToStatus:        string(to),
		Notes:           opts.Notes,
	}
	if to == StatusApplied {
		now := time.Now()
		input.AppliedAt = &now
	}
	if to == StatusFollowupScheduled && opts.ReminderAt != nil {
		input.ReminderAt = opts.ReminderAt
	}

	return s.store.TransitionApplication(ctx, input)
}
