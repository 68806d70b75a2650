package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/applyflow/internal/db"
)

// fakeStore is an in-memory Store with the same versioning semantics as the
// SQL implementation.
type fakeStore struct {
	postings map[uuid.UUID]*db.JobPosting
	apps     map[uuid.UUID]*db.Application
	events   map[uuid.UUID][]db.ApplicationEvent

	// staleOnce makes the next TransitionApplication fail with
	// ErrStaleVersion while still applying a concurrent bump, simulating a
	// racing writer.
	staleOnce bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		postings: make(map[uuid.UUID]*db.JobPosting),
		apps:     make(map[uuid.UUID]*db.Application),
		events:   make(map[uuid.UUID][]db.ApplicationEvent),
	}
}

func (f *fakeStore) addPosting(userID uuid.UUID, status string) *db.JobPosting {
	p := &db.JobPosting{ID: uuid.New(), UserID: userID, Status: status}
	f.postings[p.ID] = p
	return p
}

func (f *fakeStore) GetJobPostingByID(_ context.Context, id uuid.UUID) (*db.JobPosting, error) {
	return f.postings[id], nil
}

func (f *fakeStore) CreateApplication(_ context.Context, input *db.ApplicationCreateInput) (*db.Application, error) {
	app := &db.Application{
		ID:           uuid.New(),
		JobPostingID: input.JobPostingID,
		UserID:       input.UserID,
		Status:       input.InitialStatus,
		Version:      1,
		CreatedAt:    time.Now(),
	}
	f.apps[app.ID] = app
	f.events[app.ID] = append(f.events[app.ID], db.ApplicationEvent{
		ID: uuid.New(), ApplicationID: app.ID, ToStatus: input.InitialStatus, CreatedAt: time.Now(),
	})
	return app, nil
}

func (f *fakeStore) GetApplicationByID(_ context.Context, id uuid.UUID) (*db.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *app
	return &cp, nil
}

func (f *fakeStore) GetApplicationByPostingID(_ context.Context, userID, postingID uuid.UUID) (*db.Application, error) {
	for _, app := range f.apps {
		if app.UserID == userID && app.JobPostingID == postingID {
			cp := *app
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListApplications(_ context.Context, userID uuid.UUID, _ db.ListApplicationsOptions) ([]db.Application, int, error) {
	var out []db.Application
	for _, app := range f.apps {
		if app.UserID == userID {
			out = append(out, *app)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) TransitionApplication(_ context.Context, input *db.TransitionInput) (*db.Application, error) {
	app, ok := f.apps[input.ApplicationID]
	if !ok {
		return nil, db.ErrStaleVersion
	}
	if f.staleOnce {
		f.staleOnce = false
		app.Version++ // concurrent writer got there first
		return nil, db.ErrStaleVersion
	}
	if app.Version != input.ExpectedVersion {
		return nil, db.ErrStaleVersion
	}
	app.Status = input.ToStatus
	app.Version++
	if input.AppliedAt != nil {
		app.AppliedAt = input.AppliedAt
	}
	if input.ReminderAt != nil {
		app.ReminderAt = input.ReminderAt
	}
	f.events[app.ID] = append(f.events[app.ID], db.ApplicationEvent{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		FromStatus:    input.FromStatus,
		ToStatus:      input.ToStatus,
		CreatedAt:     time.Now(),
	})
	cp := *app
	return &cp, nil
}

func (f *fakeStore) ListApplicationEvents(_ context.Context, applicationID uuid.UUID) ([]db.ApplicationEvent, error) {
	return f.events[applicationID], nil
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)
	userID := uuid.New()

	t.Run("creates pending application", func(t *testing.T) {
		posting := store.addPosting(userID, db.PostingStatusScraped)

		app, err := svc.Create(ctx, userID, posting.ID, "looks promising")
		require.NoError(t, err)
		assert.Equal(t, string(StatusPending), app.Status)
		assert.Equal(t, 1, app.Version)
	})

	t.Run("extraction failed posting is still usable", func(t *testing.T) {
		posting := store.addPosting(userID, db.PostingStatusExtractionFailed)

		_, err := svc.Create(ctx, userID, posting.ID, "")
		assert.NoError(t, err)
	})

	t.Run("failed posting rejected", func(t *testing.T) {
		posting := store.addPosting(userID, db.PostingStatusFailed)

		_, err := svc.Create(ctx, userID, posting.ID, "")
		assert.ErrorIs(t, err, ErrPostingNotUsable)
	})

	t.Run("other user's posting not found", func(t *testing.T) {
		posting := store.addPosting(uuid.New(), db.PostingStatusScraped)

		_, err := svc.Create(ctx, userID, posting.ID, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate application rejected", func(t *testing.T) {
		posting := store.addPosting(userID, db.PostingStatusScraped)

		_, err := svc.Create(ctx, userID, posting.ID, "")
		require.NoError(t, err)

		_, err = svc.Create(ctx, userID, posting.ID, "")
		assert.ErrorIs(t, err, ErrDuplicateApplication)
	})
}

func createTestApp(t *testing.T, svc *Service, store *fakeStore, userID uuid.UUID) *db.Application {
	t.Helper()
	posting := store.addPosting(userID, db.PostingStatusScraped)
	app, err := svc.Create(context.Background(), userID, posting.ID, "")
	require.NoError(t, err)
	return app
}

func TestService_TransitionTo(t *testing.T) {
	ctx := context.Background()

	t.Run("valid transition appends event", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		updated, err := svc.TransitionTo(ctx, userID, app.ID, StatusApplied, TransitionOptions{Notes: "sent it"})
		require.NoError(t, err)
		assert.Equal(t, string(StatusApplied), updated.Status)
		assert.Equal(t, 2, updated.Version)
		assert.NotNil(t, updated.AppliedAt)

		events, err := svc.Events(ctx, userID, app.ID)
		require.NoError(t, err)
		require.Len(t, events, 2) // creation + transition
		assert.Equal(t, string(StatusPending), events[1].FromStatus)
		assert.Equal(t, string(StatusApplied), events[1].ToStatus)
	})

	t.Run("invalid edge leaves state untouched", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		_, err := svc.TransitionTo(ctx, userID, app.ID, StatusOfferReceived, TransitionOptions{})
		var invalidErr *InvalidTransitionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, StatusPending, invalidErr.From)

		current, err := svc.Get(ctx, userID, app.ID)
		require.NoError(t, err)
		assert.Equal(t, string(StatusPending), current.Status)
		events, _ := svc.Events(ctx, userID, app.ID)
		assert.Len(t, events, 1)
	})

	t.Run("terminal state has no exits", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		_, err := svc.TransitionTo(ctx, userID, app.ID, StatusWithdrawn, TransitionOptions{})
		require.NoError(t, err)

		for _, target := range AllStatuses {
			_, err := svc.TransitionTo(ctx, userID, app.ID, target, TransitionOptions{})
			var invalidErr *InvalidTransitionError
			assert.ErrorAs(t, err, &invalidErr, "withdrawn -> %s should fail", target)
		}
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		_, err := svc.TransitionTo(ctx, userID, app.ID, Status("ghosted"), TransitionOptions{})
		var invalidErr *InvalidTransitionError
		assert.ErrorAs(t, err, &invalidErr)
	})

	t.Run("retries once on stale version", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		store.staleOnce = true
		updated, err := svc.TransitionTo(ctx, userID, app.ID, StatusApplied, TransitionOptions{})
		require.NoError(t, err)
		assert.Equal(t, string(StatusApplied), updated.Status)
	})

	t.Run("stale retry revalidates against new state", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		// Concurrent writer withdrew the application before our transition
		_, err := svc.TransitionTo(ctx, userID, app.ID, StatusWithdrawn, TransitionOptions{})
		require.NoError(t, err)

		_, err = svc.TransitionTo(ctx, userID, app.ID, StatusApplied, TransitionOptions{})
		var invalidErr *InvalidTransitionError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, StatusWithdrawn, invalidErr.From)
	})

	t.Run("reminder only stamped for followups", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store)
		userID := uuid.New()
		app := createTestApp(t, svc, store, userID)

		reminder := time.Now().Add(72 * time.Hour)
		_, err := svc.TransitionTo(ctx, userID, app.ID, StatusApplied, TransitionOptions{ReminderAt: &reminder})
		require.NoError(t, err)
		current, _ := svc.Get(ctx, userID, app.ID)
		assert.Nil(t, current.ReminderAt)

		updated, err := svc.TransitionTo(ctx, userID, app.ID, StatusFollowupScheduled, TransitionOptions{ReminderAt: &reminder})
		require.NoError(t, err)
		require.NotNil(t, updated.ReminderAt)
		assert.WithinDuration(t, reminder, *updated.ReminderAt, time.Second)
	})
}

func TestService_TransitionTo_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)
	userID := uuid.New()
	app := createTestApp(t, svc, store, userID)

	path := []Status{StatusApplied, StatusFollowupScheduled, StatusInterviewScheduled, StatusOfferReceived}
	for _, next := range path {
		_, err := svc.TransitionTo(ctx, userID, app.ID, next, TransitionOptions{})
		require.NoError(t, err, "transition to %s", next)
	}

	current, err := svc.Get(ctx, userID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StatusOfferReceived), current.Status)
	assert.Equal(t, len(path)+1, current.Version)

	events, err := svc.Events(ctx, userID, app.ID)
	require.NoError(t, err)
	require.Len(t, events, len(path)+1)
	assert.Equal(t, current.Status, events[len(events)-1].ToStatus)
}

func TestService_Get_UnknownID(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}
