package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/applyflow/internal/config"
	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/entitlement"
)

// memStore is an in-memory Store whose CreateArtifact mirrors the SQL
// implementation's locked re-check: the counter is checked and incremented
// under one lock, so racing callers serialize.
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*db.User
	postings  map[uuid.UUID]*db.JobPosting
	apps      map[uuid.UUID]*db.Application
	artifacts map[uuid.UUID][]db.GeneratedArtifact
	counters  map[uuid.UUID]int
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[uuid.UUID]*db.User),
		postings:  make(map[uuid.UUID]*db.JobPosting),
		apps:      make(map[uuid.UUID]*db.Application),
		artifacts: make(map[uuid.UUID][]db.GeneratedArtifact),
		counters:  make(map[uuid.UUID]int),
	}
}

func (m *memStore) addFixture(tier string) (userID, appID uuid.UUID) {
	company := "Acme"
	title := "Senior Go Engineer"
	desc := "Build distributed systems."
	user := &db.User{ID: uuid.New(), Tier: tier}
	posting := &db.JobPosting{
		ID: uuid.New(), UserID: user.ID, Company: &company, RoleTitle: &title,
		Description: &desc, Status: db.PostingStatusScraped,
	}
	app := &db.Application{ID: uuid.New(), JobPostingID: posting.ID, UserID: user.ID, Status: "pending", Version: 1}
	m.users[user.ID] = user
	m.postings[posting.ID] = posting
	m.apps[app.ID] = app
	return user.ID, app.ID
}

func (m *memStore) GetApplicationByID(_ context.Context, id uuid.UUID) (*db.Application, error) {
	return m.apps[id], nil
}

func (m *memStore) GetJobPostingByID(_ context.Context, id uuid.UUID) (*db.JobPosting, error) {
	return m.postings[id], nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	return m.users[id], nil
}

func (m *memStore) GetUsageCounter(_ context.Context, userID uuid.UUID) (*db.UsageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &db.UsageCounter{UserID: userID, ResumesUsed: m.counters[userID]}, nil
}

func (m *memStore) CreateArtifact(_ context.Context, input *db.ArtifactCreateInput) (*db.GeneratedArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input.CountsTowardQuota {
		if input.Limit >= 0 && m.counters[input.UserID] >= input.Limit {
			return nil, db.ErrQuotaExhausted
		}
		m.counters[input.UserID]++
	}
	a := db.GeneratedArtifact{
		ID:            uuid.New(),
		ApplicationID: input.ApplicationID,
		UserID:        input.UserID,
		Kind:          input.Kind,
		Content:       input.Content,
		Model:         input.Model,
		TemplateID:    input.TemplateID,
		CreatedAt:     time.Now(),
	}
	m.artifacts[input.ApplicationID] = append(m.artifacts[input.ApplicationID], a)
	return &a, nil
}

func (m *memStore) ListArtifactsByApplication(_ context.Context, applicationID uuid.UUID) ([]db.GeneratedArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.GeneratedArtifact(nil), m.artifacts[applicationID]...), nil
}

// stubGenerator counts calls; fails with err, or times out timeoutFirst
// times before succeeding.
type stubGenerator struct {
	calls        int32
	err          error
	timeoutFirst int32
}

func (s *stubGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	if atomic.AddInt32(&s.timeoutFirst, -1) >= 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &Result{Content: "generated " + req.Kind, Model: "stub-model"}, nil
}

func testEvaluator(freeLimit int) *entitlement.Evaluator {
	return entitlement.NewEvaluator(&config.EntitlementsConfig{
		FreeResumeLimit: freeLimit,
		ProResumeLimit:  entitlement.Unlimited,
	})
}

func TestGenerate_Success(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	gen := &stubGenerator{}
	o := NewOrchestrator(store, gen, testEvaluator(3), Options{})

	artifact, err := o.Generate(context.Background(), userID, appID, db.ArtifactKindResume, "modern")
	require.NoError(t, err)

	assert.Equal(t, db.ArtifactKindResume, artifact.Kind)
	assert.Equal(t, "generated resume", artifact.Content)
	assert.Equal(t, "stub-model", artifact.Model)
	assert.Equal(t, "modern", artifact.TemplateID)
	assert.Equal(t, 1, store.counters[userID])
}

func TestGenerate_QuotaLifecycle(t *testing.T) {
	const limit = 3
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	gen := &stubGenerator{}
	o := NewOrchestrator(store, gen, testEvaluator(limit), Options{})
	ctx := context.Background()

	for i := 1; i <= limit; i++ {
		_, err := o.Generate(ctx, userID, appID, db.ArtifactKindResume, "")
		require.NoError(t, err, "generation %d within limit", i)
	}

	_, err := o.Generate(ctx, userID, appID, db.ArtifactKindResume, "")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	assert.Equal(t, int32(limit), atomic.LoadInt32(&gen.calls),
		"generator must not run for the over-limit request")
	assert.Equal(t, limit, store.counters[userID], "counter stops at the limit")

	artifacts, _ := store.ListArtifactsByApplication(ctx, appID)
	assert.Len(t, artifacts, limit)
}

func TestGenerate_PremiumGating(t *testing.T) {
	store := newMemStore()
	freeUser, freeApp := store.addFixture(db.TierFree)
	proUser, proApp := store.addFixture(db.TierPro)
	gen := &stubGenerator{}
	o := NewOrchestrator(store, gen, testEvaluator(3), Options{})
	ctx := context.Background()

	for _, kind := range []string{db.ArtifactKindDeepDive, db.ArtifactKindFollowup, db.ArtifactKindInterviewPrep} {
		_, err := o.Generate(ctx, freeUser, freeApp, kind, "")
		assert.ErrorIs(t, err, ErrPremiumRequired, "free user requesting %s", kind)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&gen.calls), "denied requests never reach the generator")

	artifact, err := o.Generate(ctx, proUser, proApp, db.ArtifactKindDeepDive, "")
	require.NoError(t, err)
	assert.Equal(t, db.ArtifactKindDeepDive, artifact.Kind)
	assert.Equal(t, 0, store.counters[proUser], "premium kinds are uncounted")
}

func TestGenerate_UncountedKinds(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	o := NewOrchestrator(store, &stubGenerator{}, testEvaluator(0), Options{})

	// Even with a zero resume limit, cover letters and improvement
	// suggestions stay available
	for _, kind := range []string{db.ArtifactKindCoverLetter, db.ArtifactKindImprovement} {
		_, err := o.Generate(context.Background(), userID, appID, kind, "")
		assert.NoError(t, err, "kind %s", kind)
	}
	assert.Equal(t, 0, store.counters[userID])
}

func TestGenerate_GeneratorFailureBillsNothing(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	gen := &stubGenerator{err: errors.New("upstream unavailable")}
	o := NewOrchestrator(store, gen, testEvaluator(3), Options{})

	_, err := o.Generate(context.Background(), userID, appID, db.ArtifactKindResume, "")

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, db.ArtifactKindResume, genErr.Kind)
	assert.Equal(t, 0, store.counters[userID], "failed generations are never billed")
	artifacts, _ := store.ListArtifactsByApplication(context.Background(), appID)
	assert.Empty(t, artifacts, "nothing persisted on failure")
}

func TestGenerate_TimeoutRetriesOnce(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)

	t.Run("second attempt succeeds", func(t *testing.T) {
		gen := &stubGenerator{timeoutFirst: 1}
		o := NewOrchestrator(store, gen, testEvaluator(10), Options{GenerateTimeout: 20 * time.Millisecond})

		artifact, err := o.Generate(context.Background(), userID, appID, db.ArtifactKindResume, "")
		require.NoError(t, err)
		assert.NotEmpty(t, artifact.Content)
		assert.Equal(t, int32(2), atomic.LoadInt32(&gen.calls))
	})

	t.Run("second timeout is permanent", func(t *testing.T) {
		gen := &stubGenerator{timeoutFirst: 2}
		o := NewOrchestrator(store, gen, testEvaluator(10), Options{GenerateTimeout: 20 * time.Millisecond})

		before := store.counters[userID]
		_, err := o.Generate(context.Background(), userID, appID, db.ArtifactKindResume, "")

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, int32(2), atomic.LoadInt32(&gen.calls), "exactly one retry")
		assert.Equal(t, before, store.counters[userID])
	})
}

func TestGenerate_ConcurrentLastSlot(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	gen := &stubGenerator{}
	o := NewOrchestrator(store, gen, testEvaluator(1), Options{})

	// One slot, two racers: both pass the advisory check, the persist step
	// decides.
	const racers = 2
	var successes, quotaFailures int32
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			_, err := o.Generate(context.Background(), userID, appID, db.ArtifactKindResume, "")
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, ErrQuotaExceeded):
				atomic.AddInt32(&quotaFailures, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), successes, "exactly one racer wins the last slot")
	assert.Equal(t, int32(racers-1), quotaFailures)
	assert.Equal(t, 1, store.counters[userID], "counter never exceeds the limit")
}

func TestGenerate_UnknownKind(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	gen := &stubGenerator{}
	o := NewOrchestrator(store, gen, testEvaluator(3), Options{})

	_, err := o.Generate(context.Background(), userID, appID, "haiku", "")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gen.calls))
}

func TestGenerate_Ownership(t *testing.T) {
	store := newMemStore()
	_, appID := store.addFixture(db.TierFree)
	otherUser, _ := store.addFixture(db.TierFree)
	o := NewOrchestrator(store, &stubGenerator{}, testEvaluator(3), Options{})

	_, err := o.Generate(context.Background(), otherUser, appID, db.ArtifactKindResume, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsage(t *testing.T) {
	store := newMemStore()
	userID, appID := store.addFixture(db.TierFree)
	o := NewOrchestrator(store, &stubGenerator{}, testEvaluator(3), Options{})
	ctx := context.Background()

	_, err := o.Generate(ctx, userID, appID, db.ArtifactKindResume, "")
	require.NoError(t, err)

	usage, err := o.Usage(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.ResumesUsed)
	assert.Equal(t, 3, usage.ResumeLimit)
	assert.Equal(t, 2, usage.Remaining)
}
