package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/entitlement"
	"github.com/jonathan/applyflow/internal/generation"
	"github.com/jonathan/applyflow/internal/ingestion"
	"github.com/jonathan/applyflow/internal/lifecycle"
)

// stubJobService returns canned responses for job posting endpoints.
type stubJobService struct {
	posting *db.JobPosting
	err     error
}

func (s *stubJobService) IngestFromURL(_ context.Context, _ uuid.UUID, _ string) (*db.JobPosting, error) {
	return s.posting, s.err
}

func (s *stubJobService) IngestFromHTML(_ context.Context, _ uuid.UUID, _, _ string) (*db.JobPosting, error) {
	return s.posting, s.err
}

func (s *stubJobService) Get(_ context.Context, _, _ uuid.UUID) (*db.JobPosting, error) {
	return s.posting, s.err
}

func (s *stubJobService) List(_ context.Context, _ uuid.UUID, _ db.ListJobPostingsOptions) ([]db.JobPosting, int, error) {
	if s.posting == nil {
		return nil, 0, s.err
	}
	return []db.JobPosting{*s.posting}, 1, s.err
}

type stubApplicationService struct {
	app    *db.Application
	events []db.ApplicationEvent
	err    error
}

func (s *stubApplicationService) Create(_ context.Context, _, _ uuid.UUID, _ string) (*db.Application, error) {
	return s.app, s.err
}

func (s *stubApplicationService) Get(_ context.Context, _, _ uuid.UUID) (*db.Application, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.app, nil
}

func (s *stubApplicationService) List(_ context.Context, _ uuid.UUID, _ db.ListApplicationsOptions) ([]db.Application, int, error) {
	if s.app == nil {
		return nil, 0, s.err
	}
	return []db.Application{*s.app}, 1, s.err
}

func (s *stubApplicationService) Events(_ context.Context, _, _ uuid.UUID) ([]db.ApplicationEvent, error) {
	return s.events, s.err
}

func (s *stubApplicationService) TransitionTo(_ context.Context, _, _ uuid.UUID, _ lifecycle.Status, _ lifecycle.TransitionOptions) (*db.Application, error) {
	return s.app, s.err
}

type stubArtifactService struct {
	artifact *db.GeneratedArtifact
	usage    *entitlement.Usage
	err      error
}

func (s *stubArtifactService) Generate(_ context.Context, _, _ uuid.UUID, _, _ string) (*db.GeneratedArtifact, error) {
	return s.artifact, s.err
}

func (s *stubArtifactService) List(_ context.Context, _, _ uuid.UUID) ([]db.GeneratedArtifact, error) {
	if s.artifact == nil {
		return nil, s.err
	}
	return []db.GeneratedArtifact{*s.artifact}, s.err
}

func (s *stubArtifactService) Usage(_ context.Context, _ uuid.UUID) (*entitlement.Usage, error) {
	return s.usage, s.err
}

func newTestServer(t *testing.T, services Services) *Server {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-for-handler-tests")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	srv, err := New(Config{Host: "127.0.0.1", Port: 0}, nil, services)
	require.NoError(t, err)
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return srv
}

func authedRequest(t *testing.T, srv *Server, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)

	token, err := srv.jwtService.GenerateToken(uuid.New())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Services{})

	rec := doRequest(srv, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, Services{})

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/jobs"},
		{"GET", "/jobs"},
		{"POST", "/applications"},
		{"GET", "/applications"},
		{"GET", "/usage"},
	}
	for _, p := range paths {
		rec := doRequest(srv, httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestServer_RejectsBadToken(t *testing.T) {
	srv := newTestServer(t, Services{})

	req := httptest.NewRequest("GET", "/jobs", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_IngestJob(t *testing.T) {
	posting := &db.JobPosting{
		ID:     uuid.New(),
		Status: db.PostingStatusScraped,
	}
	srv := newTestServer(t, Services{Jobs: &stubJobService{posting: posting}})

	req := authedRequest(t, srv, "POST", "/jobs", map[string]string{"url": "https://example.com/careers/42"})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), posting.ID.String())
}

func TestServer_IngestJob_MissingURL(t *testing.T) {
	srv := newTestServer(t, Services{Jobs: &stubJobService{}})

	req := authedRequest(t, srv, "POST", "/jobs", map[string]string{})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_IngestJob_InvalidURL(t *testing.T) {
	srv := newTestServer(t, Services{Jobs: &stubJobService{err: ingestion.ErrInvalidURL}})

	req := authedRequest(t, srv, "POST", "/jobs", map[string]string{"url": "not a url"})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_IngestJobHTML_MissingFields(t *testing.T) {
	srv := newTestServer(t, Services{Jobs: &stubJobService{}})

	req := authedRequest(t, srv, "POST", "/jobs/html", map[string]string{"html": "<html></html>"})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url is required")
}

func TestServer_GetJob_NotFound(t *testing.T) {
	srv := newTestServer(t, Services{Jobs: &stubJobService{}})

	req := authedRequest(t, srv, "GET", "/jobs/"+uuid.NewString(), nil)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateApplication_PostingNotUsable(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{err: lifecycle.ErrPostingNotUsable}})

	req := authedRequest(t, srv, "POST", "/applications", map[string]string{
		"job_posting_id": uuid.NewString(),
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_CreateApplication_Duplicate(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{err: lifecycle.ErrDuplicateApplication}})

	req := authedRequest(t, srv, "POST", "/applications", map[string]string{
		"job_posting_id": uuid.NewString(),
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Transition_InvalidEdge(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{
		err: &lifecycle.InvalidTransitionError{From: lifecycle.StatusPending, To: lifecycle.StatusOfferReceived},
	}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/status", map[string]string{
		"status": "offer_received",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Transition_StaleVersion(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{err: db.ErrStaleVersion}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/status", map[string]string{
		"status": "applied",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Transition_MissingStatus(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/status", map[string]string{})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Transition_Success(t *testing.T) {
	now := time.Now()
	app := &db.Application{
		ID:        uuid.New(),
		Status:    string(lifecycle.StatusApplied),
		Version:   2,
		AppliedAt: &now,
	}
	srv := newTestServer(t, Services{Applications: &stubApplicationService{app: app}})

	req := authedRequest(t, srv, "POST", "/applications/"+app.ID.String()+"/status", map[string]string{
		"status": "applied",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":2`)
}

func TestServer_ListEvents(t *testing.T) {
	srv := newTestServer(t, Services{Applications: &stubApplicationService{
		events: []db.ApplicationEvent{
			{ID: uuid.New(), ToStatus: "pending"},
			{ID: uuid.New(), FromStatus: "pending", ToStatus: "applied"},
		},
	}})

	req := authedRequest(t, srv, "GET", "/applications/"+uuid.NewString()+"/events", nil)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
}

func TestServer_GenerateArtifact_QuotaExceeded(t *testing.T) {
	srv := newTestServer(t, Services{Artifacts: &stubArtifactService{err: generation.ErrQuotaExceeded}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/artifacts", map[string]string{
		"kind": "resume",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestServer_GenerateArtifact_PremiumRequired(t *testing.T) {
	srv := newTestServer(t, Services{Artifacts: &stubArtifactService{err: generation.ErrPremiumRequired}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/artifacts", map[string]string{
		"kind": "deep_dive",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestServer_GenerateArtifact_ModelFailure(t *testing.T) {
	srv := newTestServer(t, Services{Artifacts: &stubArtifactService{
		err: &generation.GenerationError{Kind: "resume", Cause: context.DeadlineExceeded},
	}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/artifacts", map[string]string{
		"kind": "resume",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_GenerateArtifact_Success(t *testing.T) {
	artifact := &db.GeneratedArtifact{
		ID:   uuid.New(),
		Kind: db.ArtifactKindResume,
	}
	srv := newTestServer(t, Services{Artifacts: &stubArtifactService{artifact: artifact}})

	req := authedRequest(t, srv, "POST", "/applications/"+uuid.NewString()+"/artifacts", map[string]string{
		"kind": "resume",
	})
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), artifact.ID.String())
}

func TestServer_Usage(t *testing.T) {
	srv := newTestServer(t, Services{Artifacts: &stubArtifactService{
		usage: &entitlement.Usage{Tier: db.TierFree, ResumesUsed: 2, ResumeLimit: 3, Remaining: 1},
	}})

	req := authedRequest(t, srv, "GET", "/usage", nil)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":1`)
}
