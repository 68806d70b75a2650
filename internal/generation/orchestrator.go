package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/entitlement"
)

// DefaultGenerateTimeout bounds a single generator call
const DefaultGenerateTimeout = 60 * time.Second

// Sentinel errors
var (
	// ErrNotFound is returned when the application does not exist or belongs
	// to another user.
	ErrNotFound = errors.New("application not found")
	// ErrUnknownKind is returned for artifact kinds the generator cannot
	// produce.
	ErrUnknownKind = errors.New("unknown artifact kind")
	// ErrQuotaExceeded is returned when the user's generation quota is spent,
	// whether at the advisory check or the transactional re-check.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrPremiumRequired is returned when a free-tier user requests a
	// premium artifact kind.
	ErrPremiumRequired = errors.New("premium subscription required")
)

// GenerationError wraps upstream generator failures. Nothing is persisted
// and no quota is consumed when it is returned.
type GenerationError struct {
	Kind  string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Kind, e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Store is the persistence surface the orchestrator needs
type Store interface {
	GetApplicationByID(ctx context.Context, id uuid.UUID) (*db.Application, error)
	GetJobPostingByID(ctx context.Context, id uuid.UUID) (*db.JobPosting, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUsageCounter(ctx context.Context, userID uuid.UUID) (*db.UsageCounter, error)
	CreateArtifact(ctx context.Context, input *db.ArtifactCreateInput) (*db.GeneratedArtifact, error)
	ListArtifactsByApplication(ctx context.Context, applicationID uuid.UUID) ([]db.GeneratedArtifact, error)
}

// Options configures the orchestrator
type Options struct {
	GenerateTimeout time.Duration // per generator attempt
}

// Orchestrator runs the generation contract: entitlement check before the
// generator is touched, bounded generation, then atomic persist+count.
type Orchestrator struct {
	store     Store
	generator Generator
	evaluator *entitlement.Evaluator
	opts      Options
}

// NewOrchestrator creates a generation orchestrator
func NewOrchestrator(store Store, generator Generator, evaluator *entitlement.Evaluator, opts Options) *Orchestrator {
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultGenerateTimeout
	}
	return &Orchestrator{store: store, generator: generator, evaluator: evaluator, opts: opts}
}

// Generate produces and persists one artifact for an application.
//
// The entitlement check runs before the generator so denied requests incur
// no model cost. The check is advisory for counted kinds: the persist step
// re-checks the counter under a row lock, so two requests racing for the
// last quota slot resolve to exactly one artifact. A generator error or
// timeout persists nothing and consumes no quota.
func (o *Orchestrator) Generate(ctx context.Context, userID, appID uuid.UUID, kind, templateID string) (*db.GeneratedArtifact, error) {
	if !entitlement.KnownKind(kind) {
		return nil, ErrUnknownKind
	}

	app, err := o.store.GetApplicationByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.UserID != userID {
		return nil, ErrNotFound
	}

	posting, err := o.store.GetJobPostingByID(ctx, app.JobPostingID)
	if err != nil {
		return nil, err
	}
	if posting == nil {
		return nil, ErrNotFound
	}

	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	counter, err := o.store.GetUsageCounter(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := o.evaluator.CanGenerate(user.Tier, kind, counter.ResumesUsed)
	if !decision.Allowed {
		switch decision.Reason {
		case entitlement.ReasonTierRequired:
			return nil, ErrPremiumRequired
		case entitlement.ReasonUnknownKind:
			return nil, ErrUnknownKind
		default:
			return nil, ErrQuotaExceeded
		}
	}

	result, err := o.generateWithRetry(ctx, &Request{
		Kind:        kind,
		Posting:     posting,
		Application: app,
		TemplateID:  templateID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GenerationError{Kind: kind, Cause: err}
	}

	artifact, err := o.store.CreateArtifact(ctx, &db.ArtifactCreateInput{
		ApplicationID:     appID,
		UserID:            userID,
		Kind:              kind,
		Content:           result.Content,
		Model:             result.Model,
		TemplateID:        templateID,
		CountsTowardQuota: entitlement.CountsTowardQuota(kind),
		Limit:             o.evaluator.ResumeLimit(user.Tier),
	})
	if err != nil {
		if errors.Is(err, db.ErrQuotaExhausted) {
			return nil, ErrQuotaExceeded
		}
		return nil, err
	}

	return artifact, nil
}

// generateWithRetry bounds the generator call and retries exactly once when
// the attempt timed out. Other failures are permanent.
func (o *Orchestrator) generateWithRetry(ctx context.Context, req *Request) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	result, err := o.generator.Generate(attemptCtx, req)
	cancel()
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return nil, err
	}

	attemptCtx, cancel = context.WithTimeout(ctx, o.opts.GenerateTimeout)
	result, err = o.generator.Generate(attemptCtx, req)
	cancel()
	return result, err
}

// List returns an application's artifacts after an ownership check
func (o *Orchestrator) List(ctx context.Context, userID, appID uuid.UUID) ([]db.GeneratedArtifact, error) {
	app, err := o.store.GetApplicationByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.UserID != userID {
		return nil, ErrNotFound
	}
	return o.store.ListArtifactsByApplication(ctx, appID)
}

// Usage reports the user's quota position
func (o *Orchestrator) Usage(ctx context.Context, userID uuid.UUID) (*entitlement.Usage, error) {
	user, err := o.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	counter, err := o.store.GetUsageCounter(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage := o.evaluator.UsageFor(user.Tier, counter)
	return &usage, nil
}
