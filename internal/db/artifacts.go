package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Generated Artifact Methods
// -----------------------------------------------------------------------------

const artifactColumns = `id, application_id, user_id, kind, content, model, template_id, created_at`

func scanArtifact(row pgx.Row) (*GeneratedArtifact, error) {
	var a GeneratedArtifact
	var model, templateID *string
	err := row.Scan(&a.ID, &a.ApplicationID, &a.UserID, &a.Kind, &a.Content,
		&model, &templateID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if model != nil {
		a.Model = *model
	}
	if templateID != nil {
		a.TemplateID = *templateID
	}
	return &a, nil
}

// CreateArtifact persists a generated artifact. When the artifact counts
// toward quota, the usage counter is re-checked and incremented in the same
// transaction: the row lock on usage_counters serializes concurrent requests,
// so exactly one of two racing generations gets the last slot and the other
// fails with ErrQuotaExhausted before anything is written.
func (db *DB) CreateArtifact(ctx context.Context, input *ArtifactCreateInput) (*GeneratedArtifact, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if input.CountsTowardQuota {
		_, err = tx.Exec(ctx,
			`INSERT INTO usage_counters (user_id, resumes_used)
			 VALUES ($1, 0)
			 ON CONFLICT (user_id) DO NOTHING`,
			input.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize usage counter: %w", err)
		}

		var used int
		err = tx.QueryRow(ctx,
			`SELECT resumes_used FROM usage_counters WHERE user_id = $1 FOR UPDATE`,
			input.UserID,
		).Scan(&used)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage counter: %w", err)
		}

		// Limit < 0 means unlimited
		if input.Limit >= 0 && used >= input.Limit {
			return nil, ErrQuotaExhausted
		}

		_, err = tx.Exec(ctx,
			`UPDATE usage_counters SET resumes_used = resumes_used + 1, updated_at = NOW()
			 WHERE user_id = $1`,
			input.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to increment usage counter: %w", err)
		}
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO generated_artifacts (application_id, user_id, kind, content, model, template_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+artifactColumns,
		input.ApplicationID, input.UserID, input.Kind, input.Content,
		nullIfEmpty(input.Model), nullIfEmpty(input.TemplateID),
	)
	a, err := scanArtifact(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// GetArtifactByID retrieves a single artifact
func (db *DB) GetArtifactByID(ctx context.Context, id uuid.UUID) (*GeneratedArtifact, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM generated_artifacts WHERE id = $1`, id)

	a, err := scanArtifact(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// ListArtifactsByApplication returns all artifacts for an application
func (db *DB) ListArtifactsByApplication(ctx context.Context, applicationID uuid.UUID) ([]GeneratedArtifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM generated_artifacts
		 WHERE application_id = $1
		 ORDER BY created_at DESC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []GeneratedArtifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, nil
}

// GetUsageCounter returns a user's usage counter. A user who has never
// generated a counted artifact gets a zero counter, not an error.
func (db *DB) GetUsageCounter(ctx context.Context, userID uuid.UUID) (*UsageCounter, error) {
	var c UsageCounter

	err := db.pool.QueryRow(ctx,
		`SELECT user_id, resumes_used, period_start, updated_at
		 FROM usage_counters WHERE user_id = $1`,
		userID,
	).Scan(&c.UserID, &c.ResumesUsed, &c.PeriodStart, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			now := time.Now()
			return &UsageCounter{UserID: userID, PeriodStart: now, UpdatedAt: now}, nil
		}
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}

	return &c, nil
}
