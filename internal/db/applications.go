package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Application Methods
// -----------------------------------------------------------------------------

const applicationColumns = `id, job_posting_id, user_id, status, notes, applied_at,
	        reminder_at, version, created_at, updated_at`

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.JobPostingID, &a.UserID, &a.Status, &a.Notes,
		&a.AppliedAt, &a.ReminderAt, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateApplication creates an application and its first audit event in one
// transaction, so the event log never lags the application row.
func (db *DB) CreateApplication(ctx context.Context, input *ApplicationCreateInput) (*Application, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`INSERT INTO applications (job_posting_id, user_id, status, notes, version)
		 VALUES ($1, $2, $3, $4, 1)
		 RETURNING `+applicationColumns,
		input.JobPostingID, input.UserID, input.InitialStatus, nullIfEmpty(input.Notes),
	)
	a, err := scanApplication(row)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("application already exists for posting %s", input.JobPostingID)
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO application_events (application_id, from_status, to_status, notes)
		 VALUES ($1, '', $2, $3)`,
		a.ID, input.InitialStatus, nullIfEmpty(input.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record creation event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// GetApplicationByID retrieves an application by its ID
func (db *DB) GetApplicationByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)

	a, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// GetApplicationByPostingID retrieves a user's application for a posting
func (db *DB) GetApplicationByPostingID(ctx context.Context, userID, postingID uuid.UUID) (*Application, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE user_id = $1 AND job_posting_id = $2`,
		userID, postingID)

	a, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// ListApplicationsOptions contains filters for listing applications
type ListApplicationsOptions struct {
	Status *string
	Limit  int
	Offset int
}

// ListApplications lists a user's applications, newest first
func (db *DB) ListApplications(ctx context.Context, userID uuid.UUID, opts ListApplicationsOptions) ([]Application, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	argIndex := 2

	if opts.Status != nil && *opts.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *opts.Status)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM applications %s", whereClause)
	if err := db.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
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
		`SELECT `+applicationColumns+` FROM applications %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, *a)
	}

	return apps, total, nil
}

// TransitionApplication applies one status transition atomically: the status
// update and the audit event either both persist or neither does. The update
// is guarded by the caller's expected version; when a concurrent transition
// got there first, zero rows match and ErrStaleVersion is returned so the
// caller can re-read and re-validate.
func (db *DB) TransitionApplication(ctx context.Context, input *TransitionInput) (*Application, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx,
		`UPDATE applications SET
		     status = $3,
		     version = version + 1,
		     applied_at = COALESCE($4, applied_at),
		     reminder_at = COALESCE($5, reminder_at),
		     updated_at = NOW()
		 WHERE id = $1 AND version = $2
		 RETURNING `+applicationColumns,
		input.ApplicationID, input.ExpectedVersion, input.ToStatus,
		input.AppliedAt, input.ReminderAt,
	)
	a, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("failed to transition application: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO application_events (application_id, from_status, to_status, notes)
		 VALUES ($1, $2, $3, $4)`,
		input.ApplicationID, input.FromStatus, input.ToStatus, nullIfEmpty(input.Notes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record transition event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// ListApplicationEvents returns an application's audit log, oldest first
func (db *DB) ListApplicationEvents(ctx context.Context, applicationID uuid.UUID) ([]ApplicationEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, application_id, from_status, to_status, notes, created_at
		 FROM application_events
		 WHERE application_id = $1
		 ORDER BY created_at ASC, id ASC`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list application events: %w", err)
	}
	defer rows.Close()

	var events []ApplicationEvent
	for rows.Next() {
		var e ApplicationEvent
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.FromStatus, &e.ToStatus,
			&e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
