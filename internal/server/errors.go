// Package server provides the HTTP REST API for the application tracker.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/generation"
	"github.com/jonathan/applyflow/internal/ingestion"
	"github.com/jonathan/applyflow/internal/lifecycle"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrEmailAlreadyExists:
		return http.StatusConflict
	case *ErrInvalidCredentials:
		return http.StatusUnauthorized
	case *ErrUserNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusBadRequest
	}

	var invalidTransition *lifecycle.InvalidTransitionError
	var generationFailed *generation.GenerationError

	switch {
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, generation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrDuplicateApplication),
		errors.Is(err, db.ErrStaleVersion):
		return http.StatusConflict
	case errors.As(err, &invalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrPostingNotUsable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrQuotaExceeded),
		errors.Is(err, generation.ErrPremiumRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, generation.ErrUnknownKind),
		errors.Is(err, ingestion.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.As(err, &generationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
