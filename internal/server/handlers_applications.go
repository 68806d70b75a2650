package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/lifecycle"
	"github.com/jonathan/applyflow/internal/server/middleware"
)

// CreateApplicationRequest represents the request body for POST /applications
type CreateApplicationRequest struct {
	JobPostingID string `json:"job_posting_id"`
	Notes        string `json:"notes,omitempty"`
}

// TransitionRequest represents the request body for POST /applications/{id}/status
type TransitionRequest struct {
	Status     string     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	ReminderAt *time.Time `json:"reminder_at,omitempty"`
}

// handleCreateApplication creates an application for a usable job posting
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	postingID, err := uuid.Parse(req.JobPostingID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job posting ID")
		return
	}

	app, err := s.applications.Create(r.Context(), userID, postingID, req.Notes)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, app)
}

// handleListApplications lists the user's applications
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	opts := db.ListApplicationsOptions{
		Status: optionalQuery(r, "status"),
		Limit:  parseQueryInt(r, "limit", 50, 100),
		Offset: parseQueryInt(r, "offset", 0, 0),
	}

	apps, total, err := s.applications.List(r.Context(), userID, opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"applications": apps,
		"total":        total,
		"limit":        opts.Limit,
		"offset":       opts.Offset,
	})
}

// handleGetApplication retrieves an application by ID
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	appID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	app, err := s.applications.Get(r.Context(), userID, appID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, app)
}

// handleListApplicationEvents returns the application's transition history
func (s *Server) handleListApplicationEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	appID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	events, err := s.applications.Events(r.Context(), userID, appID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
	})
}

// handleTransitionApplication moves an application to a new status
func (s *Server) handleTransitionApplication(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	appID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid application ID")
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Status == "" {
		s.errorResponse(w, http.StatusBadRequest, "status is required")
		return
	}

	app, err := s.applications.TransitionTo(r.Context(), userID, appID, lifecycle.Status(req.Status), lifecycle.TransitionOptions{
		Notes:      req.Notes,
		ReminderAt: req.ReminderAt,
	})
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, app)
}
