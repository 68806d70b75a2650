package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/server/middleware"
)

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// optionalQuery returns a pointer to the query parameter value, or nil if absent.
func optionalQuery(r *http.Request, key string) *string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	return &val
}

// IngestJobRequest represents the request body for POST /jobs
type IngestJobRequest struct {
	URL string `json:"url"`
}

// IngestJobHTMLRequest represents the request body for POST /jobs/html
type IngestJobHTMLRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// handleIngestJob ingests a job posting from a URL
func (s *Server) handleIngestJob(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req IngestJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	posting, err := s.jobs.IngestFromURL(r.Context(), userID, req.URL)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	// An unusable posting is still created; the status field carries the outcome
	s.jsonResponse(w, http.StatusCreated, posting)
}

// handleIngestJobHTML ingests a job posting from caller-supplied HTML
func (s *Server) handleIngestJobHTML(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req IngestJobHTMLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.HTML == "" {
		s.errorResponse(w, http.StatusBadRequest, "html is required")
		return
	}
	if req.URL == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	posting, err := s.jobs.IngestFromHTML(r.Context(), userID, req.HTML, req.URL)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, posting)
}

// handleListJobs lists the user's job postings
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	opts := db.ListJobPostingsOptions{
		Status:   optionalQuery(r, "status"),
		Platform: optionalQuery(r, "platform"),
		Limit:    parseQueryInt(r, "limit", 50, 100),
		Offset:   parseQueryInt(r, "offset", 0, 0),
	}

	postings, total, err := s.jobs.List(r.Context(), userID, opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"jobs":   postings,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// handleGetJob retrieves a job posting by ID
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job posting ID")
		return
	}

	posting, err := s.jobs.Get(r.Context(), userID, postingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if posting == nil {
		s.errorResponse(w, http.StatusNotFound, "Job posting not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, posting)
}
