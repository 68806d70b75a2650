package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/server/middleware"
)

// GenerateArtifactRequest represents the request body for POST /applications/{id}/artifacts
type GenerateArtifactRequest struct {
	Kind       string `json:"kind"`
	TemplateID string `json:"template_id,omitempty"`
}

// handleGenerateArtifact generates an artifact for an application
func (s *Server) handleGenerateArtifact(w http.ResponseWriter, r *http.Request) {
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

	var req GenerateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Kind == "" {
		s.errorResponse(w, http.StatusBadRequest, "kind is required")
		return
	}

	artifact, err := s.artifacts.Generate(r.Context(), userID, appID, req.Kind, req.TemplateID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, artifact)
}

// handleListArtifacts lists an application's generated artifacts
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
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

	artifacts, err := s.artifacts.List(r.Context(), userID, appID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"artifacts": artifacts,
		"total":     len(artifacts),
	})
}

// handleGetUsage returns the user's quota usage for the current period
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	usage, err := s.artifacts.Usage(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, usage)
}
