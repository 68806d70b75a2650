// Package server provides the HTTP REST API for the application tracker.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/applyflow/internal/config"
	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/entitlement"
	"github.com/jonathan/applyflow/internal/lifecycle"
	"github.com/jonathan/applyflow/internal/server/middleware"
	"github.com/jonathan/applyflow/internal/server/ratelimit"
)

// JobService ingests and retrieves job postings.
type JobService interface {
	IngestFromURL(ctx context.Context, userID uuid.UUID, rawURL string) (*db.JobPosting, error)
	IngestFromHTML(ctx context.Context, userID uuid.UUID, html, rawURL string) (*db.JobPosting, error)
	Get(ctx context.Context, userID, postingID uuid.UUID) (*db.JobPosting, error)
	List(ctx context.Context, userID uuid.UUID, opts db.ListJobPostingsOptions) ([]db.JobPosting, int, error)
}

// ApplicationService manages the application lifecycle.
type ApplicationService interface {
	Create(ctx context.Context, userID, postingID uuid.UUID, notes string) (*db.Application, error)
	Get(ctx context.Context, userID, appID uuid.UUID) (*db.Application, error)
	List(ctx context.Context, userID uuid.UUID, opts db.ListApplicationsOptions) ([]db.Application, int, error)
	Events(ctx context.Context, userID, appID uuid.UUID) ([]db.ApplicationEvent, error)
	TransitionTo(ctx context.Context, userID, appID uuid.UUID, to lifecycle.Status, opts lifecycle.TransitionOptions) (*db.Application, error)
}

// ArtifactService generates and retrieves application artifacts.
type ArtifactService interface {
	Generate(ctx context.Context, userID, appID uuid.UUID, kind, templateID string) (*db.GeneratedArtifact, error)
	List(ctx context.Context, userID, appID uuid.UUID) ([]db.GeneratedArtifact, error)
	Usage(ctx context.Context, userID uuid.UUID) (*entitlement.Usage, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	db           *db.DB
	jobs         JobService
	applications ApplicationService
	artifacts    ArtifactService
	rateLimiter  *ratelimit.Limiter
	jwtService   *JWTService
	userService  *UserService
	authHandler  *AuthHandler
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
}

// Services bundles the domain services the server fronts.
type Services struct {
	Jobs         JobService
	Applications ApplicationService
	Artifacts    ArtifactService
}

// New creates a new server instance
func New(cfg Config, database *db.DB, services Services) (*Server, error) {
	s := &Server{
		db:           database,
		jobs:         services.Jobs,
		applications: services.Applications,
		artifacts:    services.Artifacts,
	}

	// Initialize rate limiter
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	// Initialize authentication services
	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	s.userService = NewUserService(database, passwordConfig)

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	s.jwtService = NewJWTService(jwtConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Generation requests block on the model
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the router. Everything except health and auth sits behind
// JWT authentication.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)

	protected := http.NewServeMux()

	// Job posting endpoints
	protected.HandleFunc("POST /jobs", s.handleIngestJob)
	protected.HandleFunc("POST /jobs/html", s.handleIngestJobHTML)
	protected.HandleFunc("GET /jobs", s.handleListJobs)
	protected.HandleFunc("GET /jobs/{id}", s.handleGetJob)

	// Application lifecycle endpoints
	protected.HandleFunc("POST /applications", s.handleCreateApplication)
	protected.HandleFunc("GET /applications", s.handleListApplications)
	protected.HandleFunc("GET /applications/{id}", s.handleGetApplication)
	protected.HandleFunc("GET /applications/{id}/events", s.handleListApplicationEvents)
	protected.HandleFunc("POST /applications/{id}/status", s.handleTransitionApplication)

	// Artifact endpoints
	protected.HandleFunc("POST /applications/{id}/artifacts", s.handleGenerateArtifact)
	protected.HandleFunc("GET /applications/{id}/artifacts", s.handleListArtifacts)

	// Account endpoints
	protected.HandleFunc("GET /usage", s.handleGetUsage)
	protected.HandleFunc("GET /me", s.handleGetMe)

	authed := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(protected)
	mux.Handle("/", authed)

	return mux
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)

		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For would only be
// trustworthy behind a known proxy.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleGetMe returns the authenticated user's profile.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := s.userService.Get(r.Context(), userID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, user)
}
