package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eike-heimpel/forge/internal/config"
	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/prompttest"
	"github.com/eike-heimpel/forge/internal/storage"
)

const serviceName = "forge-ai-service"
const serviceVersion = "1.0.0"

// ContributionProcessor runs the triage pipeline for one contribution.
type ContributionProcessor interface {
	ProcessContribution(ctx context.Context, forgeID, contributionID string) error
}

// SessionService is the legacy whole-document chat and synthesis flow.
type SessionService interface {
	Chat(ctx context.Context, forgeID, roleID, message string, isQuestion bool) (string, error)
	Synthesize(ctx context.Context, forgeID string) (string, error)
}

// PromptTester executes a test render and model call for one prompt.
type PromptTester interface {
	Test(ctx context.Context, p *storage.AIPrompt, vars prompt.Vars) (*prompttest.Result, error)
}

// Store is the persistence surface the HTTP layer needs.
type Store interface {
	storage.ForgeRepository
	storage.ContributionRepository
	storage.PromptRepository
	storage.StateRepository
	Ping() error
}

// getClientIP extracts the real client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back
// to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type Server struct {
	// Server's parent context for webhook processing. Background work
	// started by an accepted webhook outlives the request.
	ctx context.Context

	cfg      *config.Config
	store    Store
	pipeline ContributionProcessor
	sessions SessionService
	harness  PromptTester
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewServer(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	store Store,
	pipeline ContributionProcessor,
	sessions SessionService,
	harness PromptTester,
) *Server {
	return &Server{
		ctx:      ctx,
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		sessions: sessions,
		harness:  harness,
		logger:   logger.With("component", "web"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	s.wg.Wait() // Wait for in-flight webhook processing to finish
	return nil
}

// Handler builds the full route table with middleware applied.
// Chain: Logging -> Auth -> Mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook/process-contribution", instrumentHandler("webhook", s.processContributionHandler))
	mux.HandleFunc("GET /webhook/health", instrumentHandler("webhook_health", s.webhookHealthHandler))

	mux.HandleFunc("GET /prompts", instrumentHandler("prompts_list", s.listPromptsHandler))
	mux.HandleFunc("GET /prompts/{name}", instrumentHandler("prompts_detail", s.promptDetailHandler))
	mux.HandleFunc("GET /prompts/{name}/sample", instrumentHandler("prompts_sample", s.promptSampleHandler))
	mux.HandleFunc("POST /prompts/{name}/test", instrumentHandler("prompts_test", s.testPromptHandler))

	mux.HandleFunc("POST /chat", instrumentHandler("chat", s.chatHandler))
	mux.HandleFunc("POST /synthesize", instrumentHandler("synthesize", s.synthesizeHandler))

	// Register debug routes only if enabled
	if s.cfg.Server.DebugMode {
		mux.HandleFunc("GET /debug/state/{forgeId}", instrumentHandler("debug_state", s.debugStateHandler))
		s.logger.Info("Debug endpoints enabled at /debug/")
	}

	mux.HandleFunc("GET /healthz", instrumentHandler("healthz", s.healthzHandler))
	mux.HandleFunc("GET /status", instrumentHandler("status", s.statusHandler))
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := s.bearerAuthMiddleware(mux)
	return s.loggingMiddleware(handler)
}

// protectedPaths require a bearer token. The prompt test surface and the
// health endpoints are open for operators and monitoring.
var protectedPaths = map[string]bool{
	"/webhook/process-contribution": true,
	"/chat":                         true,
	"/synthesize":                   true,
}

func (s *Server) bearerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if protectedPaths[r.URL.Path] {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != s.cfg.Server.APIToken {
				s.logger.Warn("Request with invalid bearer token",
					"path", r.URL.Path,
					"client_ip", getClientIP(r),
					"user_agent", r.UserAgent(),
				)
				writeError(w, http.StatusUnauthorized, "Invalid authentication token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type processContributionRequest struct {
	ForgeID           string `json:"forgeId"`
	NewContributionID string `json:"newContributionId"`
}

// processContributionHandler validates the referenced resources, then
// acks immediately and runs the pipeline in the background.
func (s *Server) processContributionHandler(w http.ResponseWriter, r *http.Request) {
	var req processContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if uuid.Validate(req.ForgeID) != nil || uuid.Validate(req.NewContributionID) != nil {
		s.logger.Error("Invalid ID in webhook request",
			"forge_id", req.ForgeID, "contribution_id", req.NewContributionID)
		writeError(w, http.StatusBadRequest, "Invalid forge or contribution ID format")
		return
	}

	if _, err := s.store.GetContribution(r.Context(), req.NewContributionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("Contribution not found", "contribution_id", req.NewContributionID)
			writeError(w, http.StatusNotFound, "Contribution not found")
			return
		}
		s.logger.Error("Failed to load contribution", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if _, err := s.store.GetForge(r.Context(), req.ForgeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("Forge not found", "forge_id", req.ForgeID)
			writeError(w, http.StatusNotFound, "Forge not found")
			return
		}
		s.logger.Error("Failed to load forge", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("Received webhook",
		"forge_id", req.ForgeID, "contribution_id", req.NewContributionID)

	// Use server's context (not request context) so processing continues
	// after the handler returns.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pipeline.ProcessContribution(s.ctx, req.ForgeID, req.NewContributionID); err != nil {
			s.logger.Error("Background processing failed",
				"contribution_id", req.NewContributionID, "error", err)
			return
		}
		s.logger.Info("Successfully processed contribution",
			"contribution_id", req.NewContributionID)
	}()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "accepted",
		"message":        "Contribution processing started",
		"contributionId": req.NewContributionID,
	})
}

// debugStateHandler dumps a forge's legacy state document. Registered
// only in debug mode; GetState materializes an initial document for an
// unknown forge, same as the chat flow.
func (s *Server) debugStateHandler(w http.ResponseWriter, r *http.Request) {
	forgeID := r.PathValue("forgeId")

	doc, err := s.store.GetState(r.Context(), forgeID)
	if err != nil {
		s.logger.Error("Failed to load state document", "forge_id", forgeID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) webhookHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":           "healthy",
		"service":          serviceName + "-webhook",
		"ai_configuration": "Dynamic - models configured per prompt in database",
		"authentication":   "Bearer token required",
		"processing":       "Asynchronous background tasks",
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.logger.Error("Database health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "unhealthy",
			"service": serviceName,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	dbHealthy := s.store.Ping() == nil

	promptCount := 0
	if dbHealthy {
		prompts, err := s.store.ListActivePrompts(r.Context())
		if err != nil {
			s.logger.Error("Failed to count active prompts", "error", err)
		} else {
			promptCount = len(prompts)
		}
	}

	status := "operational"
	if !dbHealthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"status":  status,
		"database": map[string]any{
			"connected":      dbHealthy,
			"path":           s.cfg.Database.Path,
			"active_prompts": promptCount,
		},
		"ai": map[string]string{
			"provider":      "OpenRouter",
			"configuration": "Dynamic - models configured per prompt in database",
		},
		"features": map[string]string{
			"webhook_processing": "enabled",
			"prompt_testing":     "enabled",
			"background_tasks":   "enabled",
			"authentication":     "bearer_token",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
