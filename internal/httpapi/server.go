// Package httpapi exposes the gateway's HTTP surface: the Twilio WhatsApp
// webhook, the bot admin API and health. The webhook always answers TwiML,
// even on internal failure, because a non-2xx makes Twilio retry and the
// customer sees nothing.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/orchestrator"
)

// Server hosts the webhook and admin endpoints.
type Server struct {
	orch        *orchestrator.Orchestrator
	bots        bots.Repository
	adminToken  string
	rateLimiter *WebhookRateLimiter
	tracer      trace.Tracer

	httpServer *http.Server
}

// NewServer wires the HTTP surface. adminToken guards the bot admin API; an
// empty token disables those routes entirely.
func NewServer(addr string, orch *orchestrator.Orchestrator, repo bots.Repository, adminToken string) *Server {
	s := &Server{
		orch:        orch,
		bots:        repo,
		adminToken:  adminToken,
		rateLimiter: NewWebhookRateLimiter(),
		tracer:      otel.Tracer("turnero/httpapi"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/whatsapp", s.handleWhatsAppWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	if adminToken != "" {
		mux.HandleFunc("GET /v1/bots", s.requireAdmin(s.handleListBots))
		mux.HandleFunc("POST /v1/bots", s.requireAdmin(s.handleCreateBot))
		mux.HandleFunc("GET /v1/bots/{id}", s.requireAdmin(s.handleGetBot))
		mux.HandleFunc("PUT /v1/bots/{id}", s.requireAdmin(s.handleUpdateBot))
		mux.HandleFunc("DELETE /v1/bots/{id}", s.requireAdmin(s.handleDeleteBot))
	} else {
		slog.Warn("admin token not configured, bot admin API disabled")
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAdmin enforces the bearer token on admin routes.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// spanAttr is a tiny helper keeping webhook span attributes consistent.
func spanAttr(span trace.Span, key, value string) {
	if value != "" {
		span.SetAttributes(attribute.String(key, value))
	}
}
