// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds JSON request bodies and websocket frames.
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageCount is the maximum number of messages in one chat request.
	MaxMessageCount = 200

	// ShutdownTimeout bounds the graceful shutdown in Run.
	ShutdownTimeout = 10 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Ollama is the part of *ollama.Client the server needs.
type Ollama interface {
	CheckRunning(ctx context.Context) error
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ChatStream(ctx context.Context, model string, history []ollama.Message) (*ollama.Stream, error)
}

// SystemPrompter builds the system message for websocket chats.
type SystemPrompter interface {
	SystemPrompt() string
	BuildSystemMessage() ollama.Message
}

// Options wires a Server.
type Options struct {
	Addr          string
	Client        Ollama
	Knowledge     *knowledge.Store
	Conversations *storage.ConversationStore
	Composer      SystemPrompter

	// AdminTokenHash is the bcrypt hash guarding knowledge mutations.
	AdminTokenHash string

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int

	AllowedOrigins []string
	Logger         *log.Logger
	Version        string
}

// Server exposes the knowledge store, conversations and chat over HTTP.
type Server struct {
	opts    Options
	logger  *log.Logger
	handler http.Handler
	started time.Time
}

// New builds the router. It does not listen; see Run.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{opts: opts, logger: logger, started: time.Now()}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(DefaultCORSConfig(s.opts.AllowedOrigins)))
	if s.opts.RateLimit > 0 {
		r.Use(RateLimitMiddleware(NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst)))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/system-prompt", s.handleSystemPrompt)

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", s.handleListKnowledge)
			r.Get("/categories", s.handleCategories)
			r.Get("/context", s.handleContext)
			r.Get("/{id}", s.handleGetKnowledge)

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(s.opts.AdminTokenHash, s.logger))
				r.Post("/", s.handleAddKnowledge)
				r.Post("/reset", s.handleResetKnowledge)
				r.Patch("/{id}", s.handleUpdateKnowledge)
				r.Delete("/{id}", s.handleDeleteKnowledge)
			})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Get("/{id}", s.handleGetConversation)
			r.Delete("/{id}", s.handleDeleteConversation)
		})

		r.Get("/chat/ws", s.handleChatWebSocket)
	})

	return r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.opts.Addr, "version", s.opts.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
