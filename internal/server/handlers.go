// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
)

// ============================================================================
// HEALTH & MODELS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Ollama        string `json:"ollama"`
	Uptime        string `json:"uptime"`
	KnowledgeSize int    `json:"knowledgeEntries"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Ollama:  "ok",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.opts.Knowledge != nil {
		resp.KnowledgeSize = len(s.opts.Knowledge.List())
	}
	if err := s.opts.Client.CheckRunning(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Ollama = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	Models []ollama.ModelInfo `json:"models"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.opts.Client.ListModels(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if ollama.IsNotRunning(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Models: models})
}

func (s *Server) handleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"prompt": s.opts.Composer.SystemPrompt()})
}

// ============================================================================
// KNOWLEDGE
// ============================================================================

// KnowledgeRequest is the body of POST /api/knowledge.
type KnowledgeRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		writeJSON(w, http.StatusOK, s.opts.Knowledge.ByCategory(category))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Knowledge.List())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Knowledge.Categories())
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.opts.Knowledge.RenderContext()))
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.opts.Knowledge.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	var req KnowledgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := s.opts.Knowledge.Add(req.Title, req.Content, req.Category)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.opts.Knowledge.Get(id); !ok {
		writeError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}

	var patch knowledge.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.opts.Knowledge.Update(id, patch); err != nil {
		s.writeStoreError(w, err)
		return
	}

	entry, _ := s.opts.Knowledge.Get(id)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.opts.Knowledge.Get(id); !ok {
		writeError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}
	if err := s.opts.Knowledge.Delete(id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Knowledge.Reset(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Knowledge.List())
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var verr *knowledge.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Message, Field: verr.Field})
		return
	}
	s.logger.Error("store write failed", "err", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

// ConversationSummary is one row of GET /api/conversations.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
	Preview      string `json:"preview"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if s.opts.Conversations == nil {
		writeJSON(w, http.StatusOK, []ConversationSummary{})
		return
	}

	var convs []storage.Conversation
	if q := r.URL.Query().Get("q"); q != "" {
		convs = s.opts.Conversations.Search(q)
	} else {
		convs = s.opts.Conversations.List()
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			Preview:      c.Preview(80),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if s.opts.Conversations == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	conv, err := s.opts.Conversations.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if s.opts.Conversations == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.opts.Conversations.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err := s.opts.Conversations.Delete(id); err != nil {
		s.logger.Error("conversation delete failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
