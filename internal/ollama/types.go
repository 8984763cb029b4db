// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role    string   `json:"role"`             // "system", "user" or "assistant"
	Content string   `json:"content"`          // The message content
	Images  []string `json:"images,omitempty"` // Base64 images for multimodal models
}

// ChatRequest is the request body for /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// streamRecord is one NDJSON line of a streaming /api/chat response.
type streamRecord struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done               bool   `json:"done"`
	DoneReason         string `json:"done_reason,omitempty"`
	Error              string `json:"error,omitempty"`
	TotalDuration      int64  `json:"total_duration,omitempty"`       // nanoseconds
	LoadDuration       int64  `json:"load_duration,omitempty"`        // nanoseconds
	PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`    // tokens in prompt
	PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"` // nanoseconds
	EvalCount          int    `json:"eval_count,omitempty"`           // tokens generated
	EvalDuration       int64  `json:"eval_duration,omitempty"`        // nanoseconds
}

// apiError is the body Ollama returns alongside failure statuses.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL TYPES
// =============================================================================

// ModelInfo describes an installed model.
type ModelInfo struct {
	Name       string       `json:"name"`
	Model      string       `json:"model,omitempty"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// FormatSize formats the model size in human-readable form.
func (m ModelInfo) FormatSize() string {
	return humanize.IBytes(uint64(m.Size))
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
