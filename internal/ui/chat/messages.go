// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/disam-ia/disamia/internal/ollama"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamTickMsg drives the 30fps flush of the streaming buffer.
type StreamTickMsg struct {
	Time time.Time
}

// ReplyDoneMsg is sent when Session.Send returns.
type ReplyDoneMsg struct {
	Reply string
	Err   error
	Stats ollama.StreamStats
}

// =============================================================================
// OLLAMA MESSAGES
// =============================================================================

// OllamaStatusMsg reports the result of a model listing.
type OllamaStatusMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// =============================================================================
// KNOWLEDGE MESSAGES
// =============================================================================

// KnowledgeChangedMsg tells the view the knowledge base was edited. The view
// recomposes the session's system message.
type KnowledgeChangedMsg struct{}

// =============================================================================
// DOCUMENT MESSAGES
// =============================================================================

// DocumentLoadedMsg carries the text extracted for /attach.
type DocumentLoadedMsg struct {
	Name string
	Text string
	Err  error
}
