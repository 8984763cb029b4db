// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the stored layout verbatim, so its output can be
// loaded back with Decode.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// ExportConversation converts a conversation to indented JSON.
func (e *JSONExporter) ExportConversation(conv *storage.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	return json.MarshalIndent(conv, "", "  ")
}

// ExportKnowledge converts entries to an indented JSON array.
func (e *JSONExporter) ExportKnowledge(entries []knowledge.Entry) ([]byte, error) {
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
