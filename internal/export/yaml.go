// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/storage"
)

// YAMLExporter writes the same structure as JSONExporter in YAML, which is
// easier to edit by hand before loading it back.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

// ExportConversation converts a conversation to YAML.
func (e *YAMLExporter) ExportConversation(conv *storage.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	return encodeYAML(conv)
}

// ExportKnowledge converts entries to a YAML sequence.
func (e *YAMLExporter) ExportKnowledge(entries []knowledge.Entry) ([]byte, error) {
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	return encodeYAML(entries)
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
