// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/disam-ia/disamia/internal/knowledge"
)

// DecodeKnowledge parses a knowledge snapshot written by the JSON or YAML
// exporter. format is a format name or a file extension.
func DecodeKnowledge(data []byte, format string) ([]knowledge.Entry, error) {
	var entries []knowledge.Entry

	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case FormatJSON:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode knowledge JSON: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode knowledge YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot load knowledge from %q files (supported: json, yaml)", format)
	}

	if entries == nil {
		entries = []knowledge.Entry{}
	}
	return entries, nil
}

// ReadKnowledgeFile reads and decodes a snapshot, picking the format from
// the file extension.
func ReadKnowledgeFile(path string) ([]knowledge.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeKnowledge(data, filepath.Ext(path))
}
