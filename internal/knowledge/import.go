// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"path/filepath"
	"strings"

	"github.com/disam-ia/disamia/internal/extract"
)

// DefaultImportCategory files imported documents when no category is given.
const DefaultImportCategory = "Documentos"

// ImportFile extracts the text of a .txt, .pdf or .docx file and adds it as a
// single entry. An empty title defaults to the file name without extension.
func (s *Store) ImportFile(path, title, category string) (Entry, error) {
	text, err := extract.File(path)
	if err != nil {
		return Entry{}, err
	}
	if strings.TrimSpace(title) == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if strings.TrimSpace(category) == "" {
		category = DefaultImportCategory
	}
	return s.Add(title, text, category)
}
