// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders conversations and knowledge snapshots in one format.
type Exporter interface {
	// ExportConversation converts a saved conversation to the target format.
	ExportConversation(conv *storage.Conversation) ([]byte, error)

	// ExportKnowledge converts a knowledge snapshot to the target format.
	ExportKnowledge(entries []knowledge.Entry) ([]byte, error)

	// FileExtension returns the file extension (e.g., ".md", ".yaml").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Supported format names.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "md"
)

// Formats lists the names accepted by New.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatMarkdown}
}

// New returns the exporter for format.
func New(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatYAML, "yml":
		return NewYAMLExporter(opts), nil
	case FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata adds a header with dates and counts (Markdown only).
	IncludeMetadata bool

	// Now stamps exports. Default: time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ConversationToFile exports conv into opts.OutputDir and returns the path.
func ConversationToFile(conv *storage.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if conv == nil {
		return "", fmt.Errorf("conversation is nil")
	}

	content, err := exporter.ExportConversation(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(conv.Title),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	return writeExport(opts.OutputDir, filename, content)
}

// KnowledgeToFile exports entries into opts.OutputDir and returns the path.
func KnowledgeToFile(entries []knowledge.Entry, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.ExportKnowledge(entries)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("knowledge_%s%s", opts.now().Format("20060102_150405"), exporter.FileExtension())
	return writeExport(opts.OutputDir, filename, content)
}

func writeExport(dir, filename string, content []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > storage.MaxTitleRunes {
		runes = runes[:storage.MaxTitleRunes]
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'¿':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// formatTimestamp formats a Unix-millisecond timestamp for display.
func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
