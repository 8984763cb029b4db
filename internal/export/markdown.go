// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations and knowledge as readable Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// ExportConversation converts a conversation to Markdown.
func (e *MarkdownExporter) ExportConversation(conv *storage.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.Title)))
		sb.WriteString(fmt.Sprintf("date: %s\n", conv.Created().Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("updated: %s\n", conv.Updated().Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(conv.Messages)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", e.options.now().Format(time.RFC3339)))
		sb.WriteString("generator: disamia\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(conv.Title)))

	if e.options.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("- **Creada**: %s\n", formatTimestamp(conv.CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Actualizada**: %s\n", formatTimestamp(conv.UpdatedAt)))
		sb.WriteString(fmt.Sprintf("- **Mensajes**: %d\n", len(conv.Messages)))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range conv.Messages {
		sb.WriteString(fmt.Sprintf("### %s\n\n", formatRoleLabel(msg.Role)))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// ExportKnowledge writes entries grouped by category in first-seen order.
func (e *MarkdownExporter) ExportKnowledge(entries []knowledge.Entry) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("# Base de conocimientos\n\n")
	if e.options.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("*%d entradas, exportado el %s*\n\n",
			len(entries), e.options.now().Format("2006-01-02 15:04")))
	}

	categories := knowledge.NewOrderedSet[string]()
	for _, entry := range entries {
		categories.Add(entry.Category)
	}

	for _, category := range categories.Items() {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdown(category)))
		for _, entry := range entries {
			if entry.Category != category {
				continue
			}
			sb.WriteString(fmt.Sprintf("### %s\n\n", escapeMarkdown(entry.Title)))
			if e.options.IncludeMetadata {
				sb.WriteString(fmt.Sprintf("<sub>%s · actualizado %s</sub>\n\n", entry.ID, formatTimestamp(entry.UpdatedAt)))
			}
			sb.WriteString(strings.TrimSpace(entry.Content))
			sb.WriteString("\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatRoleLabel(role string) string {
	switch role {
	case "user":
		return "Usuario"
	case "assistant":
		return "Asistente"
	case "system":
		return "Sistema"
	case "":
		return "Desconocido"
	default:
		runes := []rune(role)
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it holds characters YAML
// would interpret.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
