// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/util"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("37")) // Teal

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	// ValueStyle is used for regular values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// SuccessStyle is used for success messages and OK statuses.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	// ErrorStyle is used for errors and failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// WarningStyle is used for warnings.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for secondary information.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// CategoryStyle highlights knowledge categories.
	CategoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	// PromptStyle is the chat input prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("37")).
			Bold(true)
)

// RenderStatus returns "[OK]" or "[FAIL]" styled accordingly.
func RenderStatus(ok bool) string {
	if ok {
		return SuccessStyle.Render("[OK]")
	}
	return ErrorStyle.Render("[FAIL]")
}

// RenderSeparator returns a horizontal rule of the given width.
func RenderSeparator(width int) string {
	return DimStyle.Render(strings.Repeat("-", width))
}

// field prints one "label value" line.
func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
}

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every command prints with --json.
type JSONResponse struct {
	// Success indicates whether the command completed successfully.
	Success bool `json:"success"`

	// Data contains the command-specific payload.
	Data interface{} `json:"data"`

	// Error is the failure message, null on success.
	Error *string `json:"error"`

	// Timestamp is when the response was produced (RFC 3339, UTC).
	Timestamp string `json:"timestamp"`

	// Command is the full command path, e.g. "disamia knowledge list".
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// writeResult prints data as a JSONResponse in --json mode and calls human
// otherwise.
func writeResult(cmd *cobra.Command, opts *rootOptions, data interface{}, human func(w io.Writer)) error {
	if opts.json {
		return NewJSONResponse(cmd.CommandPath(), data).Print(cmd.OutOrStdout())
	}
	human(cmd.OutOrStdout())
	return nil
}

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders text with glamour when stdout is a colored
// terminal and returns it unchanged otherwise.
func renderMarkdown(text string) string {
	if !IsStdoutTTY() || !ColorsEnabled() {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-4),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// TABLES
// =============================================================================

// table prints rows as left-aligned columns sized by display width. The
// last column is never padded.
func table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i < len(cells)-1 {
				cell = util.PadWidth(cell, widths[i])
			}
			parts[i] = style.Render(cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(header, TitleStyle)
	for _, row := range rows {
		line(row, ValueStyle)
	}
}
