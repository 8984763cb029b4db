// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components shared by the TUI and the CLI.
// It detects the terminal's color capability once at construction.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	Notice         lipgloss.Style

	// Input
	InputBorder lipgloss.Style
	InputPrompt lipgloss.Style

	// Status bar
	StatusBar     lipgloss.Style
	StatusOnline  lipgloss.Style
	StatusOffline lipgloss.Style
	StatusBusy    lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// Lists and tables
	TableHeader lipgloss.Style
	ListID      lipgloss.Style
	ListTitle   lipgloss.Style
	ListMeta    lipgloss.Style
	Category    lipgloss.Style

	// Accessibility: each state pairs a color with a StatusIndicators marker.
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Teal).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Blue)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Notice = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Blue).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOnline = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusOffline = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.TableHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		Underline(true)

	t.ListID = lipgloss.NewStyle().Foreground(TextMuted)
	t.ListTitle = lipgloss.NewStyle().Foreground(TextPrimary).Bold(true)
	t.ListMeta = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Category = lipgloss.NewStyle().Foreground(Teal)

	t.SuccessStyle = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.InfoStyle = lipgloss.NewStyle().Foreground(Blue)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// =============================================================================
// STATUS HELPERS
// =============================================================================

// Success renders msg with the success marker.
func (t *Theme) Success(msg string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success) + " " + msg
}

// Error renders msg with the error marker.
func (t *Theme) Error(msg string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error) + " " + msg
}

// Warning renders msg with the warning marker.
func (t *Theme) Warning(msg string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning) + " " + msg
}

// Info renders msg with the info marker.
func (t *Theme) Info(msg string) string {
	return t.InfoStyle.Render(StatusIndicators.Info) + " " + msg
}

// Shortcut renders a "key desc" hint for the status bar.
func (t *Theme) Shortcut(key, desc string) string {
	return t.ShortcutKey.Render(key) + " " + t.ShortcutDesc.Render(desc)
}
