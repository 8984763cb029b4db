// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"InputBorder", theme.InputBorder},
		{"StatusBar", theme.StatusBar},
		{"TableHeader", theme.TableHeader},
	}
	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

func TestStatusHelpers_IncludeMarkers(t *testing.T) {
	theme := NewTheme()

	tests := []struct {
		name   string
		got    string
		marker string
	}{
		{"success", theme.Success("listo"), StatusIndicators.Success},
		{"error", theme.Error("falló"), StatusIndicators.Error},
		{"warning", theme.Warning("cuidado"), StatusIndicators.Warning},
		{"info", theme.Info("nota"), StatusIndicators.Info},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !strings.Contains(tc.got, tc.marker) {
				t.Errorf("%q missing marker %q", tc.got, tc.marker)
			}
		})
	}
}

func TestShortcut(t *testing.T) {
	got := NewTheme().Shortcut("Esc", "cancelar")
	if !strings.Contains(got, "Esc") || !strings.Contains(got, "cancelar") {
		t.Errorf("Shortcut() = %q", got)
	}
}

func TestAdaptiveColorsDiffer(t *testing.T) {
	for name, c := range map[string]lipgloss.AdaptiveColor{
		"Teal": Teal, "Blue": Blue, "Rose": Rose, "TextPrimary": TextPrimary,
	} {
		if c.Light == c.Dark {
			t.Errorf("%s has identical light and dark variants", name)
		}
	}
}
