// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// BRAND COLORS
// =============================================================================

// Teal - Brand color, header and assistant label
var Teal = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}

// TealDeep - Darker teal for backgrounds
var TealDeep = lipgloss.AdaptiveColor{Light: "#115E59", Dark: "#134E4A"}

// Blue - User messages and prompts
var Blue = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Emerald - Ollama reachable, successful operations
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings and the streaming indicator
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACE AND TEXT
// =============================================================================

var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet contains ASCII markers shown next to colored status
// text, so state is readable without color.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Active  string
}

// StatusIndicators is the marker set used by the CLI and TUI.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Active:  "[*]",
}
