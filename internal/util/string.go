// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateRunes cuts s to at most maxRunes characters without splitting a
// multi-byte sequence. Conversation titles rely on this exact behaviour: no
// ellipsis is added, so a 50-rune limit yields exactly the first 50 runes.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}
	return s
}

// TruncateWidth shortens s to fit maxWidth terminal columns, appending "..."
// when anything was removed. Wide characters count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadWidth right-pads s with spaces to exactly width columns, truncating
// first if it is too wide. Used for aligned CLI tables.
func PadWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// SingleLine collapses line breaks so previews render on one row.
func SingleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}
