// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import "strings"

// DefaultContextHeader opens the rendered knowledge block.
const DefaultContextHeader = "## BASE DE CONOCIMIENTOS DISAM"

// RenderContext renders the store as the markdown block embedded in the
// system prompt:
//
//	<header>\n\n
//	### <category>\n          (per category, first-seen order)
//	\n**<title>**\n<content>\n (per entry, store order)
//	\n                         (closes each category)
//
// The layout is relied on byte for byte by saved prompts and tests.
func (s *Store) RenderContext() string {
	return Render(s.header, s.List())
}

// Render formats entries under header. It is exported for previews of
// entries that are not stored yet, such as an import dry run.
func Render(header string, entries []Entry) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, category := range categoriesOf(entries) {
		b.WriteString("### ")
		b.WriteString(category)
		b.WriteString("\n")

		for _, e := range entries {
			if e.Category != category {
				continue
			}
			b.WriteString("\n**")
			b.WriteString(e.Title)
			b.WriteString("**\n")
			b.WriteString(e.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
