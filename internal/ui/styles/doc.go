// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and lipgloss styles shared by the
disamia TUI and CLI output.

All colors are lipgloss.AdaptiveColor values, so light and dark terminals
each get a readable variant without configuration.

# Theme

	theme := styles.NewTheme()
	fmt.Println(theme.Success("Entrada guardada"))

NewTheme probes the terminal through termenv once. Status helpers pair every
color with an ASCII marker from StatusIndicators ([OK], [X], [!], [i]) so the
state stays readable when color is unavailable or the user is colorblind.
*/
package styles
