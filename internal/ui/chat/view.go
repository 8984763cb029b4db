// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/util"
)

const (
	headerHeight = 2 // title row + bottom border
	statusHeight = 1
	userLabel    = "Tú"
	botLabel     = "DISAM IA"
	welcomeText  = "Pregunta sobre CESFAM, farmacia, urgencias y otros servicios de DISAM.\nEscribe /help para ver los comandos."
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer renders finished assistant replies with glamour and
// caches the output per message, since the transcript is redrawn on every
// frame while a reply streams.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{style: style, cache: make(map[string]string)}
}

func (r *markdownRenderer) setWidth(width int) {
	if width == r.width && r.renderer != nil {
		return
	}
	r.width = width
	r.cache = make(map[string]string)

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if r.style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(r.style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r.renderer = nil
		return
	}
	r.renderer = tr
}

// render returns content as terminal markdown, or content itself when no
// renderer is available.
func (r *markdownRenderer) render(content string) string {
	if r.renderer == nil {
		return content
	}
	if out, ok := r.cache[content]; ok {
		return out
	}
	out, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	r.cache[content] = out
	return out
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport and input to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.input.SetWidth(max(m.width-4, 10))
	m.help.Width = m.width

	inputHeight := m.input.Height() + 2 // rounded border
	footer := statusHeight + 1          // status bar + notice line
	if m.help.ShowAll {
		footer += lipgloss.Height(m.help.View(m.keys))
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-headerHeight-inputHeight-footer, 3)
	m.markdown.setWidth(max(m.width-4, 20))
}

// refreshViewport redraws the transcript. toBottom keeps the newest line in
// view.
func (m *Model) refreshViewport(toBottom bool) {
	m.viewport.SetContent(m.transcript())
	if toBottom {
		m.viewport.GotoBottom()
	}
}

// transcript renders every non-system message plus the command panel.
func (m *Model) transcript() string {
	width := max(m.width-4, 20)
	var blocks []string

	msgs := m.session.Messages()
	visible := 0
	for i, msg := range msgs {
		switch msg.Role {
		case ollama.RoleUser:
			blocks = append(blocks,
				m.theme.UserLabel.Render(userLabel)+"\n"+
					m.theme.UserText.Width(width).Render(msg.Content))
			visible++
		case ollama.RoleAssistant:
			inFlight := m.streaming && i == len(msgs)-1
			blocks = append(blocks, m.theme.AssistantLabel.Render(botLabel)+"\n"+m.renderAssistant(msg.Content, inFlight, width))
			visible++
		}
	}

	if visible == 0 {
		blocks = append(blocks, m.theme.Notice.Render(welcomeText))
	}
	if m.panel != "" {
		blocks = append(blocks, m.panel)
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderAssistant(content string, inFlight bool, width int) string {
	if inFlight {
		// Raw text while streaming; half-written markdown renders badly.
		cursor := m.theme.StatusBusy.Render("▌")
		if content == "" {
			return m.spinner.View() + " " + m.theme.Notice.Render("Pensando...")
		}
		return m.theme.AssistantText.Width(width).Render(content) + cursor
	}
	return m.markdown.render(content)
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Cargando..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	b.WriteString("\n")
	b.WriteString(m.theme.InputBorder.Width(max(m.width-2, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	if m.help.ShowAll {
		b.WriteString("\n")
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("DISAM IA")
	meta := "modelo: " + orDash(m.model)
	if id := m.session.ConversationID(); id != "" {
		meta += "  conversación: " + shortID(id)
	}
	line := title + "  " + m.theme.HeaderMeta.Render(meta)
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(line)
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	text := util.TruncateWidth(util.SingleLine(m.notice), max(m.width-6, 10))
	if m.noticeIsErr {
		return m.theme.Error(text)
	}
	return m.theme.Info(text)
}

func (m Model) renderStatus() string {
	var state string
	switch {
	case m.streaming:
		state = m.spinner.View() + " " + m.theme.StatusBusy.Render("respondiendo")
	case !m.probed:
		state = m.theme.Muted.Render("conectando...")
	case m.online:
		state = m.theme.StatusOnline.Render("● Ollama")
	default:
		state = m.theme.StatusOffline.Render("○ Ollama")
	}

	parts := []string{state}
	if m.lastStats != nil && m.lastStats.CompletionTokens > 0 {
		parts = append(parts, m.theme.Muted.Render(m.lastStats.Format()))
	}
	if !m.help.ShowAll {
		parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	line := strings.Join(parts, "  ")
	return m.theme.StatusBar.Width(m.width).Render(line)
}

// Summary returns a plain description of the view state, used in logs when
// the program exits.
func (m Model) Summary() string {
	return fmt.Sprintf("model=%s conversation=%s messages=%d", orDash(m.model), orDash(m.session.ConversationID()), len(m.session.MessagesForSave()))
}
