// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/disam-ia/disamia/internal/extract"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/prompt"
	"github.com/disam-ia/disamia/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is one slash command of the chat view.
type Command struct {
	Name        string
	Args        string
	Description string
	run         func(m Model, arg string) (Model, tea.Cmd)
}

var commands map[string]Command

func init() {
	commands = map[string]Command{
		"/new":     {Name: "/new", Description: "Nueva conversación", run: cmdNew},
		"/open":    {Name: "/open", Args: "<id>", Description: "Abrir una conversación guardada", run: cmdOpen},
		"/history": {Name: "/history", Description: "Listar conversaciones guardadas", run: cmdHistory},
		"/refresh": {Name: "/refresh", Description: "Recargar la base de conocimientos", run: cmdRefresh},
		"/model":   {Name: "/model", Args: "<nombre>", Description: "Cambiar de modelo", run: cmdModel},
		"/models":  {Name: "/models", Description: "Listar modelos instalados", run: cmdModels},
		"/attach":  {Name: "/attach", Args: "<ruta>", Description: "Resumir un documento .txt, .pdf o .docx", run: cmdAttach},
		"/help":    {Name: "/help", Description: "Mostrar comandos", run: cmdHelp},
		"/quit":    {Name: "/quit", Description: "Salir", run: cmdQuit},
	}
}

// Commands returns the slash commands sorted by name.
func Commands() []Command {
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}

// runCommand dispatches a slash command line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		m.setNotice(fmt.Sprintf("Comando desconocido: %s (usa /help)", name), true)
		return m, nil
	}
	if m.streaming && cmd.Name != "/help" && cmd.Name != "/quit" {
		m.setNotice("Espera a que termine la respuesta actual.", true)
		return m, nil
	}
	next, teaCmd := cmd.run(m, arg)
	return next, teaCmd
}

func cmdNew(m Model, _ string) (Model, tea.Cmd) {
	m.panel = ""
	if m.conversations == nil {
		m.session.Reset(nil)
	} else if _, err := m.session.NewConversation(); err != nil {
		m.setNotice("No se pudo crear la conversación: "+err.Error(), true)
		return m, nil
	}
	m.lastStats = nil
	m.setNotice("Nueva conversación.", false)
	m.refreshViewport(true)
	return m, nil
}

func cmdOpen(m Model, arg string) (Model, tea.Cmd) {
	if m.conversations == nil {
		m.setNotice(errHistoryDisabled.Error(), true)
		return m, nil
	}
	if arg == "" {
		m.setNotice("Uso: /open <id>", true)
		return m, nil
	}
	conv, err := m.session.OpenConversation(resolveConversationID(m, arg))
	if err != nil {
		m.setNotice("Conversación no encontrada: "+arg, true)
		return m, nil
	}
	m.panel = ""
	m.lastStats = nil
	m.setNotice("Conversación abierta: "+conv.Title, false)
	m.refreshViewport(true)
	return m, nil
}

// resolveConversationID accepts a unique id prefix.
func resolveConversationID(m Model, arg string) string {
	var match string
	for _, c := range m.conversations.List() {
		if c.ID == arg {
			return arg
		}
		if strings.HasPrefix(c.ID, arg) || strings.HasPrefix(c.ID, conversationPrefix+arg) {
			if match != "" {
				return arg
			}
			match = c.ID
		}
	}
	if match == "" {
		return arg
	}
	return match
}

func cmdHistory(m Model, _ string) (Model, tea.Cmd) {
	if m.conversations == nil {
		m.setNotice(errHistoryDisabled.Error(), true)
		return m, nil
	}
	convs := m.conversations.List()
	if len(convs) == 0 {
		m.panel = "No hay conversaciones guardadas."
	} else {
		var b strings.Builder
		b.WriteString(m.theme.TableHeader.Render("Conversaciones") + "\n")
		current := m.session.ConversationID()
		for _, c := range convs {
			marker := "  "
			if c.ID == current {
				marker = m.theme.SuccessStyle.Render("* ")
			}
			fmt.Fprintf(&b, "%s%s  %s  %s\n",
				marker,
				m.theme.ListID.Render(shortID(c.ID)),
				m.theme.ListTitle.Render(util.TruncateWidth(c.Title, 40)),
				m.theme.ListMeta.Render(c.Updated().Format("2006-01-02 15:04")))
		}
		b.WriteString(m.theme.Muted.Render("Usa /open <id> para continuar una conversación."))
		m.panel = b.String()
	}
	m.refreshViewport(true)
	return m, nil
}

func cmdRefresh(m Model, _ string) (Model, tea.Cmd) {
	m.session.RefreshKnowledge()
	m.setNotice("Base de conocimientos recargada.", false)
	return m, nil
}

func cmdModel(m Model, arg string) (Model, tea.Cmd) {
	if arg == "" {
		m.setNotice("Modelo actual: "+orDash(m.model)+" (uso: /model <nombre>)", false)
		return m, nil
	}
	if len(m.models) > 0 && !hasModel(m.models, arg) {
		m.setNotice("Modelo no instalado: "+arg+" (usa /models)", true)
		return m, nil
	}
	m.model = arg
	m.setNotice("Modelo: "+arg, false)
	return m, nil
}

func cmdModels(m Model, _ string) (Model, tea.Cmd) {
	if len(m.models) == 0 {
		m.panel = "No hay modelos instalados o Ollama no responde."
		m.refreshViewport(true)
		return m, listModelsCmd(m.client)
	}
	var b strings.Builder
	b.WriteString(m.theme.TableHeader.Render("Modelos") + "\n")
	for _, info := range m.models {
		marker := "  "
		if info.Name == m.model {
			marker = m.theme.SuccessStyle.Render("* ")
		}
		fmt.Fprintf(&b, "%s%s  %s\n", marker, util.PadWidth(info.Name, 32), m.theme.ListMeta.Render(info.FormatSize()))
	}
	m.panel = strings.TrimRight(b.String(), "\n")
	m.refreshViewport(true)
	return m, nil
}

func cmdAttach(m Model, arg string) (Model, tea.Cmd) {
	if arg == "" {
		m.setNotice("Uso: /attach <ruta> ("+strings.Join(extract.SupportedExtensions(), ", ")+")", true)
		return m, nil
	}
	path := arg
	name := filepath.Base(path)
	m.setNotice("Procesando: "+name+"...", false)
	return m, func() tea.Msg {
		text, err := extract.File(path)
		return DocumentLoadedMsg{Name: name, Text: text, Err: err}
	}
}

func cmdHelp(m Model, _ string) (Model, tea.Cmd) {
	var b strings.Builder
	b.WriteString(m.theme.TableHeader.Render("Comandos") + "\n")
	for _, c := range Commands() {
		usage := c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		fmt.Fprintf(&b, "  %s  %s\n", m.theme.ShortcutKey.Render(util.PadWidth(usage, 18)), c.Description)
	}
	m.panel = strings.TrimRight(b.String(), "\n")
	m.refreshViewport(true)
	return m, nil
}

func cmdQuit(m Model, _ string) (Model, tea.Cmd) {
	m.cancelMgr.cancel()
	m.quitting = true
	return m, tea.Quit
}

const conversationPrefix = "conv_"

// shortID is the id shown in lists; /open accepts it back.
func shortID(id string) string {
	return util.TruncateRunes(strings.TrimPrefix(id, conversationPrefix), 8)
}

func documentPrompt(name, text string) string {
	return prompt.DocumentPrompt(name, text)
}

func hasModel(models []ollama.ModelInfo, name string) bool {
	for _, info := range models {
		if info.Name == name || strings.TrimSuffix(info.Name, ":latest") == name {
			return true
		}
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
