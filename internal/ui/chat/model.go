// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	core "github.com/disam-ia/disamia/internal/chat"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
	"github.com/disam-ia/disamia/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// ModelLister lists installed models. *ollama.Client implements it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Options wires a Model.
type Options struct {
	Session       *core.Session
	Client        ModelLister
	Conversations *storage.ConversationStore // nil hides /history and /open
	Theme         *styles.Theme

	// Model is the initial model; empty picks the first installed one.
	Model string

	// MarkdownStyle is a glamour standard style name ("dark", "light",
	// "notty"). Empty detects it from the terminal.
	MarkdownStyle string

	Logger *log.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat view.
type Model struct {
	session       *core.Session
	client        ModelLister
	conversations *storage.ConversationStore
	theme         *styles.Theme
	logger        *log.Logger

	model  string
	models []ollama.ModelInfo
	online bool
	probed bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap

	width  int
	height int
	ready  bool

	streaming bool
	buffer    *StreamingBuffer
	cancelMgr *cancelManager
	lastStats *ollama.StreamStats

	// notice is a one-line status message; panel is command output shown
	// under the transcript until the next send.
	notice      string
	noticeIsErr bool
	panel       string

	markdown *markdownRenderer
	quitting bool
}

// New creates the chat view.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Envía un mensaje"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.StatusBusy

	return Model{
		session:       opts.Session,
		client:        opts.Client,
		conversations: opts.Conversations,
		theme:         theme,
		logger:        logger,
		model:         opts.Model,
		viewport:      vp,
		input:         ta,
		spinner:       sp,
		help:          help.New(),
		keys:          DefaultKeyMap(),
		buffer:        NewStreamingBuffer(),
		cancelMgr:     newCancelManager(),
		markdown:      newMarkdownRenderer(opts.MarkdownStyle),
	}
}

// Init starts the cursor blink and the first Ollama probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, listModelsCmd(m.client))
}

// SelectedModel returns the model used for the next reply.
func (m Model) SelectedModel() string {
	return m.model
}

// Streaming reports whether a reply is in flight.
func (m Model) Streaming() bool {
	return m.streaming
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshViewport(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		if !m.streaming {
			return m, nil
		}
		if _, ok := m.buffer.Flush(); ok {
			m.refreshViewport(true)
		}
		return m, streamTickCmd()

	case ReplyDoneMsg:
		return m.handleReplyDone(msg)

	case OllamaStatusMsg:
		return m.handleOllamaStatus(msg)

	case KnowledgeChangedMsg:
		m.session.RefreshKnowledge()
		m.setNotice("Base de conocimientos actualizada.", false)
		return m, nil

	case DocumentLoadedMsg:
		return m.handleDocument(msg)

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelMgr.cancel()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.streaming && m.cancelMgr.cancel() {
			m.setNotice("Cancelando...", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m.runCommand("/new")

	case key.Matches(msg, m.keys.Refresh):
		return m.runCommand("/refresh")

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if isCommand(text) {
			m.input.Reset()
			return m.runCommand(text)
		}
		return m.submit(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a reply for content.
func (m Model) submit(content string) (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setNotice(core.Describe(core.ErrBusy), true)
		return m, nil
	}
	if isBlank(content) {
		return m, nil
	}
	if m.model == "" {
		m.setNotice(core.Describe(core.ErrNoModel), true)
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	m.buffer.Reset()
	m.streaming = true
	m.panel = ""
	m.setNotice("", false)
	m.input.Reset()
	m.refreshViewport(true)

	return m, tea.Batch(
		sendCmd(ctx, m.session, content, m.model, m.buffer),
		streamTickCmd(),
		m.spinner.Tick,
	)
}

func (m Model) handleReplyDone(msg ReplyDoneMsg) (tea.Model, tea.Cmd) {
	m.streaming = false
	m.cancelMgr.cancel()
	m.buffer.ForceFlush()

	stats := msg.Stats
	m.lastStats = &stats

	switch {
	case msg.Err == nil:
		m.setNotice("", false)
	case ollama.IsCanceled(msg.Err):
		m.setNotice(core.Describe(msg.Err), false)
	default:
		m.setNotice(core.Describe(msg.Err), true)
		if ollama.IsNotRunning(msg.Err) {
			m.online = false
		}
	}
	m.refreshViewport(true)
	return m, nil
}

func (m Model) handleOllamaStatus(msg OllamaStatusMsg) (tea.Model, tea.Cmd) {
	m.probed = true
	if msg.Err != nil {
		m.online = false
		m.setNotice(core.Describe(msg.Err), true)
		return m, nil
	}
	m.online = true
	m.models = msg.Models
	if m.model == "" && len(msg.Models) > 0 {
		m.model = msg.Models[0].Name
	}
	if m.model == "" {
		m.setNotice(core.Describe(core.ErrNoModel), true)
	}
	return m, nil
}

func (m Model) handleDocument(msg DocumentLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setNotice("No se pudo leer "+msg.Name+": "+msg.Err.Error(), true)
		return m, nil
	}
	return m.submit(documentPrompt(msg.Name, msg.Text))
}

// =============================================================================
// COMMANDS (tea.Cmd)
// =============================================================================

// sendCmd runs Session.Send to completion on the command goroutine.
func sendCmd(ctx context.Context, session *core.Session, content, model string, buf *StreamingBuffer) tea.Cmd {
	return func() tea.Msg {
		reply, err := session.Send(ctx, content, model, buf.Write)
		return ReplyDoneMsg{Reply: reply, Err: err, Stats: session.LastStats()}
	}
}

func listModelsCmd(client ModelLister) tea.Cmd {
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		models, err := client.ListModels(ctx)
		return OllamaStatusMsg{Models: models, Err: err}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

// errHistoryDisabled is shown when a history command runs without a store.
var errHistoryDisabled = errors.New("el historial de conversaciones está desactivado")
