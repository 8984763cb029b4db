// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/chat"
	"github.com/disam-ia/disamia/internal/config"
	"github.com/disam-ia/disamia/internal/extract"
	"github.com/disam-ia/disamia/internal/prompt"
	"github.com/disam-ia/disamia/internal/util"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-oriented chat session",
		Long: `Chat reads questions line by line and streams each reply. Conversations are
saved to history. Type /help for the session commands.

Ctrl+C cancels the reply in progress; Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				a.watchKnowledge(ctx)

				model, err := a.selectModel(ctx)
				if err != nil {
					return describe(err)
				}

				in := newLineReader(cmd)
				defer in.Close()

				r := &repl{
					app:     a,
					session: a.newSession(),
					model:   model,
					in:      in,
					out:     cmd.OutOrStdout(),
					errOut:  cmd.ErrOrStderr(),
				}
				return r.run(ctx)
			})
		},
	}
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader is the source of chat input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// newLineReader uses liner on a terminal and plain line reads otherwise, so
// the chat can be scripted through a pipe.
func newLineReader(cmd *cobra.Command) lineReader {
	in := cmd.InOrStdin()
	if in == os.Stdin && IsTTY() {
		return NewChatCLI()
	}
	return &plainReader{scanner: bufio.NewScanner(in)}
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads one line, adding it to the history when non-blank.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

type plainReader struct {
	scanner *bufio.Scanner
}

func (p *plainReader) ReadInput(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *plainReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	app     *app
	session *chat.Session
	model   string
	in      lineReader
	out     io.Writer
	errOut  io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *repl) run(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			if r.cancelReply() {
				fmt.Fprintln(r.errOut, "\n"+WarningStyle.Render("[Cancelado]"))
			}
		}
	}()

	fmt.Fprintln(r.errOut, TitleStyle.Render("DISAM IA")+" "+DimStyle.Render("modelo: "+r.model+"  (/help para comandos)"))

	for {
		input, err := r.in.ReadInput(PromptStyle.Render("disam> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.errOut)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if !r.handleCommand(ctx, input) {
				return nil
			}
			continue
		}
		r.send(ctx, input)
	}
}

// send streams one reply. Errors are reported and the loop continues.
func (r *repl) send(ctx context.Context, content string) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer r.cancelReply()

	printed := 0
	_, err := r.session.Send(ctx, content, r.model, func(partial string) {
		io.WriteString(r.out, partial[printed:])
		printed = len(partial)
	})
	if printed > 0 {
		fmt.Fprintln(r.out)
	}
	if err != nil {
		r.fail(err)
		return
	}
	if r.app.opts.verbose {
		fmt.Fprintln(r.errOut, DimStyle.Render(r.session.LastStats().Format()))
	}
}

// cancelReply cancels the reply in flight and reports whether there was one.
func (r *repl) cancelReply() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

// handleCommand runs a slash command and reports whether to keep going.
func (r *repl) handleCommand(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return false

	case "/help", "/h":
		r.printHelp()

	case "/new":
		if _, err := r.session.NewConversation(); err != nil {
			r.fail(err)
			break
		}
		r.info("Nueva conversación.")

	case "/history":
		convs := r.app.conversations.List()
		if len(convs) == 0 {
			r.info("No hay conversaciones guardadas.")
			break
		}
		rows := make([][]string, 0, len(convs))
		for _, c := range convs {
			rows = append(rows, []string{shortConversationID(c.ID), c.Updated().Format("2006-01-02 15:04"), util.TruncateWidth(c.Title, 50)})
		}
		table(r.out, []string{"ID", "ACTUALIZADA", "TÍTULO"}, rows)

	case "/open":
		if arg == "" {
			r.warn("Uso: /open <id>")
			break
		}
		id, err := resolveConversation(r.app.conversations, arg)
		if err != nil {
			r.fail(err)
			break
		}
		conv, err := r.session.OpenConversation(id)
		if err != nil {
			r.fail(err)
			break
		}
		r.info(fmt.Sprintf("Conversación abierta: %s (%d mensajes)", conv.Title, len(conv.Messages)))
		for _, m := range conv.Messages {
			fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render(m.Role), util.TruncateWidth(util.SingleLine(m.Content), 70))
		}

	case "/refresh":
		r.session.RefreshKnowledge()
		r.info("Base de conocimientos recargada.")

	case "/knowledge":
		fmt.Fprintln(r.out, r.app.knowledge.RenderContext())

	case "/models":
		models, err := r.app.client.ListModels(ctx)
		if err != nil {
			r.fail(err)
			break
		}
		rows := make([][]string, 0, len(models))
		for _, m := range models {
			marker := " "
			if m.Name == r.model {
				marker = "*"
			}
			rows = append(rows, []string{marker, m.Name, m.FormatSize()})
		}
		table(r.out, []string{" ", "MODELO", "TAMAÑO"}, rows)

	case "/model":
		if arg == "" {
			r.info("Modelo actual: " + r.model)
			break
		}
		r.model = arg
		r.info("Modelo: " + arg)

	case "/attach":
		if arg == "" {
			r.warn("Uso: /attach <ruta> (" + strings.Join(extract.SupportedExtensions(), ", ") + ")")
			break
		}
		text, err := extract.File(arg)
		if err != nil {
			r.fail(err)
			break
		}
		r.send(ctx, prompt.DocumentPrompt(filepath.Base(arg), text))

	default:
		r.warn("Comando desconocido: " + name + " (usa /help)")
	}
	return true
}

func (r *repl) printHelp() {
	rows := [][]string{
		{"/new", "Nueva conversación"},
		{"/history", "Listar conversaciones guardadas"},
		{"/open <id>", "Abrir una conversación guardada"},
		{"/refresh", "Recargar la base de conocimientos"},
		{"/knowledge", "Mostrar el contexto de conocimientos"},
		{"/models", "Listar modelos instalados"},
		{"/model <nombre>", "Cambiar de modelo"},
		{"/attach <ruta>", "Resumir un documento .txt, .pdf o .docx"},
		{"/quit", "Salir"},
	}
	table(r.out, []string{"COMANDO", "DESCRIPCIÓN"}, rows)
}

func (r *repl) info(msg string) {
	fmt.Fprintln(r.errOut, SuccessStyle.Render("[OK]")+" "+msg)
}

func (r *repl) warn(msg string) {
	fmt.Fprintln(r.errOut, WarningStyle.Render("[!]")+" "+msg)
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.errOut, ErrorStyle.Render(chat.Describe(err)))
}
