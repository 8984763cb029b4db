// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/chat"
	"github.com/disam-ia/disamia/internal/extract"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/prompt"
)

// askResult is the --json payload of `disamia ask`.
type askResult struct {
	Model          string   `json:"model"`
	Question       string   `json:"question"`
	Reply          string   `json:"reply"`
	ConversationID string   `json:"conversationId,omitempty"`
	Stats          askStats `json:"stats"`
}

type askStats struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TokensPerSecond  float64 `json:"tokensPerSecond"`
	TTFTMillis       int64   `json:"ttftMs"`
	TotalMillis      int64   `json:"totalMs"`
}

func newAskStats(st ollama.StreamStats) askStats {
	total := st.TotalDuration
	if total == 0 && !st.EndTime.IsZero() {
		total = st.EndTime.Sub(st.StartTime)
	}
	return askStats{
		PromptTokens:     st.PromptTokens,
		CompletionTokens: st.CompletionTokens,
		TokensPerSecond:  st.TokensPerSecond(),
		TTFTMillis:       st.TTFT.Milliseconds(),
		TotalMillis:      total.Milliseconds(),
	}
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		file   string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and stream the reply",
		Long: `Ask sends one question with the knowledge base as context and streams the
reply to stdout. With no arguments the question is read from stdin. With
--file the document is summarized instead.`,
		Example: `  disamia ask "¿Cuál es el horario de la farmacia municipal?"
  echo "¿Dónde está el CESFAM Iris Véliz?" | disamia ask
  disamia ask --file informe.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := askQuestion(cmd, args, file)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, opts, func(a *app) error {
				if noSave {
					a.conversations = nil
				}
				return runAsk(ctx, cmd, a, question)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Summarize a .txt, .pdf or .docx document")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the exchange to history")
	return cmd
}

// askQuestion resolves the question from --file, the arguments or stdin.
func askQuestion(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		text, err := extract.File(file)
		if err != nil {
			return "", err
		}
		return prompt.DocumentPrompt(filepath.Base(file), text), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	in := cmd.InOrStdin()
	if in == os.Stdin && IsTTY() {
		return "", fmt.Errorf("no question given")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func runAsk(ctx context.Context, cmd *cobra.Command, a *app, question string) error {
	if strings.TrimSpace(question) == "" {
		return chat.ErrEmptyMessage
	}
	model, err := a.selectModel(ctx)
	if err != nil {
		return describe(err)
	}

	session := a.newSession()

	out := cmd.OutOrStdout()
	var onUpdate func(string)
	if !a.opts.json {
		// Session reports the accumulated reply; print only what is new.
		printed := 0
		onUpdate = func(partial string) {
			io.WriteString(out, partial[printed:])
			printed = len(partial)
		}
	}

	reply, err := session.Send(ctx, question, model, onUpdate)
	if err != nil {
		if !a.opts.json && reply != "" {
			fmt.Fprintln(out)
		}
		return describe(err)
	}

	if a.opts.json {
		return NewJSONResponse(cmd.CommandPath(), askResult{
			Model:          model,
			Question:       question,
			Reply:          reply,
			ConversationID: session.ConversationID(),
			Stats:          newAskStats(session.LastStats()),
		}).Print(out)
	}

	fmt.Fprintln(out)
	if a.opts.verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render(session.LastStats().Format()))
	}
	return nil
}

// describedError carries the user-facing text of a chat error while keeping
// the original for errors.Is.
type describedError struct {
	msg string
	err error
}

func (e *describedError) Error() string { return e.msg }
func (e *describedError) Unwrap() error { return e.err }

func describe(err error) error {
	return &describedError{msg: chat.Describe(err), err: err}
}
