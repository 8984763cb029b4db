// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/ui/chat"
	"github.com/disam-ia/disamia/internal/ui/styles"
)

// runTUI opens the full-screen chat. Logs are discarded while the alternate
// screen is active unless --verbose is given, in which case they still go to
// stderr.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	if err := RequiresTTY("open the chat"); err != nil {
		return err
	}
	if !IsStdoutTTY() {
		return &TTYRequiredError{Operation: "open the chat"}
	}

	if !opts.verbose {
		cmd.SetErr(io.Discard)
	}
	return withApp(cmd, opts, func(a *app) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		a.watchKnowledge(ctx)

		// An explicit model skips the first-installed fallback; otherwise the
		// view picks one after its first Ollama probe.
		model := opts.model
		if model == "" {
			model = a.cfg.Ollama.Model
		}

		view := chat.New(chat.Options{
			Session:       a.newSession(),
			Client:        a.client,
			Conversations: a.conversations,
			Theme:         styles.NewTheme(),
			Model:         model,
			Logger:        a.logger,
		})

		p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithContext(ctx))
		a.knowledge.OnChange(func() {
			p.Send(chat.KnowledgeChangedMsg{})
		})

		final, err := p.Run()
		if err != nil {
			return err
		}
		if m, ok := final.(chat.Model); ok {
			a.logger.Debug("chat closed", "state", m.Summary())
		}
		return nil
	})
}
