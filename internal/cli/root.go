// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	model      string
	verbose    bool
	json       bool
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the command tree. Each call returns a fresh tree so
// tests can run commands in isolation.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "disamia",
		Short: "Asistente DISAM IA sobre Ollama",
		Long: `disamia is a chat assistant for the Dirección de Salud Municipal de Arica.

It answers questions with a local Ollama model, grounding every reply on an
editable knowledge base of DISAM services that is injected into the system
prompt. Run it without arguments for the full-screen chat.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default ~/.disamia/config.toml)")
	pf.StringVarP(&opts.model, "model", "m", "", "Ollama model to chat with")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&opts.json, "json", false, "Output JSON")

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newModelsCommand(opts),
		newKnowledgeCommand(opts),
		newConversationsCommand(opts),
		newServeCommand(opts),
		newMCPCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(opts),
	)
	return root, opts
}

// Execute runs the command line and exits non-zero on failure. With --json
// the failure is reported as a JSONResponse on stdout.
func Execute() {
	root, opts := newRootCommand()
	cmd, err := root.ExecuteC()
	if err == nil {
		return
	}
	if opts.json {
		_ = NewJSONErrorResponse(cmd.CommandPath(), err).Print(os.Stdout)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
