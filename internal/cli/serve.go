// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/logging"
	"github.com/disam-ia/disamia/internal/mcpserver"
	"github.com/disam-ia/disamia/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		Long: `Serve exposes the knowledge base, saved conversations and streaming chat over
HTTP. Chat streams over a websocket at /api/chat. Knowledge mutations need
the admin token whose bcrypt hash is configured as server.admin_token_hash
(see 'disamia config hash-token'); without it they are disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, opts, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				a.watchKnowledge(ctx)

				if a.cfg.Server.AdminTokenHash == "" {
					a.logger.Warn("no admin token configured; knowledge mutations are disabled")
				}

				srv := server.New(server.Options{
					Addr:           addr,
					Client:         a.client,
					Knowledge:      a.knowledge,
					Conversations:  a.conversations,
					Composer:       a.composer,
					AdminTokenHash: a.cfg.Server.AdminTokenHash,
					RateLimit:      a.cfg.Server.RateLimit,
					RateBurst:      a.cfg.Server.RateBurst,
					AllowedOrigins: a.cfg.Server.AllowedOrigins,
					Logger:         logging.Component(a.logger, "http"),
					Version:        Version,
				})
				return srv.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the knowledge base to MCP clients over stdio",
		Long: `MCP runs a Model Context Protocol server on stdin/stdout exposing tools to
list, edit and render the knowledge base and to read the system prompt.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdout carries the protocol.
			cmd.SetOut(os.Stderr)
			return withApp(cmd, opts, func(a *app) error {
				a.watchKnowledge(ctx)
				srv := mcpserver.New(a.knowledge, a.composer, Version)
				return mcpserver.Run(ctx, srv, logging.Component(a.logger, "mcp"))
			})
		},
	}
}
