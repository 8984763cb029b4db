// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the disamia command line.
//
// Running disamia with no arguments opens the full-screen chat. The other
// commands cover the same operations without a terminal UI:
//
//	disamia chat                      line-oriented chat with history
//	disamia ask "¿horario farmacia?"  one question, streamed to stdout
//	disamia models                    installed Ollama models
//	disamia knowledge list|add|...    manage the knowledge base
//	disamia conversations list|...    manage saved conversations
//	disamia serve                     HTTP and websocket API
//	disamia mcp                       MCP server over stdio
//	disamia config show|init|...      configuration
//
// Global flags:
//
//	--config PATH    config file (default ~/.disamia/config.toml)
//	-m, --model NAME model for chat commands
//	-v, --verbose    debug logging on stderr
//	--json           machine-readable output
//
// Command output goes to stdout; logs and prompts go to stderr so output can
// be piped. Colors follow NO_COLOR and FORCE_COLOR.
package cli
