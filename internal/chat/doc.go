// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the conversation state machine shared by the REPL, the
// TUI and the websocket endpoint.
//
// A Session always starts with exactly one system message built from the
// knowledge store. Send appends the user turn, streams the assistant reply
// into a trailing message and, when a ConversationStore is wired in, saves
// the result.
package chat
