// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view for disamia.

It is a Bubble Tea model wrapped around a chat.Session from the core chat
package. The session owns the messages; this package only renders them and
turns key presses into session calls.

# Layout

	header      model, conversation id
	viewport    transcript (assistant replies rendered with glamour)
	input       multi-line textarea
	status bar  Ollama state, last reply stats, shortcuts

# Streaming (streaming.go)

Send runs in a tea.Cmd goroutine and blocks until the reply completes. Each
fragment lands in a StreamingBuffer; a 30fps tick flushes it into the
viewport, so long replies do not re-render the transcript per token.
Esc cancels the request through the context handed to Send.

# Commands (commands.go)

	/new            start a new conversation
	/open <id>      reopen a saved conversation
	/history        list saved conversations
	/refresh        recompose the system prompt from the knowledge base
	/model <name>   switch model
	/models         list installed models
	/attach <path>  summarize a .txt, .pdf or .docx document
	/help           list commands
	/quit           exit

Knowledge edits made elsewhere reach an open view through
KnowledgeChangedMsg; the caller forwards it from Store.OnChange with
tea.Program.Send.
*/
package chat
