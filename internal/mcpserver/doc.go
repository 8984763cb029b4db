// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcpserver exposes the knowledge store and the composed system
// prompt as Model Context Protocol tools, so agents can read and curate the
// DISAM knowledge base over stdio.
//
// Tools:
//
//	list_knowledge     all entries, or one category
//	list_categories    distinct categories in first-seen order
//	add_knowledge      create an entry
//	update_knowledge   patch title, content or category
//	delete_knowledge   remove an entry
//	reset_knowledge    restore the default entries
//	render_context     the knowledge block embedded in the prompt
//	system_prompt      the full system prompt sent to the model
package mcpserver
