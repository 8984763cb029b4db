// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/disam-ia/disamia/internal/knowledge"
)

// Name is the implementation name announced to MCP clients.
const Name = "disamia"

// New creates an MCP server with all knowledge tools registered. prompt may
// be nil, in which case system_prompt reports an error.
func New(store *knowledge.Store, prompt PromptSource, version string) *mcp.Server {
	kt := &KnowledgeTools{Store: store, Prompt: prompt}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: version,
	}, nil)

	// Read tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_knowledge",
		Description: "List knowledge base entries, optionally filtered by category",
	}, kt.ListKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the distinct knowledge categories in first-seen order",
	}, kt.ListCategories)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "render_context",
		Description: "Render the knowledge block exactly as it is embedded in the system prompt",
	}, kt.RenderContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "system_prompt",
		Description: "Return the full system prompt sent to the model",
	}, kt.SystemPrompt)

	// Write tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add_knowledge",
		Description: "Add a knowledge entry (title, content and category are required)",
	}, kt.AddKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_knowledge",
		Description: "Update the title, content or category of an existing entry",
	}, kt.UpdateKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_knowledge",
		Description: "Delete a knowledge entry by id",
	}, kt.DeleteKnowledge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reset_knowledge",
		Description: "Discard all edits and restore the default knowledge entries (irreversible)",
	}, kt.ResetKnowledge)

	return srv
}

// Run serves srv over stdin/stdout until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, srv *mcp.Server, logger *log.Logger) error {
	logger.Info("mcp server listening on stdio")
	err := srv.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
