// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/disam-ia/disamia/internal/knowledge"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// ListKnowledgeInput filters list_knowledge.
type ListKnowledgeInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only return entries in this category"`
}

// AddKnowledgeInput is the input for add_knowledge.
type AddKnowledgeInput struct {
	Title    string `json:"title" jsonschema:"Short title of the entry"`
	Content  string `json:"content" jsonschema:"Body text injected into the system prompt"`
	Category string `json:"category" jsonschema:"Category used to group entries"`
}

// UpdateKnowledgeInput is the input for update_knowledge. Omitted fields are
// left unchanged.
type UpdateKnowledgeInput struct {
	ID       string  `json:"id" jsonschema:"Entry id"`
	Title    *string `json:"title,omitempty" jsonschema:"New title"`
	Content  *string `json:"content,omitempty" jsonschema:"New content"`
	Category *string `json:"category,omitempty" jsonschema:"New category"`
}

// DeleteKnowledgeInput is the input for delete_knowledge.
type DeleteKnowledgeInput struct {
	ID string `json:"id" jsonschema:"Entry id"`
}

// ResetKnowledgeInput is the input for reset_knowledge.
type ResetKnowledgeInput struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true; all edits are discarded"`
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}

// =============================================================================
// HANDLERS
// =============================================================================

// PromptSource returns the composed system prompt. *prompt.Composer
// implements it.
type PromptSource interface {
	SystemPrompt() string
}

// KnowledgeTools implements the tool handlers.
type KnowledgeTools struct {
	Store  *knowledge.Store
	Prompt PromptSource
}

func (t *KnowledgeTools) ListKnowledge(_ context.Context, _ *mcp.CallToolRequest, input ListKnowledgeInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Category) != "" {
		return toolJSON(t.Store.ByCategory(input.Category))
	}
	return toolJSON(t.Store.List())
}

func (t *KnowledgeTools) ListCategories(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Store.Categories())
}

func (t *KnowledgeTools) AddKnowledge(_ context.Context, _ *mcp.CallToolRequest, input AddKnowledgeInput) (*mcp.CallToolResult, any, error) {
	entry, err := t.Store.Add(input.Title, input.Content, input.Category)
	if err != nil {
		return toolError("Failed to add entry: %v", err), nil, nil
	}
	return toolJSON(entry)
}

func (t *KnowledgeTools) UpdateKnowledge(_ context.Context, _ *mcp.CallToolRequest, input UpdateKnowledgeInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("id is required"), nil, nil
	}
	if _, ok := t.Store.Get(input.ID); !ok {
		return toolError("Entry not found: %s", input.ID), nil, nil
	}

	patch := knowledge.Patch{Title: input.Title, Content: input.Content, Category: input.Category}
	if patch.Empty() {
		return toolError("Nothing to update: provide title, content or category"), nil, nil
	}
	if err := t.Store.Update(input.ID, patch); err != nil {
		return toolError("Failed to update entry: %v", err), nil, nil
	}

	entry, _ := t.Store.Get(input.ID)
	return toolJSON(entry)
}

func (t *KnowledgeTools) DeleteKnowledge(_ context.Context, _ *mcp.CallToolRequest, input DeleteKnowledgeInput) (*mcp.CallToolResult, any, error) {
	if _, ok := t.Store.Get(input.ID); !ok {
		return toolError("Entry not found: %s", input.ID), nil, nil
	}
	if err := t.Store.Delete(input.ID); err != nil {
		return toolError("Failed to delete entry: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"deleted": input.ID, "remaining": len(t.Store.List())})
}

func (t *KnowledgeTools) ResetKnowledge(_ context.Context, _ *mcp.CallToolRequest, input ResetKnowledgeInput) (*mcp.CallToolResult, any, error) {
	if !input.Confirm {
		return toolError("Reset requires confirm=true"), nil, nil
	}
	if err := t.Store.Reset(); err != nil {
		return toolError("Failed to reset knowledge: %v", err), nil, nil
	}
	return toolJSON(map[string]any{"entries": len(t.Store.List())})
}

func (t *KnowledgeTools) RenderContext(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	return toolText(t.Store.RenderContext()), nil, nil
}

func (t *KnowledgeTools) SystemPrompt(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
	if t.Prompt == nil {
		return toolError("system prompt not available"), nil, nil
	}
	return toolText(t.Prompt.SystemPrompt()), nil, nil
}

// =============================================================================
// RESULT HELPERS
// =============================================================================

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return toolText(string(data)), nil, nil
}

