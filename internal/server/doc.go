// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes disamia over HTTP for browser front-ends.
//
// Endpoints:
//   - GET    /health                     - Ollama reachability and uptime
//   - GET    /api/models                 - Installed models
//   - GET    /api/system-prompt          - The composed system prompt
//   - GET    /api/knowledge[?category=]  - Knowledge entries
//   - GET    /api/knowledge/categories   - Categories in first-seen order
//   - GET    /api/knowledge/context      - Rendered knowledge block
//   - GET    /api/knowledge/{id}         - One entry
//   - POST   /api/knowledge              - Add (admin)
//   - PATCH  /api/knowledge/{id}         - Partial update (admin)
//   - DELETE /api/knowledge/{id}         - Delete (admin)
//   - POST   /api/knowledge/reset        - Restore the defaults (admin)
//   - GET    /api/conversations[?q=]     - Saved conversations, newest first
//   - GET    /api/conversations/{id}     - One conversation
//   - DELETE /api/conversations/{id}     - Delete a conversation
//   - GET    /api/chat/ws                - Streaming chat over a websocket
//
// Admin routes require "Authorization: Bearer <token>" matching the bcrypt
// hash in server.admin_token_hash.
package server
