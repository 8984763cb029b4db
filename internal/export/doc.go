// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations and knowledge snapshots to
// files.
//
// # Supported Formats
//
//   - json: the stored layout, loadable with DecodeKnowledge
//   - yaml: same structure, easier to edit by hand
//   - md: human-readable Markdown
//
// # Usage
//
//	exporter, err := export.New("md", nil)
//	path, err := export.ConversationToFile(&conv, exporter, nil)
package export
