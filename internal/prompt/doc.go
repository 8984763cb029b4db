// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt composes the system message that opens every conversation:
// a preamble naming the assistant, the rendered knowledge store, and a block
// of operating instructions.
//
// Nothing is cached. Knowledge edits show up in the next message built.
package prompt
