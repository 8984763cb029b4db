// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across disamia.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement with fsync
//   - TruncateRunes: UTF-8 safe truncation by character count
//   - TruncateWidth, PadWidth: display-width aware truncation for terminals
//   - SingleLine: flatten multi-line text for previews
//
// # Usage
//
//	title := util.TruncateRunes(firstMessage, 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
