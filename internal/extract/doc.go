// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extract pulls plain text out of documents users attach to a chat or
// import into the knowledge store. Plain text, PDF and DOCX are supported.
package extract
