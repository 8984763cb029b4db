// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package knowledge manages the editable set of institutional facts that is
// rendered into every conversation's system prompt.
//
// # Key Types
//
//   - Entry: one titled snippet filed under a free-text category
//   - Store: CRUD over the entry list, persisted through a storage.Backend
//   - OrderedSet: first-seen ordering used for categories
//   - Watcher: reloads a Store when its file is edited by another process
//
// # Usage
//
//	store := knowledge.NewStore(backend)
//	entry, err := store.Add("Horario SAPU", "24 horas", "Urgencias")
//	prompt := store.RenderContext()
//
// A Store falls back to DefaultEntries whenever nothing is stored, so a fresh
// installation answers questions about DISAM immediately.
package knowledge
