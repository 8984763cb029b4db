// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value layer disamia persists to,
// plus the conversation history built on top of it.
//
// Each store above this package owns one key and rewrites its whole JSON
// document on every mutation, mirroring the browser localStorage layout the
// project started from. Two processes sharing a backend are last-write-wins.
//
// # Key Types
//
//   - Backend: Get/Set/Delete of one document per key
//   - FileBackend: <dir>/<key>.json written atomically
//   - SQLiteBackend: a kv table in a pure-Go SQLite database
//   - MemoryBackend: process-local, used by tests and the memory driver
//   - ConversationStore: saved chats under "disam_ia_conversations"
//
// # Usage
//
//	backend, err := storage.Open(storage.Options{Driver: "file", Dir: dataDir})
//	convs := storage.NewConversationStore(backend)
//	conv, err := convs.Create("¿Horario de farmacia?")
//	err = convs.Update(conv.ID, messages, "")
package storage
