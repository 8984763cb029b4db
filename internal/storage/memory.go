// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryBackend keeps values in process memory. It backs tests and the
// "memory" driver, where nothing should survive the process.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (m *MemoryBackend) Get(key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *MemoryBackend) Set(key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Close is a no-op.
func (m *MemoryBackend) Close() error { return nil }
