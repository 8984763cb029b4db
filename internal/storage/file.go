// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/disam-ia/disamia/internal/util"
)

// FileBackend stores each key as <dir>/<key>.json. Writes go through
// util.AtomicWriteFile so a crash never leaves a truncated document.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("storage: file backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the data directory.
func (f *FileBackend) Dir() string {
	return f.dir
}

// Path returns the file that holds key. The knowledge watcher uses it to
// subscribe to changes made by other processes.
func (f *FileBackend) Path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get reads the document stored under key.
func (f *FileBackend) Get(key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Set atomically replaces the document stored under key.
func (f *FileBackend) Set(key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return util.AtomicWriteFile(f.Path(key), value, 0600)
}

// Delete removes the document stored under key.
func (f *FileBackend) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; files are not held open between calls.
func (f *FileBackend) Close() error { return nil }
