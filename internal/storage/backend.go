// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is a durable key/value store holding one serialized document per
// key. Stores above it do whole-document read-modify-write, so a Backend only
// needs atomic replacement of a single value.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the stored value or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options selects and configures a backend for Open.
type Options struct {
	// Driver is one of DriverFile, DriverSQLite or DriverMemory.
	Driver string

	// Dir is the data directory used by the file driver.
	Dir string

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string
}

// Open constructs the backend named by opts.Driver.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileBackend(opts.Dir)
	case DriverSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.Dir, "disamia.db")
		}
		return NewSQLiteBackend(path)
	case DriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrKeyNotFound is returned by Backend.Get when nothing is stored under a key.
var ErrKeyNotFound = errors.New("storage: key not found")

// ErrInvalidKey is returned for keys that cannot be mapped safely onto every
// backend (file names in particular).
var ErrInvalidKey = errors.New("storage: invalid key")

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
