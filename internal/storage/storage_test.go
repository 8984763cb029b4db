// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BACKEND CONTRACT TESTS
// =============================================================================

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	sqliteBackend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteBackend.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fileBackend,
		"sqlite": sqliteBackend,
	}
}

func TestBackend_Contract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get("missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, b.Set("disam_ia_knowledge", []byte(`[1]`)))
			got, err := b.Get("disam_ia_knowledge")
			require.NoError(t, err)
			assert.Equal(t, `[1]`, string(got))

			require.NoError(t, b.Set("disam_ia_knowledge", []byte(`[2]`)))
			got, err = b.Get("disam_ia_knowledge")
			require.NoError(t, err)
			assert.Equal(t, `[2]`, string(got))

			require.NoError(t, b.Delete("disam_ia_knowledge"))
			_, err = b.Get("disam_ia_knowledge")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			// Deleting twice is fine.
			assert.NoError(t, b.Delete("disam_ia_knowledge"))
		})
	}
}

func TestBackend_RejectsUnsafeKeys(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "..", "../etc/passwd", "a/b", "with space"} {
				err := b.Set(key, []byte("x"))
				assert.True(t, errors.Is(err, ErrInvalidKey), "key %q: %v", key, err)
			}
		})
	}
}

func TestMemoryBackend_CopiesValues(t *testing.T) {
	b := NewMemoryBackend()
	value := []byte("abc")
	require.NoError(t, b.Set("k", value))
	value[0] = 'z'

	got, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileBackend_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.Set("disam_ia_conversations", []byte("[]")))
	assert.Equal(t, filepath.Join(dir, "disam_ia_conversations.json"), b.Path("disam_ia_conversations"))

	data, err := os.ReadFile(b.Path("disam_ia_conversations"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "disamia.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Set("k", []byte("v")))
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(Options{Driver: DriverFile, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	b, err = Open(Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(Options{Driver: DriverSQLite, Dir: dir})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, filepath.Join(dir, "disamia.db"), b.(*SQLiteBackend).Path())

	_, err = Open(Options{Driver: "redis"})
	assert.Error(t, err)
}
