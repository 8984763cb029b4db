// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disam-ia/disamia/internal/extract"
	"github.com/disam-ia/disamia/internal/storage"
)

func TestStore_ImportFile(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())
	path := filepath.Join(t.TempDir(), "Horario Dental.txt")
	require.NoError(t, os.WriteFile(path, []byte("Lunes a Viernes\n08:00-17:00\n"), 0600))

	e, err := s.ImportFile(path, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Horario Dental", e.Title)
	assert.Equal(t, DefaultImportCategory, e.Category)
	assert.Equal(t, "Lunes a Viernes\n08:00-17:00", e.Content)

	e, err = s.ImportFile(path, "Dental", "Servicios")
	require.NoError(t, err)
	assert.Equal(t, "Dental", e.Title)
	assert.Equal(t, "Servicios", e.Category)
}

func TestStore_ImportFileUnsupported(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	_, err := s.ImportFile("notes.odt", "", "")
	assert.True(t, errors.Is(err, extract.ErrUnsupported))
	assert.Len(t, s.List(), len(defaultIDs))
}
