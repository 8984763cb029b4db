// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disam-ia/disamia/internal/storage"
)

func TestWatcher_NotifiesOnExternalWrite(t *testing.T) {
	b, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := newTestStore(t, b)
	require.NoError(t, s.Initialize())

	changed := make(chan struct{}, 4)
	s.OnChange(func() { changed <- struct{}{} })

	w, err := NewWatcher(s, b.Path(StorageKey), 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Another process edits the same file.
	other := newTestStore(t, b)
	_, err = other.Add("Externo", "contenido", "Otros")
	require.NoError(t, err)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the external change")
	}

	_, ok := s.Get("kb_1")
	require.True(t, ok)
}

func TestWatcher_NotifiesOnExternalRemoval(t *testing.T) {
	b, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := newTestStore(t, b)
	_, err = s.Add("Local", "contenido", "Otros")
	require.NoError(t, err)

	changed := make(chan struct{}, 4)
	s.OnChange(func() { changed <- struct{}{} })

	w, err := NewWatcher(s, b.Path(StorageKey), 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.Remove(b.Path(StorageKey)))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the removal")
	}
	assert.Equal(t, defaultIDs, ids(s.List()))
}
