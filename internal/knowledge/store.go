// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/disam-ia/disamia/internal/storage"
)

// StorageKey is the backend key holding the knowledge entries.
const StorageKey = "disam_ia_knowledge"

// =============================================================================
// STORE
// =============================================================================

// Store is the editable knowledge base. Every mutation rewrites the whole
// entry list under StorageKey; reads that find nothing stored fall back to
// DefaultEntries without persisting them.
//
// A Store serializes its own mutations. Separate Stores (or processes)
// sharing one backend are last-write-wins.
type Store struct {
	backend storage.Backend
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
	header  string

	mu        sync.Mutex
	lastSaved [sha256.Size]byte

	listenersMu sync.Mutex
	listeners   []func()
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded reads.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation for new entries.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithContextHeader replaces the heading RenderContext emits.
func WithContextHeader(header string) Option {
	return func(s *Store) {
		if header != "" {
			s.header = header
		}
	}
}

// NewStore returns a Store persisting to backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  log.Default(),
		now:     time.Now,
		newID:   func() string { return "kb_" + uuid.NewString() },
		header:  DefaultContextHeader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns every entry in persisted order. It never fails.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, _ := s.load()
	return entries
}

// Get returns the entry with id.
func (s *Store) Get(id string) (Entry, bool) {
	for _, e := range s.List() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ByCategory returns the entries filed under category, in store order.
func (s *Store) ByCategory(category string) []Entry {
	category = clean(category)
	var out []Entry
	for _, e := range s.List() {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (s *Store) Categories() []string {
	return categoriesOf(s.List())
}

func categoriesOf(entries []Entry) []string {
	set := NewOrderedSet[string]()
	for _, e := range entries {
		set.Add(e.Category)
	}
	return set.Items()
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Initialize persists the default set if nothing is stored yet.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backend.Get(StorageKey); !errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err := s.save(DefaultEntries()); err != nil {
		return err
	}
	s.logger.Info("knowledge store seeded with defaults", "entries", len(DefaultEntries()))
	return nil
}

// Add validates and appends a new entry, returning it with its assigned id
// and timestamps.
func (s *Store) Add(title, content, category string) (Entry, error) {
	title, content, category = clean(title), clean(content), clean(category)
	if err := validateFields(title, content, category); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	entries, _ := s.load()
	now := s.now().UnixMilli()
	entry := Entry{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.save(append(entries, entry))
	s.mu.Unlock()

	if err != nil {
		return Entry{}, err
	}
	s.logger.Debug("knowledge entry added", "id", entry.ID, "category", entry.Category)
	s.notify()
	return entry, nil
}

// Update merges patch into entry id and refreshes UpdatedAt. Unknown ids are
// ignored. Supplied fields must not be empty.
func (s *Store) Update(id string, patch Patch) error {
	if err := validatePatch(patch); err != nil {
		return err
	}

	s.mu.Lock()
	entries, _ := s.load()
	idx := -1
	for i := range entries {
		if entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	e := &entries[idx]
	if patch.Title != nil {
		e.Title = clean(*patch.Title)
	}
	if patch.Content != nil {
		e.Content = clean(*patch.Content)
	}
	if patch.Category != nil {
		e.Category = clean(*patch.Category)
	}
	e.UpdatedAt = s.now().UnixMilli()
	err := s.save(entries)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Debug("knowledge entry updated", "id", id)
	s.notify()
	return nil
}

// Delete removes entry id. Unknown ids are ignored.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	entries, _ := s.load()
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		s.mu.Unlock()
		return nil
	}
	err := s.save(kept)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Debug("knowledge entry deleted", "id", id)
	s.notify()
	return nil
}

// Reset overwrites the store with the default set, discarding all edits.
func (s *Store) Reset() error {
	s.mu.Lock()
	err := s.save(DefaultEntries())
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Info("knowledge store reset to defaults")
	s.notify()
	return nil
}

// Snapshot returns a copy of the current entries for export.
func (s *Store) Snapshot() []Entry {
	return s.List()
}

// Restore replaces the whole store with entries, as produced by Snapshot or
// an export file. Entries are validated and given ids/timestamps if missing;
// duplicate ids are rejected.
func (s *Store) Restore(entries []Entry) error {
	now := s.now().UnixMilli()
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))

	for i, e := range entries {
		e.Title, e.Content, e.Category = clean(e.Title), clean(e.Content), clean(e.Category)
		if err := validateFields(e.Title, e.Content, e.Category); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.ID == "" {
			e.ID = s.newID()
		}
		if seen[e.ID] {
			return &ValidationError{Field: "id", Message: "duplicate id " + e.ID}
		}
		seen[e.ID] = true
		if e.CreatedAt == 0 {
			e.CreatedAt = now
		}
		if e.UpdatedAt == 0 {
			e.UpdatedAt = e.CreatedAt
		}
		out = append(out, e)
	}

	s.mu.Lock()
	err := s.save(out)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.logger.Info("knowledge store restored", "entries", len(out))
	s.notify()
	return nil
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// OnChange registers fn to run after every successful mutation, and after
// external changes picked up by a Watcher. fn runs synchronously on the
// mutating goroutine and must not call back into the Store's write methods.
func (s *Store) OnChange(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// load must be called with s.mu held. The bool reports whether the entries
// came from storage rather than the default fallback.
func (s *Store) load() ([]Entry, bool) {
	data, err := s.backend.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Warn("knowledge store unreadable, using defaults", "err", err)
		}
		return DefaultEntries(), false
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("knowledge store corrupt, using defaults", "err", err)
		return DefaultEntries(), false
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, true
}

// save must be called with s.mu held.
func (s *Store) save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}
	if err := s.backend.Set(StorageKey, data); err != nil {
		return fmt.Errorf("persist knowledge: %w", err)
	}
	s.lastSaved = sha256.Sum256(data)
	return nil
}

// Reload checks whether the stored document differs from what this Store
// last saw and, if so, notifies listeners. Watchers call it when another
// process may have edited the backend. A document removed after being seen
// counts as a change, since List falls back to the defaults.
func (s *Store) Reload() bool {
	s.mu.Lock()
	var changed bool
	data, err := s.backend.Get(StorageKey)
	switch {
	case err == nil:
		changed = !bytes.Equal(s.lastSaved[:], sumOf(data))
		if changed {
			s.lastSaved = sha256.Sum256(data)
		}
	case errors.Is(err, storage.ErrKeyNotFound):
		changed = s.lastSaved != [sha256.Size]byte{}
		s.lastSaved = [sha256.Size]byte{}
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info("knowledge store changed externally")
		s.notify()
	}
	return changed
}

func sumOf(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
