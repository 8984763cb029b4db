// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T, b storage.Backend) *Store {
	t.Helper()

	clock := time.UnixMilli(1_750_000_000_000)
	seq := 0
	return NewStore(b,
		WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("kb_%d", seq)
		}),
	)
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

var defaultIDs = []string{"disam_general", "mision_vision", "cesfams", "farmacia", "urgencias"}

// =============================================================================
// READ TESTS
// =============================================================================

func TestStore_ListFallsBackToDefaultsWithoutPersisting(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)

	assert.Equal(t, defaultIDs, ids(s.List()))

	_, err := b.Get(StorageKey)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound, "fallback must not be persisted")
}

func TestStore_ListCorruptDataFallsBack(t *testing.T) {
	b := storage.NewMemoryBackend()
	require.NoError(t, b.Set(StorageKey, []byte("not json")))

	s := newTestStore(t, b)
	assert.Equal(t, defaultIDs, ids(s.List()))
}

func TestStore_StoredEmptyListStaysEmpty(t *testing.T) {
	b := storage.NewMemoryBackend()
	require.NoError(t, b.Set(StorageKey, []byte("[]")))

	s := newTestStore(t, b)
	assert.Empty(t, s.List())
	assert.Empty(t, s.Categories())
}

func TestStore_Categories(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	assert.Equal(t, []string{"Institucional", "Centros de Salud", "Servicios", "Urgencias"}, s.Categories())

	_, err := s.Add("Dental", "Atención dental", "Servicios")
	require.NoError(t, err)
	_, err = s.Add("Vacunas", "Campaña de invierno", "Campañas")
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Institucional", "Centros de Salud", "Servicios", "Urgencias", "Campañas"},
		s.Categories())
}

func TestStore_CategoryDisappearsWithLastEntry(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	require.NoError(t, s.Delete("urgencias"))
	assert.NotContains(t, s.Categories(), "Urgencias")
}

func TestStore_GetAndByCategory(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	e, ok := s.Get("farmacia")
	require.True(t, ok)
	assert.Equal(t, "Farmacia Municipal", e.Title)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"disam_general", "mision_vision"}, ids(s.ByCategory("Institucional")))
	assert.Empty(t, s.ByCategory("Nada"))
}

// =============================================================================
// WRITE TESTS
// =============================================================================

func TestStore_AddStartsFromDefaults(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	e, err := s.Add("SAPU", "Horario 24 horas", "Urgencias")
	require.NoError(t, err)
	assert.Equal(t, "kb_1", e.ID)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	assert.Equal(t, append(append([]string{}, defaultIDs...), "kb_1"), ids(s.List()))
}

func TestStore_AddValidation(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	tests := []struct {
		name                     string
		title, content, category string
		field                    string
	}{
		{"empty title", "", "c", "cat", "title"},
		{"blank content", "t", "   \n", "cat", "content"},
		{"empty category", "t", "c", "", "category"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Add(tc.title, tc.content, tc.category)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	assert.Equal(t, defaultIDs, ids(s.List()), "failed adds must not mutate the store")
}

func TestStore_AddNormalizesToNFC(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	// "Atención" with a combining acute accent.
	_, err := s.Add("x", "y", "Atencio\u0301n")
	require.NoError(t, err)
	_, err = s.Add("z", "w", "Atenci\u00f3n")
	require.NoError(t, err)

	assert.Len(t, s.ByCategory("Atencio\u0301n"), 2)
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())
	before, _ := s.Get("farmacia")

	require.NoError(t, s.Update("farmacia", Patch{Content: String("Nuevo horario")}))

	after, ok := s.Get("farmacia")
	require.True(t, ok)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, before.Category, after.Category)
	assert.Equal(t, "Nuevo horario", after.Content)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Greater(t, after.UpdatedAt, before.UpdatedAt)
}

func TestStore_UpdateUnknownIsNoop(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)

	require.NoError(t, s.Update("missing", Patch{Title: String("x")}))
	_, err := b.Get(StorageKey)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestStore_UpdateRejectsEmptyField(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	err := s.Update("farmacia", Patch{Title: String(" ")})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Field)

	e, _ := s.Get("farmacia")
	assert.Equal(t, "Farmacia Municipal", e.Title)
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)
	calls := 0
	s.OnChange(func() { calls++ })

	require.NoError(t, s.Delete("missing"))

	_, err := b.Get(StorageKey)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound, "defaults must not be persisted")
	assert.Zero(t, calls)
	assert.Equal(t, defaultIDs, ids(s.List()))
}

func TestStore_DeleteAndReset(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	require.NoError(t, s.Delete("cesfams"))
	require.NoError(t, s.Delete("missing"))
	assert.NotContains(t, ids(s.List()), "cesfams")

	require.NoError(t, s.Reset())
	assert.Equal(t, DefaultEntries(), s.List())

	// Idempotent.
	require.NoError(t, s.Reset())
	assert.Equal(t, DefaultEntries(), s.List())
}

func TestStore_Initialize(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)

	require.NoError(t, s.Initialize())
	_, err := b.Get(StorageKey)
	require.NoError(t, err)

	_, err = s.Add("t", "c", "cat")
	require.NoError(t, err)

	// A second Initialize must not wipe user edits.
	require.NoError(t, s.Initialize())
	assert.Len(t, s.List(), len(defaultIDs)+1)
}

// TestStore_ReplayMatchesModel runs random add/update/delete sequences and
// checks after every step that the store equals a plain slice replaying the
// same operations.
func TestStore_ReplayMatchesModel(t *testing.T) {
	categories := []string{"Institucional", "Servicios", "Urgencias", "Otros"}

	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			s := newTestStore(t, storage.NewMemoryBackend())
			model := DefaultEntries()

			pickID := func() string {
				if len(model) == 0 || rng.Intn(5) == 0 {
					return "missing"
				}
				return model[rng.Intn(len(model))].ID
			}

			for step := 0; step < 60; step++ {
				switch op := rng.Intn(3); op {
				case 0:
					title := fmt.Sprintf("t%d", step)
					content := fmt.Sprintf("c%d", rng.Intn(100))
					category := categories[rng.Intn(len(categories))]
					e, err := s.Add(title, content, category)
					require.NoError(t, err)
					model = append(model, Entry{ID: e.ID, Title: title, Content: content, Category: category})

				case 1:
					id := pickID()
					var patch Patch
					if rng.Intn(2) == 0 {
						patch.Title = String(fmt.Sprintf("u%d", step))
					}
					if rng.Intn(2) == 0 {
						patch.Content = String(fmt.Sprintf("v%d", step))
					}
					if rng.Intn(2) == 0 || patch.Empty() {
						patch.Category = String(categories[rng.Intn(len(categories))])
					}
					require.NoError(t, s.Update(id, patch))
					for i := range model {
						if model[i].ID != id {
							continue
						}
						if patch.Title != nil {
							model[i].Title = *patch.Title
						}
						if patch.Content != nil {
							model[i].Content = *patch.Content
						}
						if patch.Category != nil {
							model[i].Category = *patch.Category
						}
					}

				case 2:
					id := pickID()
					require.NoError(t, s.Delete(id))
					kept := model[:0:0]
					for _, e := range model {
						if e.ID != id {
							kept = append(kept, e)
						}
					}
					model = kept
				}

				got := s.List()
				require.Equal(t, ids(model), ids(got), "step %d", step)
				for i, e := range got {
					assert.Equal(t, model[i].Title, e.Title)
					assert.Equal(t, model[i].Content, e.Content)
					assert.Equal(t, model[i].Category, e.Category)
				}
				assert.Equal(t, categoriesOf(model), s.Categories())
			}
		})
	}
}

func TestStore_Restore(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())

	require.NoError(t, s.Restore([]Entry{
		{ID: "x", Title: "X", Content: "x", Category: "c"},
		{Title: "Y", Content: "y", Category: "c"},
	}))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].ID)
	assert.Equal(t, "kb_1", list[1].ID)
	assert.NotZero(t, list[1].CreatedAt)

	err := s.Restore([]Entry{
		{ID: "d", Title: "a", Content: "a", Category: "a"},
		{ID: "d", Title: "b", Content: "b", Category: "b"},
	})
	assert.Error(t, err)

	err = s.Restore([]Entry{{ID: "e", Title: "", Content: "a", Category: "a"}})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Len(t, s.List(), 2, "failed restore leaves the store untouched")
}

func TestStore_OnChange(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())
	calls := 0
	s.OnChange(func() { calls++ })

	_, err := s.Add("t", "c", "cat")
	require.NoError(t, err)
	require.NoError(t, s.Update("farmacia", Patch{Title: String("F")}))
	require.NoError(t, s.Delete("farmacia"))
	require.NoError(t, s.Reset())
	assert.Equal(t, 4, calls)

	_, err = s.Add("", "c", "cat")
	require.Error(t, err)
	assert.Equal(t, 4, calls, "failed mutations do not notify")
}

func TestStore_ReloadDetectsExternalWrites(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)
	other := newTestStore(t, b)

	calls := 0
	s.OnChange(func() { calls++ })

	require.NoError(t, s.Reset())
	assert.False(t, s.Reload(), "own write is not an external change")

	_, err := other.Add("t", "c", "cat")
	require.NoError(t, err)
	assert.True(t, s.Reload())
	assert.False(t, s.Reload())
	assert.Equal(t, 2, calls)
}

func TestStore_ReloadDetectsExternalRemoval(t *testing.T) {
	b := storage.NewMemoryBackend()
	s := newTestStore(t, b)

	calls := 0
	s.OnChange(func() { calls++ })

	_, err := s.Add("t", "c", "cat")
	require.NoError(t, err)
	require.Len(t, s.List(), len(defaultIDs)+1)

	require.NoError(t, b.Delete(StorageKey))
	assert.True(t, s.Reload())
	assert.False(t, s.Reload(), "a removal is reported once")
	assert.Equal(t, 2, calls)
	assert.Equal(t, defaultIDs, ids(s.List()))
}

func TestStore_ReloadWithNothingStored(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryBackend())
	calls := 0
	s.OnChange(func() { calls++ })

	assert.False(t, s.Reload())
	assert.Zero(t, calls)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	b, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	e, err := newTestStore(t, b).Add("t", "c", "cat")
	require.NoError(t, err)

	got, ok := newTestStore(t, b).Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestOrderedSet(t *testing.T) {
	s := NewOrderedSet[string]()
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("b"))
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Contains("c"))
	assert.Equal(t, 2, s.Len())

	items := s.Items()
	assert.Equal(t, []string{"b", "a"}, items)
	items[0] = "mutated"
	assert.Equal(t, []string{"b", "a"}, s.Items())
}
