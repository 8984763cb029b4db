// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

// OrderedSet is a set that remembers first-insertion order. Categories are
// rendered in the order they first appear in the store, so a plain map is not
// enough.
type OrderedSet[T comparable] struct {
	index map[T]int
	items []T
}

// NewOrderedSet returns an empty set.
func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{index: make(map[T]int)}
}

// Add inserts v if absent and reports whether it was added.
func (s *OrderedSet[T]) Add(v T) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

// Contains reports whether v is in the set.
func (s *OrderedSet[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements.
func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Items returns the elements in insertion order. The slice is a copy.
func (s *OrderedSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
