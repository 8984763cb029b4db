// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/disam-ia/disamia/internal/util"
)

// ConversationsKey is the backend key holding the conversation history.
const ConversationsKey = "disam_ia_conversations"

// MaxTitleRunes bounds conversation titles.
const MaxTitleRunes = 50

// DefaultTitle is used when a conversation is created without a first message.
const DefaultTitle = "Nueva conversación"

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Message is a persisted chat message. System messages are never stored; the
// system prompt is recomposed from the knowledge store when a conversation is
// reopened.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Conversation is one saved chat.
type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt int64     `json:"createdAt" yaml:"createdAt"` // Unix milliseconds
	UpdatedAt int64     `json:"updatedAt" yaml:"updatedAt"` // Unix milliseconds
}

// Created returns CreatedAt as a time.Time.
func (c Conversation) Created() time.Time {
	return time.UnixMilli(c.CreatedAt)
}

// Updated returns UpdatedAt as a time.Time.
func (c Conversation) Updated() time.Time {
	return time.UnixMilli(c.UpdatedAt)
}

// Preview returns the first user message flattened to a single line.
func (c Conversation) Preview(maxRunes int) string {
	for _, m := range c.Messages {
		if m.Role == "user" && m.Content != "" {
			return util.TruncateRunes(util.SingleLine(m.Content), maxRunes)
		}
	}
	return ""
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore persists the conversation list as a single JSON array,
// newest-created first.
type ConversationStore struct {
	backend Backend
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
	mu      sync.Mutex
}

// ConversationOption customizes a ConversationStore.
type ConversationOption func(*ConversationStore)

// WithConversationLogger sets the logger used for degraded reads.
func WithConversationLogger(l *log.Logger) ConversationOption {
	return func(s *ConversationStore) { s.logger = l }
}

// WithConversationClock overrides the time source.
func WithConversationClock(now func() time.Time) ConversationOption {
	return func(s *ConversationStore) { s.now = now }
}

// WithConversationIDs overrides id generation.
func WithConversationIDs(newID func() string) ConversationOption {
	return func(s *ConversationStore) { s.newID = newID }
}

// NewConversationStore returns a store over backend.
func NewConversationStore(backend Backend, opts ...ConversationOption) *ConversationStore {
	s := &ConversationStore{
		backend: backend,
		logger:  log.Default(),
		now:     time.Now,
		newID:   func() string { return "conv_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all conversations, newest-created first. Missing or
// unreadable data yields an empty list.
func (s *ConversationStore) List() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the conversation with id.
func (s *ConversationStore) Get(id string) (Conversation, error) {
	for _, c := range s.List() {
		if c.ID == id {
			return c, nil
		}
	}
	return Conversation{}, ErrConversationNotFound
}

// Create starts an empty conversation titled after firstMessage and puts it
// at the front of the list.
func (s *ConversationStore) Create(firstMessage string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title := util.TruncateRunes(firstMessage, MaxTitleRunes)
	if title == "" {
		title = DefaultTitle
	}
	now := s.now().UnixMilli()
	conv := Conversation{
		ID:        s.newID(),
		Title:     title,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	all := append([]Conversation{conv}, s.load()...)
	if err := s.save(all); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// Update replaces the messages of conversation id and refreshes UpdatedAt.
// A non-empty title replaces the current one. Unknown ids are ignored.
func (s *ConversationStore) Update(id string, messages []Message, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].Messages = withoutSystem(messages)
		all[i].UpdatedAt = s.now().UnixMilli()
		if title != "" {
			all[i].Title = util.TruncateRunes(title, MaxTitleRunes)
		}
		return s.save(all)
	}
	return nil
}

// Delete removes conversation id if present.
func (s *ConversationStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	kept := all[:0]
	for _, c := range all {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return s.save(kept)
}

// Clear removes the whole history.
func (s *ConversationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ConversationsKey)
}

// Search returns conversations whose title or messages contain query,
// case-insensitively.
func (s *ConversationStore) Search(query string) []Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.List()
	if query == "" {
		return all
	}

	var results []Conversation
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Title), query) {
			results = append(results, c)
			continue
		}
		for _, m := range c.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				results = append(results, c)
				break
			}
		}
	}
	return results
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *ConversationStore) load() []Conversation {
	data, err := s.backend.Get(ConversationsKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("conversation history unreadable", "err", err)
		}
		return []Conversation{}
	}

	var all []Conversation
	if err := json.Unmarshal(data, &all); err != nil {
		s.logger.Warn("conversation history corrupt, treating as empty", "err", err)
		return []Conversation{}
	}
	if all == nil {
		all = []Conversation{}
	}
	return all
}

func (s *ConversationStore) save(all []Conversation) error {
	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return s.backend.Set(ConversationsKey, data)
}

func withoutSystem(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != "system" {
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
