// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Send while a reply is still streaming.
	ErrBusy = errors.New("chat: a reply is already streaming")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("chat: message must not be empty")

	// ErrNoModel is returned by Send when no model was chosen.
	ErrNoModel = errors.New("chat: no model selected")

	// ErrNoHistory is returned by conversation operations when the session
	// was built without a ConversationStore.
	ErrNoHistory = errors.New("chat: conversation history is disabled")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Streamer opens a streaming completion. *ollama.Client implements it.
type Streamer interface {
	ChatStream(ctx context.Context, model string, history []ollama.Message) (*ollama.Stream, error)
}

// SystemPrompter builds the system message. *prompt.Composer implements it.
type SystemPrompter interface {
	BuildSystemMessage() ollama.Message
}

// Options wires a Session.
type Options struct {
	Client   Streamer
	Composer SystemPrompter

	// Conversations enables saving; nil keeps the session in memory only.
	Conversations *storage.ConversationStore

	Logger *log.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation in progress: the message list starting with
// the system message, a loading flag, and the last error. At most one reply
// streams at a time.
//
// All methods are safe for concurrent use. Send blocks until the reply is
// complete; other goroutines may read Messages meanwhile to render progress.
type Session struct {
	client        Streamer
	composer      SystemPrompter
	conversations *storage.ConversationStore
	logger        *log.Logger

	mu             sync.Mutex
	messages       []ollama.Message
	loading        bool
	lastErr        error
	lastStats      ollama.StreamStats
	conversationID string
	generation     int // bumped by Reset so a stale stream stops writing
}

// NewSession starts a session containing only a fresh system message.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		client:        opts.Client,
		composer:      opts.Composer,
		conversations: opts.Conversations,
		logger:        logger,
	}
	s.messages = []ollama.Message{s.composer.BuildSystemMessage()}
	return s
}

// Send appends content as a user message and streams the assistant's reply
// into a new trailing assistant message. onUpdate, if non-nil, receives the
// accumulated reply after every fragment.
//
// On failure the error is also kept for Err, text already received stays in
// the session, and an assistant message that received nothing is dropped.
// When history is enabled the conversation is created on the first send and
// saved after every reply, successful or not.
func (s *Session) Send(ctx context.Context, content, model string, onUpdate func(partial string)) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyMessage
	}
	if strings.TrimSpace(model) == "" {
		return "", ErrNoModel
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.loading = true
	s.lastErr = nil

	user := ollama.NewUserMessage(content)
	history := append(append([]ollama.Message{}, s.messages...), user)
	s.messages = append(s.messages, user, ollama.NewAssistantMessage(""))
	idx := len(s.messages) - 1
	gen := s.generation
	s.mu.Unlock()

	var convErr error
	if s.conversations != nil {
		convErr = s.ensureConversation(content)
	}

	reply, stats, streamErr := s.stream(ctx, model, history, idx, gen, onUpdate)

	s.mu.Lock()
	s.loading = false
	s.lastStats = stats
	if gen == s.generation {
		if streamErr != nil {
			s.lastErr = streamErr
			if s.messages[idx].Content == "" {
				s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
			}
		}
	}
	s.mu.Unlock()

	if streamErr != nil {
		s.logger.Warn("chat reply failed", "model", model, "err", streamErr)
	} else {
		s.logger.Debug("chat reply complete", "model", model, "fragments", stats.Fragments)
	}

	if s.conversations != nil && gen == s.generationNow() {
		if err := s.save(); err != nil && convErr == nil {
			convErr = err
		}
	}

	if streamErr != nil {
		return reply, streamErr
	}
	if convErr != nil {
		return reply, fmt.Errorf("save conversation: %w", convErr)
	}
	return reply, nil
}

func (s *Session) stream(ctx context.Context, model string, history []ollama.Message, idx, gen int, onUpdate func(string)) (string, ollama.StreamStats, error) {
	stream, err := s.client.ChatStream(ctx, model, history)
	if err != nil {
		return "", ollama.StreamStats{}, err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			return reply.String(), stream.Stats(), nil
		}
		if err != nil {
			return reply.String(), stream.Stats(), err
		}

		reply.WriteString(fragment)

		s.mu.Lock()
		if gen != s.generation {
			// The session was reset underneath us; drop the rest.
			s.mu.Unlock()
			return reply.String(), stream.Stats(), context.Canceled
		}
		s.messages[idx].Content = reply.String()
		s.mu.Unlock()

		if onUpdate != nil {
			onUpdate(reply.String())
		}
	}
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// Messages returns a copy of the full message list, system message first.
func (s *Session) Messages() []ollama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ollama.Message(nil), s.messages...)
}

// MessagesForSave returns every non-system message.
func (s *Session) MessagesForSave() []ollama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return withoutSystem(s.messages)
}

// Loading reports whether a reply is streaming.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error of the last Send, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastStats returns the statistics of the last reply.
func (s *Session) LastStats() ollama.StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats
}

// ConversationID returns the saved conversation this session writes to, or
// "" when none has been created yet.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Reset replaces the conversation with a fresh system message followed by
// the non-system messages of restored. The system message is always rebuilt
// so it reflects the current knowledge store. A reply still streaming is
// abandoned.
func (s *Session) Reset(restored []ollama.Message) {
	system := s.composer.BuildSystemMessage()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append([]ollama.Message{system}, withoutSystem(restored)...)
	s.lastErr = nil
	s.generation++
}

// RefreshKnowledge rebuilds the leading system message, keeping the rest of
// the conversation.
func (s *Session) RefreshKnowledge() {
	system := s.composer.BuildSystemMessage()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) > 0 && s.messages[0].Role == ollama.RoleSystem {
		s.messages[0] = system
		return
	}
	s.messages = append([]ollama.Message{system}, s.messages...)
}

// NewConversation starts over. With history enabled an empty conversation is
// created and becomes the save target.
func (s *Session) NewConversation() (storage.Conversation, error) {
	s.Reset(nil)
	if s.conversations == nil {
		s.setConversationID("")
		return storage.Conversation{}, nil
	}

	conv, err := s.conversations.Create("")
	if err != nil {
		return storage.Conversation{}, err
	}
	s.setConversationID(conv.ID)
	return conv, nil
}

// OpenConversation loads a saved conversation and continues it.
func (s *Session) OpenConversation(id string) (storage.Conversation, error) {
	if s.conversations == nil {
		return storage.Conversation{}, ErrNoHistory
	}
	conv, err := s.conversations.Get(id)
	if err != nil {
		return storage.Conversation{}, err
	}

	restored := make([]ollama.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		restored = append(restored, ollama.Message{Role: m.Role, Content: m.Content})
	}
	s.Reset(restored)
	s.setConversationID(conv.ID)
	return conv, nil
}

// DeleteConversation removes a saved conversation. Deleting the one in use
// also resets the session.
func (s *Session) DeleteConversation(id string) error {
	if s.conversations == nil {
		return ErrNoHistory
	}
	if err := s.conversations.Delete(id); err != nil {
		return err
	}
	if s.ConversationID() == id {
		s.setConversationID("")
		s.Reset(nil)
	}
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (s *Session) ensureConversation(firstMessage string) error {
	if s.ConversationID() != "" {
		return nil
	}
	conv, err := s.conversations.Create(firstMessage)
	if err != nil {
		return err
	}
	s.setConversationID(conv.ID)
	return nil
}

// save writes the current messages, titling the conversation after its
// first user message.
func (s *Session) save() error {
	id := s.ConversationID()
	if id == "" {
		return nil
	}

	msgs := s.MessagesForSave()
	stored := make([]storage.Message, 0, len(msgs))
	title := ""
	for _, m := range msgs {
		if title == "" && m.Role == ollama.RoleUser {
			title = m.Content
		}
		stored = append(stored, storage.Message{Role: m.Role, Content: m.Content})
	}
	return s.conversations.Update(id, stored, title)
}

func (s *Session) setConversationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = id
}

func (s *Session) generationNow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func withoutSystem(messages []ollama.Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != ollama.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
