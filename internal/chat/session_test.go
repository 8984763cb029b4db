// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakePrompter struct {
	calls atomic.Int32
}

func (f *fakePrompter) BuildSystemMessage() ollama.Message {
	n := f.calls.Add(1)
	return ollama.NewSystemMessage(fmt.Sprintf("system v%d", n))
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func record(content string, done bool) string {
	b, _ := json.Marshal(map[string]any{
		"model":   "llama3.2",
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    done,
	})
	return string(b) + "\n"
}

// ollamaServer replies to every chat request with the given fragments and
// records the request bodies it saw.
type ollamaServer struct {
	mu       sync.Mutex
	requests []ollama.ChatRequest
	status   int
	chunks   []string
}

func (o *ollamaServer) handler(w http.ResponseWriter, r *http.Request) {
	var req ollama.ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	o.mu.Lock()
	o.requests = append(o.requests, req)
	status, chunks := o.status, o.chunks
	o.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		io.WriteString(w, `{"error":"boom"}`)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	for _, c := range chunks {
		io.WriteString(w, c)
		w.(http.Flusher).Flush()
	}
}

func (o *ollamaServer) lastRequest(t *testing.T) ollama.ChatRequest {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.requests)
	return o.requests[len(o.requests)-1]
}

func newSession(t *testing.T, o *ollamaServer, conversations *storage.ConversationStore) (*Session, *fakePrompter) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(o.handler))
	t.Cleanup(srv.Close)

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL, Logger: quietLogger()})
	prompter := &fakePrompter{}
	s := NewSession(Options{
		Client:        client,
		Composer:      prompter,
		Conversations: conversations,
		Logger:        quietLogger(),
	})
	return s, prompter
}

func newConversations() *storage.ConversationStore {
	return storage.NewConversationStore(storage.NewMemoryBackend(),
		storage.WithConversationLogger(quietLogger()))
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestNewSession_StartsWithSystemMessage(t *testing.T) {
	s, _ := newSession(t, &ollamaServer{}, nil)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, ollama.RoleSystem, msgs[0].Role)
	assert.Equal(t, "system v1", msgs[0].Content)
	assert.False(t, s.Loading())
	assert.NoError(t, s.Err())
}

func TestSend_StreamsReply(t *testing.T) {
	o := &ollamaServer{chunks: []string{record("Hola", false), record(", ¿en qué", false), record(" ayudo?", false), record("", true)}}
	s, _ := newSession(t, o, nil)

	var updates []string
	reply, err := s.Send(context.Background(), "Hola", "llama3.2", func(p string) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola, ¿en qué ayudo?", reply)
	assert.Equal(t, []string{"Hola", "Hola, ¿en qué", "Hola, ¿en qué ayudo?"}, updates)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, ollama.RoleSystem, msgs[0].Role)
	assert.Equal(t, ollama.NewUserMessage("Hola"), msgs[1])
	assert.Equal(t, ollama.NewAssistantMessage("Hola, ¿en qué ayudo?"), msgs[2])
	assert.False(t, s.Loading())
}

func TestSend_HistoryExcludesPlaceholder(t *testing.T) {
	o := &ollamaServer{chunks: []string{record("uno", true)}}
	s, _ := newSession(t, o, nil)

	_, err := s.Send(context.Background(), "primera", "llama3.2", nil)
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "segunda", "llama3.2", nil)
	require.NoError(t, err)

	req := o.lastRequest(t)
	assert.Equal(t, "llama3.2", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, ollama.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "primera", req.Messages[1].Content)
	assert.Equal(t, "uno", req.Messages[2].Content)
	assert.Equal(t, ollama.NewUserMessage("segunda"), req.Messages[3])
}

func TestSend_RejectsBadInput(t *testing.T) {
	s, _ := newSession(t, &ollamaServer{}, nil)

	_, err := s.Send(context.Background(), "   ", "llama3.2", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = s.Send(context.Background(), "hola", "", nil)
	assert.ErrorIs(t, err, ErrNoModel)

	assert.Len(t, s.Messages(), 1, "rejected input must not touch the history")
}

func TestSend_FailureDropsEmptyPlaceholder(t *testing.T) {
	o := &ollamaServer{status: http.StatusInternalServerError}
	s, _ := newSession(t, o, nil)

	_, err := s.Send(context.Background(), "hola", "llama3.2", nil)
	require.Error(t, err)
	assert.Equal(t, err, s.Err())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, ollama.RoleUser, msgs[1].Role)
	assert.False(t, s.Loading())
}

func TestSend_FailureKeepsPartialReply(t *testing.T) {
	o := &ollamaServer{chunks: []string{record("parcial", false), `{"error":"model crashed"}` + "\n"}}
	s, _ := newSession(t, o, nil)

	reply, err := s.Send(context.Background(), "hola", "llama3.2", nil)
	require.Error(t, err)
	assert.Equal(t, "parcial", reply)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "parcial", msgs[2].Content)
}

func TestSend_ModelNotFound(t *testing.T) {
	o := &ollamaServer{status: http.StatusNotFound}
	s, _ := newSession(t, o, nil)

	_, err := s.Send(context.Background(), "hola", "missing", nil)
	assert.True(t, ollama.IsModelNotFound(err))
}

func TestSend_BusyWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, record("a", false))
		w.(http.Flusher).Flush()
		close(started)
		<-release
		io.WriteString(w, record("b", true))
	}))
	t.Cleanup(srv.Close)

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL, Logger: quietLogger()})
	s := NewSession(Options{Client: client, Composer: &fakePrompter{}, Logger: quietLogger()})

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "uno", "llama3.2", nil)
		done <- err
	}()

	<-started
	assert.True(t, s.Loading())
	_, err := s.Send(context.Background(), "dos", "llama3.2", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "ab", s.Messages()[2].Content)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestReset_RebuildsSystemAndDropsRestoredSystem(t *testing.T) {
	s, _ := newSession(t, &ollamaServer{}, nil)

	s.Reset([]ollama.Message{
		ollama.NewSystemMessage("viejo"),
		ollama.NewUserMessage("hola"),
		ollama.NewAssistantMessage("buenas"),
	})

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "system v2", msgs[0].Content)
	assert.Equal(t, "hola", msgs[1].Content)
	assert.Equal(t, "buenas", msgs[2].Content)

	s.Reset(nil)
	assert.Len(t, s.Messages(), 1)
}

func TestRefreshKnowledge_ReplacesOnlySystem(t *testing.T) {
	o := &ollamaServer{chunks: []string{record("respuesta", true)}}
	s, _ := newSession(t, o, nil)

	_, err := s.Send(context.Background(), "hola", "llama3.2", nil)
	require.NoError(t, err)

	s.RefreshKnowledge()
	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "system v2", msgs[0].Content)
	assert.Equal(t, "respuesta", msgs[2].Content)
}

func TestMessagesForSave_ExcludesSystem(t *testing.T) {
	o := &ollamaServer{chunks: []string{record("ok", true)}}
	s, _ := newSession(t, o, nil)

	_, err := s.Send(context.Background(), "hola", "llama3.2", nil)
	require.NoError(t, err)

	saved := s.MessagesForSave()
	require.Len(t, saved, 2)
	for _, m := range saved {
		assert.NotEqual(t, ollama.RoleSystem, m.Role)
	}
}

// =============================================================================
// PERSISTENCE TESTS
// =============================================================================

func TestSend_CreatesAndSavesConversation(t *testing.T) {
	conversations := newConversations()
	o := &ollamaServer{chunks: []string{record("Claro", true)}}
	s, _ := newSession(t, o, conversations)

	_, err := s.Send(context.Background(), "¿Horario de farmacia?", "llama3.2", nil)
	require.NoError(t, err)

	id := s.ConversationID()
	require.NotEmpty(t, id)

	conv, err := conversations.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "¿Horario de farmacia?", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, storage.Message{Role: "user", Content: "¿Horario de farmacia?"}, conv.Messages[0])
	assert.Equal(t, storage.Message{Role: "assistant", Content: "Claro"}, conv.Messages[1])

	_, err = s.Send(context.Background(), "gracias", "llama3.2", nil)
	require.NoError(t, err)
	assert.Len(t, conversations.List(), 1)
	conv, _ = conversations.Get(id)
	assert.Len(t, conv.Messages, 4)
}

func TestNewConversation_TitledAfterFirstMessage(t *testing.T) {
	conversations := newConversations()
	o := &ollamaServer{chunks: []string{record("ok", true)}}
	s, _ := newSession(t, o, conversations)

	conv, err := s.NewConversation()
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultTitle, conv.Title)
	assert.Equal(t, conv.ID, s.ConversationID())

	_, err = s.Send(context.Background(), "consulta sobre CESFAM", "llama3.2", nil)
	require.NoError(t, err)

	got, err := conversations.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "consulta sobre CESFAM", got.Title)
}

func TestOpenConversation_RestoresWithFreshSystem(t *testing.T) {
	conversations := newConversations()
	conv, err := conversations.Create("hola")
	require.NoError(t, err)
	require.NoError(t, conversations.Update(conv.ID, []storage.Message{
		{Role: "user", Content: "hola"},
		{Role: "assistant", Content: "buenas"},
	}, "hola"))

	s, _ := newSession(t, &ollamaServer{}, conversations)
	_, err = s.OpenConversation(conv.ID)
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, ollama.RoleSystem, msgs[0].Role)
	assert.Equal(t, "buenas", msgs[2].Content)
	assert.Equal(t, conv.ID, s.ConversationID())

	_, err = s.OpenConversation("conv_missing")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestDeleteConversation_CurrentResets(t *testing.T) {
	conversations := newConversations()
	o := &ollamaServer{chunks: []string{record("ok", true)}}
	s, _ := newSession(t, o, conversations)

	_, err := s.Send(context.Background(), "hola", "llama3.2", nil)
	require.NoError(t, err)
	id := s.ConversationID()

	require.NoError(t, s.DeleteConversation(id))
	assert.Empty(t, s.ConversationID())
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, conversations.List())
}

func TestConversationOps_WithoutHistory(t *testing.T) {
	s, _ := newSession(t, &ollamaServer{}, nil)

	_, err := s.OpenConversation("conv_x")
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.ErrorIs(t, s.DeleteConversation("conv_x"), ErrNoHistory)

	conv, err := s.NewConversation()
	require.NoError(t, err)
	assert.Empty(t, conv.ID)
}

// =============================================================================
// ERROR DESCRIPTIONS
// =============================================================================

func TestDescribe(t *testing.T) {
	assert.Empty(t, Describe(nil))
	assert.Contains(t, Describe(ErrBusy), "Espera")
	assert.Contains(t, Describe(ErrNoModel), "modelo")
	assert.Contains(t, Describe(ollama.ErrNotRunning), "ollama serve")
	assert.Contains(t, Describe(ollama.ErrModelNotFound), "no está instalado")
	assert.Contains(t, Describe(ollama.ErrCanceled), "cancelada")
	assert.Equal(t, "Error: boom", Describe(errors.New("boom")))
}
