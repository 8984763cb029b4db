// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// Client message types.
const (
	WSTypeChat   = "chat"
	WSTypeCancel = "cancel"
	WSTypePing   = "ping"
)

// Server message types.
const (
	WSTypeFragment = "fragment"
	WSTypeDone     = "done"
	WSTypeError    = "error"
	WSTypePong     = "pong"
)

// WSClientMessage is a frame sent by the browser. Messages carries the
// conversation without a system message; the server composes that from the
// current knowledge store.
type WSClientMessage struct {
	Type     string           `json:"type"`
	Model    string           `json:"model,omitempty"`
	Messages []ollama.Message `json:"messages,omitempty"`

	// ConversationID saves the exchange into an existing conversation.
	ConversationID string `json:"conversationId,omitempty"`
	// Save creates a conversation when ConversationID is empty.
	Save bool `json:"save,omitempty"`
}

// WSServerMessage is a frame sent to the browser.
type WSServerMessage struct {
	Type           string   `json:"type"`
	Content        string   `json:"content,omitempty"`
	Stats          *WSStats `json:"stats,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	Error          string   `json:"error,omitempty"`
	Code           string   `json:"code,omitempty"`
}

// WSStats summarises a finished reply.
type WSStats struct {
	Model            string  `json:"model"`
	Fragments        int     `json:"fragments"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TokensPerSecond  float64 `json:"tokensPerSecond"`
	DurationMs       int64   `json:"durationMs"`
	TTFTMs           int64   `json:"ttftMs"`
}

// Error codes sent with WSTypeError.
const (
	WSCodeBadRequest    = "bad_request"
	WSCodeBusy          = "busy"
	WSCodeNotRunning    = "not_running"
	WSCodeTimeout       = "timeout"
	WSCodeModelNotFound = "model_not_found"
	WSCodeCanceled      = "canceled"
	WSCodeStream        = "stream_error"
)

const wsWriteTimeout = 10 * time.Second

// ============================================================================
// CONNECTION
// ============================================================================

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg WSServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) sendError(code, message string) error {
	return c.send(WSServerMessage{Type: WSTypeError, Code: code, Error: message})
}

func (s *Server) upgrader() *websocket.Upgrader {
	cors := DefaultCORSConfig(s.opts.AllowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			return cors.isOriginAllowed(origin)
		},
	}
}

// handleChatWebSocket runs one chat connection. At most one reply streams at
// a time; a cancel frame or a disconnect stops it.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "ip", GetClientIP(r), "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxRequestBodySize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	s.logger.Debug("websocket connected", "ip", GetClientIP(r))

	var (
		mu           sync.Mutex
		streamCancel context.CancelFunc
		wg           sync.WaitGroup
	)

	defer func() {
		cancel()
		wg.Wait()
		s.logger.Debug("websocket closed", "ip", GetClientIP(r))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "err", err)
			}
			return
		}

		var msg WSClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = ws.sendError(WSCodeBadRequest, "invalid JSON frame")
			continue
		}

		switch msg.Type {
		case WSTypeChat:
			mu.Lock()
			busy := streamCancel != nil
			mu.Unlock()
			if busy {
				_ = ws.sendError(WSCodeBusy, "a reply is already streaming")
				continue
			}
			if err := validateChat(msg); err != nil {
				_ = ws.sendError(WSCodeBadRequest, err.Error())
				continue
			}

			streamCtx, stop := context.WithCancel(ctx)
			mu.Lock()
			streamCancel = stop
			mu.Unlock()

			wg.Add(1)
			go func(msg WSClientMessage) {
				defer wg.Done()
				final := s.streamChat(streamCtx, ws, msg)
				stop()
				// The closing frame goes out before the next chat is accepted.
				if final != nil {
					_ = ws.send(*final)
				}
				mu.Lock()
				streamCancel = nil
				mu.Unlock()
			}(msg)

		case WSTypeCancel:
			mu.Lock()
			if streamCancel != nil {
				streamCancel()
			}
			mu.Unlock()

		case WSTypePing:
			_ = ws.send(WSServerMessage{Type: WSTypePong})

		default:
			_ = ws.sendError(WSCodeBadRequest, "unknown frame type: "+msg.Type)
		}
	}
}

func validateChat(msg WSClientMessage) error {
	if strings.TrimSpace(msg.Model) == "" {
		return errors.New("model is required")
	}
	if len(msg.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	if len(msg.Messages) > MaxMessageCount {
		return errors.New("too many messages")
	}
	for _, m := range msg.Messages {
		switch m.Role {
		case ollama.RoleUser, ollama.RoleAssistant, ollama.RoleSystem:
		default:
			return errors.New("invalid role: " + m.Role)
		}
	}
	last := msg.Messages[len(msg.Messages)-1]
	if last.Role != ollama.RoleUser || strings.TrimSpace(last.Content) == "" {
		return errors.New("last message must be a non-empty user message")
	}
	return nil
}

// streamChat forwards fragments to ws and returns the closing frame, or nil
// when the connection is gone.
func (s *Server) streamChat(ctx context.Context, ws *wsConn, msg WSClientMessage) *WSServerMessage {
	history := []ollama.Message{s.opts.Composer.BuildSystemMessage()}
	for _, m := range msg.Messages {
		if m.Role != ollama.RoleSystem {
			history = append(history, m)
		}
	}

	stream, err := s.opts.Client.ChatStream(ctx, msg.Model, history)
	if err != nil {
		return streamErrorFrame(err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("websocket stream failed", "model", msg.Model, "err", err)
			return streamErrorFrame(err)
		}
		reply.WriteString(fragment)
		if err := ws.send(WSServerMessage{Type: WSTypeFragment, Content: fragment}); err != nil {
			return nil
		}
	}

	done := &WSServerMessage{Type: WSTypeDone, Stats: toWSStats(stream.Stats())}
	if id, err := s.saveExchange(msg, reply.String()); err != nil {
		s.logger.Error("conversation save failed", "id", msg.ConversationID, "err", err)
	} else {
		done.ConversationID = id
	}
	return done
}

// saveExchange stores the request history plus the reply when the client
// asked for it.
func (s *Server) saveExchange(msg WSClientMessage, reply string) (string, error) {
	if s.opts.Conversations == nil || (msg.ConversationID == "" && !msg.Save) {
		return msg.ConversationID, nil
	}

	stored := make([]storage.Message, 0, len(msg.Messages)+1)
	title := ""
	for _, m := range msg.Messages {
		if m.Role == ollama.RoleSystem {
			continue
		}
		if title == "" && m.Role == ollama.RoleUser {
			title = m.Content
		}
		stored = append(stored, storage.Message{Role: m.Role, Content: m.Content})
	}
	stored = append(stored, storage.Message{Role: ollama.RoleAssistant, Content: reply})

	id := msg.ConversationID
	if id == "" {
		conv, err := s.opts.Conversations.Create(title)
		if err != nil {
			return "", err
		}
		id = conv.ID
	}
	return id, s.opts.Conversations.Update(id, stored, title)
}

func streamErrorFrame(err error) *WSServerMessage {
	code := WSCodeStream
	switch {
	case ollama.IsNotRunning(err):
		code = WSCodeNotRunning
	case ollama.IsTimeout(err):
		code = WSCodeTimeout
	case ollama.IsModelNotFound(err):
		code = WSCodeModelNotFound
	case ollama.IsCanceled(err):
		code = WSCodeCanceled
	}
	return &WSServerMessage{Type: WSTypeError, Code: code, Error: err.Error()}
}

func toWSStats(st ollama.StreamStats) *WSStats {
	duration := st.TotalDuration
	if duration == 0 && !st.EndTime.IsZero() {
		duration = st.EndTime.Sub(st.StartTime)
	}
	return &WSStats{
		Model:            st.Model,
		Fragments:        st.Fragments,
		PromptTokens:     st.PromptTokens,
		CompletionTokens: st.CompletionTokens,
		TokensPerSecond:  st.TokensPerSecond(),
		DurationMs:       duration.Milliseconds(),
		TTFTMs:           st.TTFT.Milliseconds(),
	}
}
