// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is the local Ollama API. The explicit IPv4 address avoids
// localhost resolving to ::1 where Ollama is not listening.
const DefaultBaseURL = "http://127.0.0.1:11434"

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamTimeout bounds the wait for response headers on a streaming
	// request, which includes loading the model (default: 2m). Once
	// fragments flow, only the caller's context limits the stream.
	StreamTimeout time.Duration

	// Logger receives skipped-record warnings and request events.
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       DefaultBaseURL,
		Timeout:       30 * time.Second,
		StreamTimeout: 2 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Ollama HTTP API. It holds no per-conversation state and
// is safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	stream, err := client.ChatStream(ctx, "llama3.2", history)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    fragment, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
type Client struct {
	config       ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       *log.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client, filling zero fields of
// config with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = 2 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.StreamTimeout

	return &Client{
		config:       cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{Transport: transport},
		logger:       logger,
	}
}

// BaseURL returns the API base URL in use.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &TransportError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyDoError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Type:       ErrTypeStatus,
			Message:    "unexpected status from Ollama",
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves the installed models. A server with no models yields
// an empty, non-nil slice.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyDoError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, "failed to list models")
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &TransportError{Type: ErrTypeInvalidResponse, Message: "failed to decode model list", Cause: err}
	}
	if result.Models == nil {
		result.Models = []ModelInfo{}
	}
	return result.Models, nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream starts a streaming chat completion over history and returns a
// Stream of content fragments. history must start with the system message.
//
// A request that cannot be sent or is answered with a non-2xx status fails
// here, before any fragment exists. The returned Stream must be closed; it
// is also closed automatically once it reaches its end.
func (c *Client) ChatStream(ctx context.Context, model string, history []Message) (*Stream, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ErrEmptyModel
	}
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}
	if history[0].Role != RoleSystem {
		return nil, ErrMissingSystem
	}

	body, err := json.Marshal(ChatRequest{Model: model, Messages: history, Stream: true})
	if err != nil {
		return nil, &TransportError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &TransportError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	c.logger.Debug("chat stream starting", "model", model, "messages", len(history))

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, classifyDoError(streamCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer drainAndClose(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			terr := statusError(resp, "model not found")
			terr.Type = ErrTypeModelNotFound
			return nil, terr
		}
		return nil, statusError(resp, "chat request failed")
	}

	return newStream(streamCtx, cancel, resp.Body, model, c.logger), nil
}

// StreamChat is the callback form of ChatStream: onFragment is invoked
// synchronously for each fragment, in arrival order. It returns nil once the
// server signals completion.
func (c *Client) StreamChat(ctx context.Context, model string, history []Message, onFragment func(string)) error {
	stream, err := c.ChatStream(ctx, model, history)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		onFragment(fragment)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// statusError builds a TransportError from a failure response, preferring
// the server's own error text.
func statusError(resp *http.Response, fallback string) *TransportError {
	msg := fallback
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &TransportError{Type: ErrTypeStatus, Message: msg, StatusCode: resp.StatusCode}
}

// drainAndClose lets the connection be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}
