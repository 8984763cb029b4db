// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazily consumed sequence of assistant content fragments read
// from a streaming /api/chat response.
//
// The body is decoded as UTF-8 incrementally, so a character split across
// network reads is reassembled before any line is parsed. Lines are split on
// '\n'; blank lines are skipped, and a line that is not valid JSON is logged
// and skipped. A record with done=true ends the stream successfully even if
// more bytes follow. A record carrying an "error" field ends it with a
// TransportError.
//
// Next must be called from one goroutine. Close may be called from any
// goroutine at any time and aborts the underlying request.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *bufio.Reader
	logger *log.Logger

	closed    atomic.Bool
	closeOnce sync.Once

	finished bool
	err      error // terminal result; io.EOF on success

	mu    sync.Mutex
	stats StreamStats
}

func newStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, model string, logger *log.Logger) *Stream {
	decoded := transform.NewReader(body, unicode.UTF8.NewDecoder())
	return &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		reader: bufio.NewReaderSize(decoded, 32<<10),
		logger: logger,
		stats: StreamStats{
			Model:     model,
			StartTime: time.Now(),
		},
	}
}

// Next returns the next non-empty content fragment. It returns io.EOF once
// the stream completed successfully and a *TransportError if it failed.
// After a terminal result every further call returns the same result.
func (s *Stream) Next() (string, error) {
	for {
		if s.finished {
			return "", s.err
		}
		if s.closed.Load() {
			s.finish(s.canceledError())
			continue
		}

		line, readErr := s.reader.ReadBytes('\n')
		if len(line) > 0 {
			fragment, ok := s.handleLine(line)
			if ok {
				return fragment, nil
			}
			if s.finished {
				continue
			}
		}

		switch {
		case readErr == nil:
			continue
		case readErr == io.EOF:
			// The server closed the body without a done record. Everything
			// delivered so far stands, so treat it as completion.
			s.logger.Debug("chat stream ended without done record")
			s.finish(io.EOF)
		case s.closed.Load() || s.ctx.Err() != nil:
			s.finish(s.canceledError())
		default:
			s.finish(&TransportError{Type: ErrTypeRead, Message: "stream read failed", Cause: readErr})
		}
	}
}

// handleLine parses one NDJSON line. It reports ok when the line produced a
// fragment; it may also finish the stream.
func (s *Stream) handleLine(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", false
	}

	var rec streamRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		s.logger.Warn("skipping malformed stream record", "err", err, "bytes", len(line))
		return "", false
	}

	if rec.Error != "" {
		s.finish(&TransportError{Type: ErrTypeServer, Message: rec.Error})
		return "", false
	}

	content := rec.Message.Content
	if content != "" {
		s.mu.Lock()
		if s.stats.Fragments == 0 {
			s.stats.TTFT = time.Since(s.stats.StartTime)
		}
		s.stats.Fragments++
		s.mu.Unlock()
	}

	if rec.Done {
		s.recordFinal(rec)
		s.finish(io.EOF)
	}

	// A done record may still carry a last fragment; finish already latched
	// io.EOF for the following call.
	return content, content != ""
}

func (s *Stream) recordFinal(rec streamRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Model != "" {
		s.stats.Model = rec.Model
	}
	s.stats.DoneReason = rec.DoneReason
	s.stats.TotalDuration = time.Duration(rec.TotalDuration)
	s.stats.LoadDuration = time.Duration(rec.LoadDuration)
	s.stats.PromptEvalDuration = time.Duration(rec.PromptEvalDuration)
	s.stats.EvalDuration = time.Duration(rec.EvalDuration)
	s.stats.PromptTokens = rec.PromptEvalCount
	s.stats.CompletionTokens = rec.EvalCount
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err

	s.mu.Lock()
	s.stats.EndTime = time.Now()
	s.mu.Unlock()

	s.release()
	if err != io.EOF {
		s.logger.Debug("chat stream failed", "err", err)
	}
}

func (s *Stream) canceledError() error {
	if !s.closed.Load() && errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		return &TransportError{Type: ErrTypeTimeout, Message: "stream timed out", Cause: context.DeadlineExceeded}
	}
	return &TransportError{Type: ErrTypeCanceled, Message: "stream canceled", Cause: context.Canceled}
}

func (s *Stream) release() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.body.Close()
	})
}

// Close aborts the request if it is still running and releases the body.
// Fragments already returned remain valid. Close is idempotent.
func (s *Stream) Close() error {
	s.closed.Store(true)
	s.release()
	return nil
}

// Stats returns timing and token counts. Durations reported by the server
// are only set once the done record arrived.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// =============================================================================
// CHANNEL ADAPTER
// =============================================================================

// Fragment is one element of the channel returned by Fragments. The final
// element carries Err when the stream failed; a clean end just closes the
// channel.
type Fragment struct {
	Content string
	Err     error
}

// Fragments pumps the stream into a channel for select-based consumers. The
// channel is unbuffered, so a slow reader slows the network read rather than
// queueing fragments. Cancelling ctx closes the stream and the channel.
func (s *Stream) Fragments(ctx context.Context) <-chan Fragment {
	ch := make(chan Fragment)

	stop := context.AfterFunc(ctx, func() { s.Close() })

	go func() {
		defer close(ch)
		defer stop()

		for {
			content, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			f := Fragment{Content: content, Err: err}
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return ch
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	Model      string
	DoneReason string

	StartTime time.Time
	EndTime   time.Time
	TTFT      time.Duration // time to first fragment, measured locally

	// Reported by Ollama on the done record.
	TotalDuration      time.Duration
	LoadDuration       time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration
	PromptTokens       int
	CompletionTokens   int

	Fragments int
}

// TokensPerSecond returns the generation speed reported by the server.
func (s StreamStats) TokensPerSecond() float64 {
	if s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// Format returns a one-line summary for status bars.
func (s StreamStats) Format() string {
	total := s.TotalDuration
	if total == 0 && !s.EndTime.IsZero() {
		total = s.EndTime.Sub(s.StartTime)
	}
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s | TTFT %dms",
		total.Round(10*time.Millisecond), s.CompletionTokens, s.TokensPerSecond(), s.TTFT.Milliseconds())
}
