// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer holds the latest partial reply between frames. Send calls
// Write from its goroutine after every fragment; the Update loop calls Flush
// on each tick. A flush happens once batchSize updates accumulated or the
// frame interval elapsed, whichever comes first.
type StreamingBuffer struct {
	mu        sync.Mutex
	latest    string
	pending   int
	lastFlush time.Time

	batchSize     int
	minFlushDelay time.Duration
}

// NewStreamingBuffer returns a buffer flushing every 15 fragments or at
// 30fps.
func NewStreamingBuffer() *StreamingBuffer {
	return NewStreamingBufferWithConfig(15, 30)
}

// NewStreamingBufferWithConfig returns a buffer with custom thresholds.
// Out-of-range values fall back to the defaults.
func NewStreamingBufferWithConfig(batchSize, maxFPS int) *StreamingBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &StreamingBuffer{
		batchSize:     batchSize,
		minFlushDelay: time.Second / time.Duration(maxFPS),
		lastFlush:     time.Now(),
	}
}

// Write records the accumulated reply after a fragment.
func (sb *StreamingBuffer) Write(partial string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.latest = partial
	sb.pending++
}

// Flush returns the latest reply if a frame is due.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.pending == 0 {
		return "", false
	}
	if sb.pending < sb.batchSize && time.Since(sb.lastFlush) < sb.minFlushDelay {
		return "", false
	}
	return sb.flushLocked(), true
}

// ForceFlush returns the latest reply if anything arrived since the last
// flush, ignoring the thresholds.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.pending == 0 {
		return "", false
	}
	return sb.flushLocked(), true
}

func (sb *StreamingBuffer) flushLocked() string {
	sb.pending = 0
	sb.lastFlush = time.Now()
	return sb.latest
}

// Pending returns the number of writes since the last flush.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.pending
}

// Reset clears the buffer for a new reply.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.latest = ""
	sb.pending = 0
	sb.lastFlush = time.Now()
}

// streamTickCmd schedules the next frame.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
