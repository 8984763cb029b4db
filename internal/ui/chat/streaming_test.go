// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// STREAMING BUFFER TESTS
// =============================================================================

func TestStreamingBuffer_FlushOnBatchSize(t *testing.T) {
	sb := NewStreamingBufferWithConfig(3, 1) // 1fps: only the batch size can trigger

	sb.Write("a")
	sb.Write("ab")
	if _, ok := sb.Flush(); ok {
		t.Fatal("Flush() before batch size should not flush")
	}

	sb.Write("abc")
	got, ok := sb.Flush()
	if !ok || got != "abc" {
		t.Fatalf("Flush() = %q, %v; want %q, true", got, ok, "abc")
	}
	if sb.Pending() != 0 {
		t.Errorf("Pending() after flush = %d, want 0", sb.Pending())
	}
}

func TestStreamingBuffer_FlushOnInterval(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 60)
	sb.Write("hola")

	time.Sleep(30 * time.Millisecond)
	got, ok := sb.Flush()
	if !ok || got != "hola" {
		t.Fatalf("Flush() = %q, %v; want %q, true", got, ok, "hola")
	}
}

func TestStreamingBuffer_EmptyNeverFlushes(t *testing.T) {
	sb := NewStreamingBuffer()
	time.Sleep(40 * time.Millisecond)
	if _, ok := sb.Flush(); ok {
		t.Error("empty buffer flushed")
	}
	if _, ok := sb.ForceFlush(); ok {
		t.Error("empty buffer force-flushed")
	}
}

func TestStreamingBuffer_ForceFlushAndReset(t *testing.T) {
	sb := NewStreamingBufferWithConfig(100, 1)
	sb.Write("parcial")

	got, ok := sb.ForceFlush()
	if !ok || got != "parcial" {
		t.Fatalf("ForceFlush() = %q, %v", got, ok)
	}

	sb.Write("otra")
	sb.Reset()
	if sb.Pending() != 0 {
		t.Errorf("Pending() after Reset = %d", sb.Pending())
	}
}

func TestStreamingBuffer_ConfigFallbacks(t *testing.T) {
	sb := NewStreamingBufferWithConfig(0, 500)
	if sb.batchSize != 15 {
		t.Errorf("batchSize = %d, want 15", sb.batchSize)
	}
	if sb.minFlushDelay != time.Second/30 {
		t.Errorf("minFlushDelay = %v, want %v", sb.minFlushDelay, time.Second/30)
	}
}

func TestStreamingBuffer_ConcurrentWrites(t *testing.T) {
	sb := NewStreamingBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sb.Write("x")
				sb.Flush()
			}
		}()
	}
	wg.Wait()
	sb.ForceFlush()
	if sb.Pending() != 0 {
		t.Errorf("Pending() = %d after final flush", sb.Pending())
	}
}

// =============================================================================
// CANCEL MANAGER TESTS
// =============================================================================

func TestCancelManager(t *testing.T) {
	cm := newCancelManager()
	if cm.cancel() {
		t.Error("cancel() with nothing stored reported true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cm.set(cancel)
	if !cm.cancel() {
		t.Error("cancel() reported false")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
	if cm.cancel() {
		t.Error("second cancel() reported true")
	}
}
