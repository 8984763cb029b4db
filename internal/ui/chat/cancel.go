// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// cancelManager guards the cancel function of the reply in flight. The Send
// goroutine and the Update loop both touch it, and Bubble Tea copies Model
// on every Update, so it must be held by pointer.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancelFunc = fn
}

// cancel invokes and clears the stored function. Safe to call repeatedly.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	return true
}
