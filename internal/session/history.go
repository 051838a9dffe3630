// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"sync"
)

// HistoryStore persists long-term conversation history per user. Turns are
// appended in order and never mutated. Implementations must be safe for
// concurrent use.
type HistoryStore interface {
	// Append stores turns at the end of the user's history.
	Append(ctx context.Context, userID string, turns []Turn) error
	// Recent returns up to limit of the most recent turns, oldest first.
	Recent(ctx context.Context, userID string, limit int) ([]Turn, error)
	// Count returns the number of stored turns for the user.
	Count(ctx context.Context, userID string) (int, error)
}

// MemoryHistory is the in-process HistoryStore. It is the default backend
// and the fallback when an external store fails, so spilled turns are never
// lost.
type MemoryHistory struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryHistory returns an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{turns: make(map[string][]Turn)}
}

func (m *MemoryHistory) Append(_ context.Context, userID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[userID] = append(m.turns[userID], turns...)
	return nil
}

func (m *MemoryHistory) Recent(_ context.Context, userID string, limit int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.turns[userID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Turn, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

func (m *MemoryHistory) Count(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns[userID]), nil
}
