// Package checkpoint provides graph.Saver implementations: a volatile
// in-memory store and a durable SQLite store.
package checkpoint

import (
	"context"
	"sync"

	"github.com/user/gatekeep/internal/graph"
)

// Memory is a volatile, process-local saver. Threads vanish on restart;
// suitable for the terminal driver and tests.
type Memory struct {
	mu         sync.RWMutex
	byThreadID map[string]*graph.Checkpoint
}

// NewMemory creates an empty in-memory saver.
func NewMemory() *Memory {
	return &Memory{byThreadID: make(map[string]*graph.Checkpoint)}
}

// Get returns the thread's checkpoint, or (nil, nil) when absent.
func (m *Memory) Get(_ context.Context, threadID string) (*graph.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.byThreadID[threadID]
	if !ok {
		return nil, nil
	}
	copied := *cp
	return &copied, nil
}

// Put stores the checkpoint, replacing any previous one for the thread.
func (m *Memory) Put(_ context.Context, cp *graph.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *cp
	m.byThreadID[cp.ThreadID] = &copied
	return nil
}

// Delete removes the thread's checkpoint. Deleting an absent thread is a no-op.
func (m *Memory) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byThreadID, threadID)
	return nil
}
