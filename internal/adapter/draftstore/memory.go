package draftstore

import (
	"context"
	"sync"

	"github.com/semmidev/phylaxctl/internal/domain"
)

// Memory is a process-local draft store.
type Memory struct {
	mu     sync.Mutex
	drafts map[string]domain.SavedDraft
	saves  int
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string]domain.SavedDraft)}
}

func (m *Memory) Load(_ context.Context, key string) (domain.SavedDraft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[key]
	return d, ok, nil
}

func (m *Memory) Save(_ context.Context, key string, d domain.SavedDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[key] = d
	m.saves++
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
