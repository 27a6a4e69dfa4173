package presence

import (
	"context"
	"sort"
	"sync"
)

// Memory is the process-local Registry.
type Memory struct {
	mu    sync.RWMutex
	conns map[uint]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{conns: make(map[uint]map[string]struct{})}
}

func (m *Memory) Add(_ context.Context, userID uint, connID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		m.conns[userID] = set
	}
	if _, dup := set[connID]; dup {
		return false, nil
	}
	set[connID] = struct{}{}
	return len(set) == 1, nil
}

func (m *Memory) Remove(_ context.Context, userID uint, connID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.conns[userID]
	if !ok {
		return false, nil
	}
	if _, present := set[connID]; !present {
		return false, nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(m.conns, userID)
		return true, nil
	}
	return false, nil
}

func (m *Memory) IsOnline(_ context.Context, userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userID]) > 0
}

func (m *Memory) Connections(_ context.Context, userID uint) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.conns[userID]))
	for id := range m.conns[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) OnlineCount(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
