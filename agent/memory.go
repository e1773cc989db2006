package agent

import (
	"sync"

	"github.com/NethermindEth/masp/core"
)

// MaxMemoryEntries is how many actions an agent remembers
const MaxMemoryEntries = 200

// Memory is a bounded ring of an agent's accepted actions
type Memory struct {
	mu      sync.RWMutex
	entries []core.MemoryEntry
	limit   int
}

// NewMemory creates a memory holding at most limit entries.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = MaxMemoryEntries
	}
	return &Memory{entries: make([]core.MemoryEntry, 0, limit), limit: limit}
}

// Add appends an entry, evicting the oldest once full.
func (m *Memory) Add(e core.MemoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.limit {
		m.entries = m.entries[1:]
	}
}

// Recent returns a copy of the newest n entries, oldest first.
func (m *Memory) Recent(n int) []core.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if n >= 0 && len(m.entries) > n {
		start = len(m.entries) - n
	}
	out := make([]core.MemoryEntry, len(m.entries)-start)
	copy(out, m.entries[start:])
	return out
}

// Count returns how many remembered entries have the given action.
func (m *Memory) Count(action core.Action) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Len returns the number of entries held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
