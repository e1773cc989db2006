package store

import (
	"context"
	"sort"
	"sync"

	"github.com/NethermindEth/masp/core"
)

// Memory keeps everything in process. Used by tests and the headless step command.
type Memory struct {
	mu     sync.Mutex
	agents map[string]AgentRecord
	order  []string
	feed   map[int64]core.FeedEntry
	state  *core.SimulationState
}

func NewMemory() *Memory {
	return &Memory{
		agents: make(map[string]AgentRecord),
		feed:   make(map[int64]core.FeedEntry),
	}
}

func (m *Memory) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{}
	for _, name := range m.order {
		snap.Agents = append(snap.Agents, m.agents[name])
	}

	ids := make([]int64, 0, len(m.feed))
	for id := range m.feed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > MaxFeedWindow {
		ids = ids[len(ids)-MaxFeedWindow:]
	}
	for _, id := range ids {
		snap.Feed = append(snap.Feed, m.feed[id].Clone())
	}

	if m.state != nil {
		st := *m.state
		st.Vouches = append([]string(nil), m.state.Vouches...)
		snap.State = &st
	}
	return snap, nil
}

func (m *Memory) UpsertAgent(_ context.Context, rec AgentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[rec.Name]; !ok {
		m.order = append(m.order, rec.Name)
	}
	m.agents[rec.Name] = rec
	return nil
}

func (m *Memory) DeleteAgent(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[name]; !ok {
		return nil
	}
	delete(m.agents, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) AppendFeedEntry(_ context.Context, entry core.FeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed[entry.ID] = entry.Clone()
	return nil
}

func (m *Memory) UpdateFeedCounters(_ context.Context, entry core.FeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.feed[entry.ID]; ok {
		m.feed[entry.ID] = entry.Clone()
	}
	return nil
}

func (m *Memory) SaveState(_ context.Context, state core.SimulationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.Vouches = append([]string(nil), state.Vouches...)
	m.state = &state
	return nil
}

func (m *Memory) ClearFeed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed = make(map[int64]core.FeedEntry)
	return nil
}

func (m *Memory) DeleteFeedEntries(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.feed, id)
	}
	return nil
}
