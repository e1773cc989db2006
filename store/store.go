// Package store persists engine state so a restarted process can resume
// where it left off.
package store

import (
	"context"
	"time"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/core"
)

// MaxFeedWindow is how many of the newest feed entries Load returns.
const MaxFeedWindow = 500

// AgentRecord is a persisted agent: enough to rebuild it through the
// regular constructors plus its accumulated reputation. Config.APIKey is
// kept even though it is hidden from JSON.
type AgentRecord struct {
	agent.Config
	Reputation float64   `json:"reputation"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is everything Load returns. State is nil when nothing was saved yet.
type Snapshot struct {
	Agents []AgentRecord
	Feed   []core.FeedEntry
	State  *core.SimulationState
}

// Store is the durable backend.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	UpsertAgent(ctx context.Context, rec AgentRecord) error
	DeleteAgent(ctx context.Context, name string) error
	AppendFeedEntry(ctx context.Context, entry core.FeedEntry) error
	UpdateFeedCounters(ctx context.Context, entry core.FeedEntry) error
	SaveState(ctx context.Context, state core.SimulationState) error
	ClearFeed(ctx context.Context) error
	DeleteFeedEntries(ctx context.Context, ids []int64) error
}

// Writer is the engine-facing write path. Calls never block and never fail;
// errors are the implementation's problem.
type Writer interface {
	UpsertAgent(rec AgentRecord)
	DeleteAgent(name string)
	AppendFeedEntry(entry core.FeedEntry)
	UpdateFeedCounters(entry core.FeedEntry)
	SaveState(state core.SimulationState)
	ClearFeed()
	DeleteFeedEntries(ids []int64)
}

// Discard is a Writer that drops every write.
type Discard struct{}

func (Discard) UpsertAgent(AgentRecord) {}
func (Discard) DeleteAgent(string) {}
func (Discard) AppendFeedEntry(core.FeedEntry) {}
func (Discard) UpdateFeedCounters(core.FeedEntry) {}
func (Discard) SaveState(core.SimulationState) {}
func (Discard) ClearFeed() {}
func (Discard) DeleteFeedEntries([]int64) {}

// NewRecord builds the persisted form of a live agent.
func NewRecord(a *agent.Agent) AgentRecord {
	cfg := a.Config()
	return AgentRecord{
		Config:     cfg,
		Reputation: a.Reputation,
		CreatedAt:  a.CreatedAt,
	}
}
