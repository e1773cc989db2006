package simulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/store"
)

// Restore rebuilds agents, the feed window and counters from a snapshot.
// Agents that can no longer be built are logged and skipped. It must be
// called before Start on an engine with no agents.
func (e *Engine) Restore(ctx context.Context, snap *store.Snapshot) error {
	if snap == nil {
		return nil
	}
	if e.registry.Len() > 0 {
		return fmt.Errorf("restore into a populated engine: %w", ErrAgentExists)
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	for _, rec := range snap.Agents {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := e.buildAgent(rec.Config)
		if err != nil {
			e.log.Error("restore agent "+rec.Name, "%v", err)
			continue
		}
		a.Reputation = rec.Reputation
		if !rec.CreatedAt.IsZero() {
			a.CreatedAt = rec.CreatedAt
		}
		if err := e.registry.Register(a); err != nil {
			e.log.Error("restore agent "+rec.Name, "%v", err)
		}
	}

	feed := snap.Feed
	if len(feed) > MaxFeedEntries {
		feed = feed[len(feed)-MaxFeedEntries:]
	}
	e.feed = make([]*core.FeedEntry, 0, len(feed))
	var maxID int64
	for _, entry := range feed {
		entry := entry.Clone()
		if entry.ViewedBy == nil {
			entry.ViewedBy = map[string]bool{}
		}
		e.feed = append(e.feed, &entry)
		if entry.ID > maxID {
			maxID = entry.ID
		}
		if a, ok := e.registry.Get(entry.Agent); ok {
			a.Remember(core.MemoryEntry{Step: entry.Step, Action: entry.Action, Target: entry.Target})
		}
	}

	e.nextID = maxID
	e.vouches = make(map[string]bool)
	if st := snap.State; st != nil {
		e.step = st.Step
		e.totalAccusations = st.TotalAccusations
		if st.NextEntryID > e.nextID {
			e.nextID = st.NextEntryID
		}
		for _, key := range st.Vouches {
			if strings.Contains(key, "->") {
				e.vouches[key] = true
			}
		}
	}

	e.log.Engine("restore", "%d agents, %d feed entries, step %d", e.registry.Len(), len(e.feed), e.step)
	return nil
}
