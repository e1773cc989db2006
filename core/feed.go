package core

import "time"

// FeedEntry is one accepted action in the shared feed
type FeedEntry struct {
	ID               int64     `json:"id"`
	Step             int64     `json:"step"`
	Timestamp        time.Time `json:"timestamp"`
	Agent            string    `json:"agent"`
	Wallet           string    `json:"wallet"`
	Action           Action    `json:"action"`
	Target           string    `json:"target,omitempty"`
	TargetPostID     *int64    `json:"target_post_id,omitempty"`
	ParentPostID     *int64    `json:"parent_post_id,omitempty"`
	Content          string    `json:"content"`
	Reasoning        string    `json:"reasoning"`
	Likes            int       `json:"likes"`
	Comments         int       `json:"comments"`
	Views            int       `json:"views"`
	AccusationCount  int       `json:"accusation_count"`
	ChainTxHash      string    `json:"chain_tx_hash,omitempty"`
	ChainContentHash string    `json:"chain_content_hash,omitempty"`

	// ViewedBy holds the names of agents that have been shown this entry.
	ViewedBy map[string]bool `json:"-"`
}

// Clone returns a copy of e that shares no mutable state with it.
func (e FeedEntry) Clone() FeedEntry {
	if e.ViewedBy != nil {
		viewers := make(map[string]bool, len(e.ViewedBy))
		for k, v := range e.ViewedBy {
			viewers[k] = v
		}
		e.ViewedBy = viewers
	}
	if e.TargetPostID != nil {
		e.TargetPostID = PostID(*e.TargetPostID)
	}
	if e.ParentPostID != nil {
		e.ParentPostID = PostID(*e.ParentPostID)
	}
	return e
}

// Viewers returns the names in ViewedBy.
func (e FeedEntry) Viewers() []string {
	out := make([]string, 0, len(e.ViewedBy))
	for name, ok := range e.ViewedBy {
		if ok {
			out = append(out, name)
		}
	}
	return out
}

// ChainEvent records a ledger receipt for an engine action
type ChainEvent struct {
	Action      string    `json:"action"`
	Agent       string    `json:"agent"`
	Target      string    `json:"target,omitempty"`
	FeedEntryID int64     `json:"feed_entry_id,omitempty"`
	TxHash      string    `json:"tx_hash,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Mode        string    `json:"mode"`
	Timestamp   time.Time `json:"timestamp"`
}

// SimulationState is the persisted engine counters
type SimulationState struct {
	Step             int64    `json:"step"`
	TotalAccusations int64    `json:"total_accusations"`
	NextEntryID      int64    `json:"next_entry_id"`
	Vouches          []string `json:"vouches"`
}

// DecisionContext is the snapshot an agent decides against.
// It contains copies only; deciders cannot reach engine state through it.
type DecisionContext struct {
	RecentPosts      []FeedEntry   `json:"recent_posts"`
	Agents           []RankedAgent `json:"agents"`
	Self             AgentSummary  `json:"self"`
	Step             int64         `json:"step"`
	TotalAccusations int64         `json:"total_accusations"`
}
