package core

// AgentKind tags which decision strategy an agent runs.
type AgentKind string

const (
	KindHosted   AgentKind = "hosted"   // in-process scored heuristic
	KindExternal AgentKind = "external" // remote endpoint speaking the decision protocol
	KindLLM      AgentKind = "llm"      // model-backed via a chat completion provider
)

// InitialReputation is the reputation every agent starts with.
const InitialReputation = 100.0

// MemoryEntry is one remembered action of an agent
type MemoryEntry struct {
	Step   int64  `json:"step"`
	Action Action `json:"action"`
	Target string `json:"target,omitempty"`
}

// AgentSummary is the read-only view an agent receives about itself
type AgentSummary struct {
	Name                string        `json:"name"`
	Wallet              string        `json:"wallet"`
	Kind                AgentKind     `json:"kind"`
	Reputation          float64       `json:"reputation"`
	TotalPosts          int           `json:"total_posts"`
	AccusationsMade     int           `json:"accusations_made"`
	AccusationsReceived int           `json:"accusations_received"`
	RecentActions       []MemoryEntry `json:"recent_actions"`
}

// RankedAgent is a leaderboard row
type RankedAgent struct {
	Rank       int       `json:"rank"`
	Name       string    `json:"name"`
	Wallet     string    `json:"wallet"`
	Kind       AgentKind `json:"kind"`
	Reputation float64   `json:"reputation"`
}
