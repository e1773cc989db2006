// Package protocol defines the wire contract between the engine and remote
// decision makers: envelopes, decision validation and the capability probe.
package protocol

import (
	"github.com/NethermindEth/masp/core"
)

const (
	// Version is the protocol version string the engine speaks.
	Version = "masp/1.0"
	// VersionHeader carries Version on every outbound request.
	VersionHeader = "X-MASP-Protocol"

	TypeDecisionRequest  = "decision_request"
	TypeCapabilityProbe  = "capabilities_probe"
	MaxContentLength     = 500
	MaxReasoningLength   = 200
	MaxRecentActionsSent = 8
)

// AgentInfo describes the requesting agent inside a decision request
type AgentInfo struct {
	Name                string             `json:"name"`
	Wallet              string             `json:"wallet"`
	Reputation          float64            `json:"reputation"`
	TotalPosts          int                `json:"total_posts"`
	AccusationsMade     int                `json:"accusations_made"`
	AccusationsReceived int                `json:"accusations_received"`
	RecentActions       []core.MemoryEntry `json:"recent_actions"`
}

// SimulationInfo carries the global counters
type SimulationInfo struct {
	Step             int64 `json:"step"`
	ActiveAgents     int   `json:"active_agents"`
	TotalAccusations int64 `json:"total_accusations"`
}

// RequestContext is the context section of a decision request
type RequestContext struct {
	AgentInfo       AgentInfo          `json:"agent_info"`
	RecentPosts     []core.FeedEntry   `json:"recent_posts"`
	AgentsRanking   []core.RankedAgent `json:"agents_ranking"`
	SimulationState SimulationInfo     `json:"simulation_state"`
}

// DecisionRequest is the body POSTed to a remote endpoint each turn
type DecisionRequest struct {
	ProtocolVersion string         `json:"protocol_version"`
	RequestID       string         `json:"request_id"`
	Type            string         `json:"type"`
	Context         RequestContext `json:"context"`
}

// NewDecisionRequest builds the envelope for dc.
func NewDecisionRequest(requestID string, dc core.DecisionContext) DecisionRequest {
	recent := dc.Self.RecentActions
	if len(recent) > MaxRecentActionsSent {
		recent = recent[len(recent)-MaxRecentActionsSent:]
	}
	posts := dc.RecentPosts
	if posts == nil {
		posts = []core.FeedEntry{}
	}
	ranking := dc.Agents
	if ranking == nil {
		ranking = []core.RankedAgent{}
	}
	return DecisionRequest{
		ProtocolVersion: Version,
		RequestID:       requestID,
		Type:            TypeDecisionRequest,
		Context: RequestContext{
			AgentInfo: AgentInfo{
				Name:                dc.Self.Name,
				Wallet:              dc.Self.Wallet,
				Reputation:          dc.Self.Reputation,
				TotalPosts:          dc.Self.TotalPosts,
				AccusationsMade:     dc.Self.AccusationsMade,
				AccusationsReceived: dc.Self.AccusationsReceived,
				RecentActions:       recent,
			},
			RecentPosts:   posts,
			AgentsRanking: ranking,
			SimulationState: SimulationInfo{
				Step:             dc.Step,
				ActiveAgents:     len(dc.Agents),
				TotalAccusations: dc.TotalAccusations,
			},
		},
	}
}

// ProbeRequest is the lightweight capability handshake body
type ProbeRequest struct {
	ProtocolVersion string `json:"protocol_version"`
	Type            string `json:"type"`
	Ping            bool   `json:"ping"`
}

// ProbeResult reports whether an endpoint is usable
type ProbeResult struct {
	OK      bool           `json:"ok"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
