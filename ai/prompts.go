package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NethermindEth/masp/core"
)

const (
	AutonomousSystemPrompt = "You are autonomous. Output JSON only."
	HostedDecisionSystem   = "You are an autonomous agent. Output valid JSON only."
	HostedTextSystem       = "You produce concise, specific social feed text as strict JSON."
)

// timelineItem is the compact view of a feed entry embedded in prompts
type timelineItem struct {
	ID           int64       `json:"id"`
	Agent        string      `json:"agent"`
	Action       core.Action `json:"action,omitempty"`
	Target       string      `json:"target,omitempty"`
	ParentPostID *int64      `json:"parentPostId,omitempty"`
	Content      string      `json:"content"`
}

// Signals are the opportunity hints a hosted agent shares with the model.
type Signals struct {
	TrendingTopics []string `json:"trendingTopics"`
	WeakTargets    []string `json:"weakTargets"`
	PositivePosts  []int64  `json:"positivePosts"`
}

func timeline(entries []core.FeedEntry) []timelineItem {
	items := make([]timelineItem, 0, len(entries))
	for _, p := range entries {
		items = append(items, timelineItem{
			ID:           p.ID,
			Agent:        p.Agent,
			Action:       p.Action,
			Target:       p.Target,
			ParentPostID: p.ParentPostID,
			Content:      p.Content,
		})
	}
	return items
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func tail[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// AutonomousDecisionPrompt asks a model-backed agent to choose its next action.
func AutonomousDecisionPrompt(agentName string, dc core.DecisionContext) string {
	ranking := dc.Agents
	if len(ranking) > 8 {
		ranking = ranking[:8]
	}
	return strings.TrimSpace(fmt.Sprintf(`
You are %s, an autonomous agent in a social network simulation.
Make your own decision from context. Do not use generic filler phrases.

Recent timeline:
%s

Leaderboard snapshot:
%s

Your recent actions:
%s

Choose exactly one action: POST, REPLY, ACCUSE, LIKE.
If REPLY/LIKE/ACCUSE, include target and target_post_id when possible.
Keep content <= 280 chars.

Return strict JSON only:
{
  "action": "POST|REPLY|ACCUSE|LIKE",
  "target": "agent_name",
  "target_post_id": 123,
  "content": "text",
  "reasoning": "brief reason"
}`,
		agentName,
		mustJSON(timeline(tail(dc.RecentPosts, 12))),
		mustJSON(ranking),
		mustJSON(tail(dc.Self.RecentActions, 8)),
	))
}

// CandidatePosts returns up to 8 recent non-self POSTs, newest first.
func CandidatePosts(agentName string, recent []core.FeedEntry) []core.FeedEntry {
	var out []core.FeedEntry
	for _, p := range recent {
		if p.Action == core.ActionPost && p.Agent != agentName {
			out = append(out, p)
		}
	}
	out = tail(out, 8)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// HostedDecisionPrompt lets a hosted agent delegate its full decision to a model.
func HostedDecisionPrompt(agentName string, dc core.DecisionContext, signals Signals) string {
	candidates := make([]timelineItem, 0)
	for _, p := range CandidatePosts(agentName, dc.RecentPosts) {
		candidates = append(candidates, timelineItem{ID: p.ID, Agent: p.Agent, Content: p.Content})
	}
	return strings.TrimSpace(fmt.Sprintf(`
You are %s, an autonomous social agent in a mixed web2/web3 timeline.
You must independently decide your next action.

Return strict JSON only:
{
  "action": "POST|REPLY|LIKE|ACCUSE",
  "target": "agent name when needed",
  "target_post_id": 123,
  "content": "text",
  "reasoning": "short internal rationale"
}

Rules:
- REPLY/LIKE/ACCUSE should include target and target_post_id when possible.
- POST/REPLY/ACCUSE require content.
- Avoid repeating your own recent wording.
- Prefer diversifying actions over time.
- Ground replies in the referenced post content.

Recent timeline:
%s

Candidate posts for engagement:
%s

Your recent actions:
%s

Signals:
%s`,
		agentName,
		mustJSON(timeline(tail(dc.RecentPosts, 20))),
		mustJSON(candidates),
		mustJSON(tail(dc.Self.RecentActions, 8)),
		mustJSON(signals),
	))
}

// HostedTextPrompt asks a model to rewrite the templated text of a hosted decision.
func HostedTextPrompt(agentName string, action core.Action, dc core.DecisionContext, target *core.FeedEntry) string {
	var recent []core.FeedEntry
	var own []string
	for _, p := range dc.RecentPosts {
		if p.Action == core.ActionPost || p.Action == core.ActionReply {
			recent = append(recent, p)
		}
		if p.Action == core.ActionPost && p.Agent == agentName {
			own = append(own, p.Content)
		}
	}
	recentItems := make([]timelineItem, 0)
	for _, p := range tail(recent, 8) {
		recentItems = append(recentItems, timelineItem{ID: p.ID, Agent: p.Agent, Action: p.Action, Content: p.Content})
	}
	own = tail(own, 4)
	if own == nil {
		own = []string{}
	}

	targetBlock := "No specific target post."
	if target != nil {
		targetBlock = fmt.Sprintf("Target author: %s\nTarget post id: %d\nTarget post: %s", target.Agent, target.ID, target.Content)
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are %s, an autonomous social AI in a web2+web3 discussion feed.
Write natural, specific text and avoid generic phrases.
Action: %s
%s
Recent timeline:
%s
Recent posts by you (avoid repeating these ideas or wording):
%s

Return JSON only:
{
  "content": "string (max 280 chars, required for POST/REPLY/ACCUSE)",
  "reasoning": "string (max 180 chars)",
  "target_post_id": "integer when action is REPLY/LIKE/ACCUSE and target is known"
}
If REPLY, directly reference the target post idea.`,
		agentName, action, targetBlock, mustJSON(recentItems), mustJSON(own),
	))
}
