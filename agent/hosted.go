package agent

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
)

const (
	noiseScale         = 0.08
	hostedTextMax      = 280
	hostedReasoningMax = 180
)

// Hosted is the in-process scored heuristic decider
type Hosted struct {
	personality *Personality
	rng         *rand.Rand
	textGen     ai.Client
	fullLLM     bool
	timeout     time.Duration
	log         *logger.Logger
}

func newHosted(cfg Config, o options) (*Hosted, error) {
	p, err := NewPersonality(cfg.Personality, cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if _, ok := strategies[cfg.Strategy]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	return &Hosted{
		personality: p,
		rng:         o.rng,
		textGen:     o.textGen,
		fullLLM:     o.useLLM,
		timeout:     o.timeout,
		log:         o.log,
	}, nil
}

// Personality returns the applied trait profile.
func (h *Hosted) Personality() *Personality {
	return h.personality
}

func (h *Hosted) decide(ctx context.Context, a *Agent, dc core.DecisionContext) core.Decision {
	opp := analyzeOpportunities(dc, a.Name)

	if h.textGen != nil && h.fullLLM {
		if d, ok := h.decideWithModel(ctx, a.Name, dc, opp); ok {
			return d
		}
	}

	scores := h.score(a.Name, dc, opp)
	action := core.ActionPost
	for _, candidate := range core.Actions {
		if scores[candidate] > scores[action] {
			action = candidate
		}
	}

	if action == core.ActionPost && len(opp.recentNonSelfPosts) > 0 && !repliedRecently(dc.Self.RecentActions) {
		action = core.ActionReply
	}
	return h.buildDecision(ctx, a.Name, action, dc, opp, scores)
}

func repliedRecently(actions []core.MemoryEntry) bool {
	if len(actions) > 3 {
		actions = actions[len(actions)-3:]
	}
	for _, m := range actions {
		if m.Action == core.ActionReply {
			return true
		}
	}
	return false
}

// score computes the noisy per-action scores.
func (h *Hosted) score(self string, dc core.DecisionContext, opp opportunities) map[core.Action]float64 {
	p := h.personality
	scores := map[core.Action]float64{}

	ownRecent := 0
	for _, post := range dc.RecentPosts {
		if post.Agent == self {
			ownRecent++
		}
	}
	post := 0.45 + p.Get(Curiosity)*0.35
	post -= math.Min(0.2, float64(ownRecent)*0.03)
	post += float64(len(opp.trendingTopics)) * 0.04
	scores[core.ActionPost] = post

	reply := 0.35
	if len(opp.recentNonSelfPosts) > 0 {
		reply += 0.35
	}
	if len(opp.controversialPosts) > 0 {
		reply += 0.25
	}
	reply += p.Get(Aggressiveness)*0.2 + p.Get(Truthfulness)*0.1
	scores[core.ActionReply] = reply

	accuse := 0.2
	rank := 0
	for i, ag := range dc.Agents {
		if ag.Name == self {
			rank = i + 1
			break
		}
	}
	if rank > 0 && rank > (len(dc.Agents)+1)/2 {
		accuse += 0.12
	}
	accuse += p.Get(Aggressiveness) * 0.42
	accuse -= (1 - p.Get(RiskTolerance)) * 0.26
	if len(opp.weakTargets) > 0 {
		accuse += 0.3
	}
	scores[core.ActionAccuse] = accuse

	like := 0.25 + p.Get(AllianceBias)*0.45
	if len(opp.positivePosts) > 0 {
		like += 0.15
	}
	scores[core.ActionLike] = like

	for _, action := range core.Actions {
		scores[action] += gaussian(h.rng) * noiseScale
	}
	return scores
}

// gaussian draws a standard normal value with the Box-Muller transform.
func gaussian(rng *rand.Rand) float64 {
	u, v := 0.0, 0.0
	for u == 0 {
		u = rng.Float64()
	}
	for v == 0 {
		v = rng.Float64()
	}
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

func (h *Hosted) buildDecision(ctx context.Context, self string, action core.Action, dc core.DecisionContext, opp opportunities, scores map[core.Action]float64) core.Decision {
	p := h.personality

	switch action {
	case core.ActionPost:
		topic := pickTopic(h.rng, dc, opp)
		d := core.Decision{
			Action:  core.ActionPost,
			Content: postContent(h.rng, topic),
			Reasoning: fmt.Sprintf("POST chosen with score %.2f; curiosity=%.2f and trend pressure=%d.",
				scores[core.ActionPost], p.Get(Curiosity), len(opp.trendingTopics)),
		}
		return h.rewrite(ctx, self, dc, nil, d)

	case core.ActionReply:
		target, ok := replyTarget(self, dc, opp)
		if !ok {
			return core.Decision{
				Action:    core.ActionPost,
				Content:   newThreadContent,
				Reasoning: "No reply target available, fallback to POST.",
			}
		}
		d := core.Decision{
			Action:       core.ActionReply,
			Target:       target.Agent,
			TargetPostID: core.PostID(target.ID),
			Content:      replyContent(h.rng, target),
			Reasoning:    fmt.Sprintf("REPLY chosen with score %.2f based on controversy scan.", scores[core.ActionReply]),
		}
		d = h.rewrite(ctx, self, dc, &target, d)
		d.Target = target.Agent
		d.TargetPostID = core.PostID(target.ID)
		return d

	case core.ActionAccuse:
		var target *core.RankedAgent
		if len(opp.weakTargets) > 0 {
			target = &opp.weakTargets[0]
		} else {
			for i := range dc.Agents {
				if dc.Agents[i].Name != self {
					target = &dc.Agents[i]
					break
				}
			}
		}
		if target == nil {
			return core.Decision{
				Action:    core.ActionLike,
				Target:    self,
				Reasoning: "No valid accusation target found, fallback to LIKE.",
			}
		}
		d := core.Decision{
			Action:  core.ActionAccuse,
			Target:  target.Name,
			Content: accuseContent(target.Name),
			Reasoning: fmt.Sprintf("ACCUSE chosen with score %.2f; aggressiveness=%.2f targetRep=%g.",
				scores[core.ActionAccuse], p.Get(Aggressiveness), target.Reputation),
		}
		d = h.rewrite(ctx, self, dc, nil, d)
		d.Target = target.Name
		return d
	}

	likeTarget := self
	if len(opp.positivePosts) > 0 {
		likeTarget = opp.positivePosts[0].Agent
	} else {
		for _, ag := range dc.Agents {
			if ag.Name != self {
				likeTarget = ag.Name
				break
			}
		}
	}
	return core.Decision{
		Action:    core.ActionLike,
		Target:    likeTarget,
		Reasoning: fmt.Sprintf("LIKE chosen with score %.2f; allianceBias=%.2f.", scores[core.ActionLike], p.Get(AllianceBias)),
	}
}

func replyTarget(self string, dc core.DecisionContext, opp opportunities) (core.FeedEntry, bool) {
	if len(opp.recentNonSelfPosts) > 0 {
		return opp.recentNonSelfPosts[0], true
	}
	if len(opp.controversialPosts) > 0 {
		return opp.controversialPosts[0], true
	}
	for _, p := range dc.RecentPosts {
		if p.Agent != self {
			return p, true
		}
	}
	if len(dc.RecentPosts) > 0 {
		return dc.RecentPosts[0], true
	}
	return core.FeedEntry{}, false
}

// rewrite asks the text generator for better wording. The templated
// decision is returned unchanged on any failure.
func (h *Hosted) rewrite(ctx context.Context, self string, dc core.DecisionContext, target *core.FeedEntry, fallback core.Decision) core.Decision {
	if h.textGen == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	raw, err := h.textGen.Complete(ctx, ai.Request{
		System:      ai.HostedTextSystem,
		Prompt:      ai.HostedTextPrompt(self, fallback.Action, dc, target),
		Temperature: 0.8,
		JSON:        true,
	})
	if err != nil {
		h.log.Debug(logger.DECISION, "%s text generation failed: %v", self, err)
		return fallback
	}
	obj, err := ai.ExtractJSONObject(raw)
	if err != nil {
		h.log.Debug(logger.DECISION, "%s text generation returned no json", self)
		return fallback
	}

	out := fallback
	if s, ok := obj["content"].(string); ok && strings.TrimSpace(s) != "" {
		out.Content = truncate(strings.TrimSpace(s), hostedTextMax)
	}
	if s, ok := obj["reasoning"].(string); ok && strings.TrimSpace(s) != "" {
		out.Reasoning = truncate(strings.TrimSpace(s), hostedReasoningMax)
	}
	if id, ok := protocol.IntegerValue(obj["target_post_id"]); ok {
		out.TargetPostID = core.PostID(id)
	}
	return out
}

// decideWithModel delegates the whole decision to the text generator.
func (h *Hosted) decideWithModel(ctx context.Context, self string, dc core.DecisionContext, opp opportunities) (core.Decision, bool) {
	signals := ai.Signals{TrendingTopics: opp.trendingTopics, WeakTargets: []string{}, PositivePosts: []int64{}}
	if signals.TrendingTopics == nil {
		signals.TrendingTopics = []string{}
	}
	for _, w := range opp.weakTargets {
		signals.WeakTargets = append(signals.WeakTargets, w.Name)
	}
	for i, p := range opp.positivePosts {
		if i == 5 {
			break
		}
		signals.PositivePosts = append(signals.PositivePosts, p.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	raw, err := h.textGen.Complete(ctx, ai.Request{
		System:      ai.HostedDecisionSystem,
		Prompt:      ai.HostedDecisionPrompt(self, dc, signals),
		Temperature: 0.9,
		JSON:        true,
	})
	if err != nil {
		h.log.Debug(logger.DECISION, "%s model decision failed: %v", self, err)
		return core.Decision{}, false
	}
	obj, err := ai.ExtractJSONObject(raw)
	if err != nil {
		return core.Decision{}, false
	}

	d := core.Decision{Reasoning: "Autonomous LLM decision."}
	if s, ok := obj["action"].(string); ok {
		d.Action = core.Action(s)
	}
	if s, ok := obj["target"].(string); ok {
		d.Target = s
	}
	if id, ok := protocol.IntegerValue(obj["target_post_id"]); ok {
		d.TargetPostID = core.PostID(id)
	}
	if s, ok := obj["content"].(string); ok {
		d.Content = truncate(strings.TrimSpace(s), protocol.MaxContentLength)
	}
	if s, ok := obj["reasoning"].(string); ok {
		d.Reasoning = truncate(strings.TrimSpace(s), protocol.MaxReasoningLength)
	}

	if targeted(d.Action) && d.TargetPostID == nil {
		if post, ok := freshCandidate(self, dc); ok {
			d.TargetPostID = core.PostID(post.ID)
			d.Target = post.Agent
		}
	}

	if err := protocol.Validate(d); err != nil {
		h.log.Debug(logger.DECISION, "%s model decision rejected: %v", self, err)
		return core.Decision{}, false
	}
	return d, true
}

func targeted(a core.Action) bool {
	return a == core.ActionReply || a == core.ActionLike || a == core.ActionAccuse
}

// freshCandidate picks the newest non-self post this agent has not yet engaged with.
func freshCandidate(self string, dc core.DecisionContext) (core.FeedEntry, bool) {
	engaged := map[int64]bool{}
	for _, p := range dc.RecentPosts {
		if p.Agent == self && (p.Action == core.ActionReply || p.Action == core.ActionLike) && p.ParentPostID != nil {
			engaged[*p.ParentPostID] = true
		}
	}
	candidates := ai.CandidatePosts(self, dc.RecentPosts)
	for _, c := range candidates {
		if !engaged[c.ID] {
			return c, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return core.FeedEntry{}, false
}
