package simulation

import (
	"fmt"
	"math"
	"strings"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/protocol"
	"github.com/NethermindEth/masp/store"
)

const (
	LikeVouch  = 2.0
	ReplyVouch = 1.0

	noAccuseTarget = "Unable to select accusation target, posting analysis instead."
	defaultAccuse  = "Autonomous accusation"
)

// ExecuteDecision applies d on behalf of the named agent and returns the
// resulting feed entry, or nil when the decision was rejected or suppressed.
func (e *Engine) ExecuteDecision(name string, d core.Decision) (*core.FeedEntry, error) {
	e.stateMu.Lock()
	a, ok := e.registry.Get(name)
	if !ok {
		e.stateMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	entry := e.executeLocked(a, d)
	if entry != nil {
		e.writer.SaveState(e.stateLocked())
	}
	e.stateMu.Unlock()

	if entry != nil {
		e.events.Publish(communication.EventFeedEntry, entry)
	}
	return entry, nil
}

// executeLocked applies the economy rules. Every rejection happens before
// any state is touched.
func (e *Engine) executeLocked(a *agent.Agent, d core.Decision) *core.FeedEntry {
	if err := protocol.Validate(d); err != nil {
		e.log.Economy("reject", a.Name, "%v", err)
		return nil
	}

	reasoning := strings.TrimSpace(d.Reasoning)
	if reasoning == "" {
		reasoning = defaultReasoning
	}
	entry := &core.FeedEntry{
		Step:      e.step,
		Timestamp: e.clock.Now().UTC(),
		Agent:     a.Name,
		Wallet:    a.Wallet,
		Action:    d.Action,
		Target:    d.Target,
		Content:   d.Content,
		Reasoning: truncateRunes(reasoning, protocol.MaxReasoningLength),
		ViewedBy:  map[string]bool{},
	}
	if d.TargetPostID != nil {
		entry.TargetPostID = core.PostID(*d.TargetPostID)
	}

	var (
		apply        func()
		accuseTarget *agent.Agent
	)
	switch d.Action {
	case core.ActionLike, core.ActionReply:
		post := e.findTargetPostLocked(d)
		if post == nil {
			e.log.Economy("reject", a.Name, "%s: no target post", d.Action)
			return nil
		}
		if post.Agent == a.Name {
			e.log.Economy("reject", a.Name, "%s on own post %d", d.Action, post.ID)
			return nil
		}
		if e.respondedLocked(a.Name, d.Action, post.ID) {
			e.log.Economy("reject", a.Name, "duplicate %s on post %d", d.Action, post.ID)
			return nil
		}
		entry.ParentPostID = core.PostID(post.ID)
		entry.Target = post.Agent
		amount := ReplyVouch
		if d.Action == core.ActionLike {
			entry.Content = fmt.Sprintf("Liked %s's contribution.", post.Agent)
			amount = LikeVouch
		}
		apply = func() {
			if d.Action == core.ActionLike {
				post.Likes++
			} else {
				post.Comments++
			}
			e.writer.UpdateFeedCounters(*post)
			e.vouchLocked(a.Name, post.Agent, amount)
		}

	case core.ActionAccuse:
		target, ok := e.registry.Get(d.Target)
		if !ok {
			target = e.randomAgentLocked()
		}
		if target == nil || target.Name == a.Name {
			entry.Action = core.ActionPost
			entry.Target = ""
			entry.Content = noAccuseTarget
			break
		}
		accuseTarget = target
		entry.Target = target.Name
		entry.AccusationCount = 1
		apply = func() {
			slash := math.Max(1, math.Floor(a.Reputation/10))
			target.Reputation -= slash
			e.totalAccusations++
			e.writer.UpsertAgent(store.NewRecord(target))
			e.log.Economy("slash", target.Name, "-%.0f by %s (now %.2f)", slash, a.Name, target.Reputation)
		}
	}

	if entry.Action != core.ActionLike && e.isDuplicateLocked(a.Name, entry.Content) {
		e.log.Economy("suppress", a.Name, "near-duplicate %s", entry.Action)
		return nil
	}

	if apply != nil {
		apply()
	}

	e.nextID++
	entry.ID = e.nextID
	e.feed = append(e.feed, entry)
	if len(e.feed) > MaxFeedEntries {
		evicted := len(e.feed) - MaxFeedEntries
		copy(e.feed, e.feed[evicted:])
		for i := len(e.feed) - evicted; i < len(e.feed); i++ {
			e.feed[i] = nil
		}
		e.feed = e.feed[:MaxFeedEntries]
	}
	a.Remember(core.MemoryEntry{Step: e.step, Action: entry.Action, Target: entry.Target})
	e.writer.AppendFeedEntry(*entry)

	switch entry.Action {
	case core.ActionPost, core.ActionReply:
		e.mirrorPost(*entry)
	case core.ActionAccuse:
		reason := d.Reasoning
		if strings.TrimSpace(reason) == "" {
			reason = defaultAccuse
		}
		e.mirrorAccusation(*entry, accuseTarget.Wallet, reason)
	}

	out := entry.Clone()
	return &out
}

// findTargetPostLocked resolves the post a LIKE or REPLY refers to: the
// explicit post id first, else the named agent's most recent post.
func (e *Engine) findTargetPostLocked(d core.Decision) *core.FeedEntry {
	if d.TargetPostID != nil {
		for _, p := range e.feed {
			if p.ID == *d.TargetPostID && p.Action == core.ActionPost {
				return p
			}
		}
	}
	if d.Target == "" {
		return nil
	}
	for i := len(e.feed) - 1; i >= 0; i-- {
		p := e.feed[i]
		if p.Action == core.ActionPost && p.Agent == d.Target {
			return p
		}
	}
	return nil
}

func (e *Engine) respondedLocked(name string, action core.Action, postID int64) bool {
	for _, p := range e.feed {
		if p.Agent == name && p.Action == action && p.ParentPostID != nil && *p.ParentPostID == postID {
			return true
		}
	}
	return false
}

func (e *Engine) randomAgentLocked() *agent.Agent {
	agents := e.registry.All()
	if len(agents) == 0 {
		return nil
	}
	return agents[e.rng.Intn(len(agents))]
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
