package simulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/ledger"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
	"github.com/NethermindEth/masp/registry"
	"github.com/NethermindEth/masp/store"
)

const fallbackMarker = "fallback decision used"

// AgentView is the admin listing of one agent
type AgentView struct {
	Name        string         `json:"name"`
	Wallet      string         `json:"wallet"`
	Kind        core.AgentKind `json:"kind"`
	Reputation  float64        `json:"reputation"`
	Personality string         `json:"personality,omitempty"`
	Strategy    string         `json:"strategy,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	NextWake    *time.Time     `json:"next_wake,omitempty"`
}

// State is the engine status summary
type State struct {
	Running          bool  `json:"running"`
	Step             int64 `json:"step"`
	TotalAccusations int64 `json:"total_accusations"`
	Agents           int   `json:"agents"`
	FeedSize         int   `json:"feed_size"`
	Seed             int64 `json:"seed"`
}

// CreateHostedAgent adds a scored-heuristic agent. An empty personality or
// strategy is chosen at random.
func (e *Engine) CreateHostedAgent(ctx context.Context, cfg agent.Config) (*agent.Agent, error) {
	cfg.Kind = core.KindHosted
	e.stateMu.Lock()
	if cfg.Personality == "" {
		profiles := agent.Personalities()
		cfg.Personality = profiles[e.rng.Intn(len(profiles))].Name
	}
	if cfg.Strategy == "" {
		names := agent.Strategies()
		cfg.Strategy = names[e.rng.Intn(len(names))]
	}
	e.stateMu.Unlock()
	return e.addAgent(ctx, cfg)
}

// CreateExternalAgent probes the endpoint before adding a remote agent.
// With strict set a failed probe rejects the agent; otherwise it is added
// anyway and the probe result is returned for the caller to surface.
func (e *Engine) CreateExternalAgent(ctx context.Context, cfg agent.Config, strict bool) (*agent.Agent, protocol.ProbeResult, error) {
	cfg.Kind = core.KindExternal
	if err := protocol.ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, protocol.ProbeResult{Reason: err.Error()}, err
	}
	if err := e.checkName(cfg.Name); err != nil {
		return nil, protocol.ProbeResult{}, err
	}

	probe := e.Probe(ctx, cfg.Endpoint, cfg.APIKey)
	if !probe.OK {
		if strict {
			return nil, probe, fmt.Errorf("%w: %s", ErrProbeFailed, probe.Reason)
		}
		e.log.Warn(logger.PROTOCOL, "adding %s despite failed probe: %s", cfg.Name, probe.Reason)
	}
	a, err := e.addAgent(ctx, cfg)
	return a, probe, err
}

// CreateLLMAgent adds a model-backed agent.
func (e *Engine) CreateLLMAgent(ctx context.Context, cfg agent.Config) (*agent.Agent, error) {
	cfg.Kind = core.KindLLM
	return e.addAgent(ctx, cfg)
}

// Probe runs the capability handshake against endpoint.
func (e *Engine) Probe(ctx context.Context, endpoint, apiKey string) protocol.ProbeResult {
	res := e.prober.Probe(ctx, endpoint, apiKey)
	e.log.Protocol(endpoint, "probe ok=%t reason=%q", res.OK, res.Reason)
	return res
}

func (e *Engine) checkName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return agent.ErrEmptyName
	}
	if _, ok := e.registry.Get(name); ok {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}
	return nil
}

func (e *Engine) buildAgent(cfg agent.Config) (*agent.Agent, error) {
	opts := []agent.Option{
		agent.WithHTTPClient(e.http),
		agent.WithLogger(e.log),
		agent.WithNow(e.clock.Now),
	}
	opts = append(opts, e.agentOpt...)
	opts = append(opts, agent.WithRand(e.agentRand(strings.TrimSpace(cfg.Name))))
	return agent.New(cfg, opts...)
}

func (e *Engine) addAgent(_ context.Context, cfg agent.Config) (*agent.Agent, error) {
	if err := e.checkName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Wallet == "" {
		wallet, err := ledger.NewWallet()
		if err != nil {
			return nil, err
		}
		cfg.Wallet = wallet
	}
	a, err := e.buildAgent(cfg)
	if err != nil {
		return nil, err
	}

	e.stateMu.Lock()
	if err := e.registry.Register(a); err != nil {
		e.stateMu.Unlock()
		if errors.Is(err, registry.ErrDuplicateName) {
			return nil, fmt.Errorf("%w: %s", ErrAgentExists, a.Name)
		}
		return nil, err
	}
	e.writer.UpsertAgent(store.NewRecord(a))
	e.stateMu.Unlock()

	e.mirrorRegistration(a.Name, a.Wallet)
	e.log.Engine("create", "%s agent %s (%s)", a.Kind, a.Name, a.Wallet)
	e.events.Publish(communication.EventAgentCreated, e.viewOf(a))
	return a, nil
}

// RemoveAgent deletes the named agent. Its feed entries stay.
func (e *Engine) RemoveAgent(name string) error {
	e.stateMu.Lock()
	if !e.registry.Remove(name) {
		e.stateMu.Unlock()
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	e.scheduler.Forget(name)
	e.writer.DeleteAgent(name)
	e.stateMu.Unlock()

	e.log.Engine("remove", "agent %s", name)
	e.events.Publish(communication.EventAgentRemoved, map[string]string{"name": name})
	return nil
}

// Agent returns a point-in-time view of the named agent.
func (e *Engine) Agent(name string) (AgentView, bool) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	a, ok := e.registry.Get(name)
	if !ok {
		return AgentView{}, false
	}
	return e.viewLocked(a), true
}

// ListAgents returns every agent in creation order.
func (e *Engine) ListAgents() []AgentView {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	agents := e.registry.All()
	out := make([]AgentView, len(agents))
	for i, a := range agents {
		out[i] = e.viewLocked(a)
	}
	return out
}

func (e *Engine) viewOf(a *agent.Agent) AgentView {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.viewLocked(a)
}

func (e *Engine) viewLocked(a *agent.Agent) AgentView {
	cfg := a.Config()
	v := AgentView{
		Name:        a.Name,
		Wallet:      a.Wallet,
		Kind:        a.Kind,
		Reputation:  a.Reputation,
		Personality: cfg.Personality,
		Strategy:    cfg.Strategy,
		Endpoint:    cfg.Endpoint,
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		CreatedAt:   a.CreatedAt,
	}
	if wake, ok := e.scheduler.NextWake(a.Name); ok {
		v.NextWake = &wake
	}
	return v
}

// Leaderboard ranks agents by reputation, highest first.
func (e *Engine) Leaderboard() []core.RankedAgent {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.leaderboardLocked()
}

// Feed returns up to limit entries, newest first. limit is clamped to
// [1, 200]; zero means 50.
func (e *Engine) Feed(limit int) []core.FeedEntry {
	limit = clampLimit(limit)
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	n := len(e.feed)
	if limit > n {
		limit = n
	}
	out := make([]core.FeedEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.feed[i].Clone())
	}
	return out
}

// ClearFeed empties the feed and chain events and resets the step and
// accusation counters. Entry ids keep increasing and vouches are kept.
func (e *Engine) ClearFeed() {
	e.stateMu.Lock()
	e.feed = nil
	e.chainEvents = nil
	e.step = 0
	e.totalAccusations = 0
	e.writer.ClearFeed()
	e.writer.SaveState(e.stateLocked())
	e.stateMu.Unlock()

	e.log.Engine("clear", "feed cleared")
	e.events.Publish(communication.EventFeedCleared, nil)
}

// RemoveFallbackEntries drops entries produced by fallback decisions and
// returns how many were removed.
func (e *Engine) RemoveFallbackEntries() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	kept := e.feed[:0]
	var removed []int64
	for _, p := range e.feed {
		if strings.Contains(strings.ToLower(p.Reasoning), fallbackMarker) {
			removed = append(removed, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(e.feed); i++ {
		e.feed[i] = nil
	}
	e.feed = kept
	if len(removed) > 0 {
		e.writer.DeleteFeedEntries(removed)
		e.log.Engine("purge", "removed %d fallback entries", len(removed))
	}
	return len(removed)
}

// State returns the engine status.
func (e *Engine) State() State {
	running := e.Running()
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return State{
		Running:          running,
		Step:             e.step,
		TotalAccusations: e.totalAccusations,
		Agents:           e.registry.Len(),
		FeedSize:         len(e.feed),
		Seed:             e.seed,
	}
}

// Snapshot returns the persisted form of the engine state.
func (e *Engine) Snapshot() core.SimulationState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.stateLocked()
}
