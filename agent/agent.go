// Package agent implements the three kinds of simulation participants and
// the decision each produces per turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/NethermindEth/masp/ai"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
)

// ErrInvalidEndpoint is returned for malformed remote endpoint URLs.
var ErrInvalidEndpoint = protocol.ErrInvalidEndpoint

var ErrEmptyName = errors.New("agent name is required")

// Config describes an agent and is what gets persisted to recreate it.
// Fields irrelevant to Kind are ignored.
type Config struct {
	Name   string         `json:"name" yaml:"name"`
	Wallet string         `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Kind   core.AgentKind `json:"kind" yaml:"kind"`

	Personality string `json:"personality,omitempty" yaml:"personality,omitempty"`
	Strategy    string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	APIKey   string `json:"-" yaml:"api_key,omitempty"`

	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// decider is implemented by each kind payload.
type decider interface {
	decide(ctx context.Context, a *Agent, dc core.DecisionContext) core.Decision
}

// Agent is a single simulation participant. Reputation is owned by the
// engine and only mutated under its lock.
type Agent struct {
	Name       string
	Wallet     string
	Kind       core.AgentKind
	Reputation float64
	CreatedAt  time.Time

	cfg    Config
	memory *Memory
	impl   decider
	log    *logger.Logger
}

type options struct {
	rng        *rand.Rand
	httpClient *http.Client
	timeout    time.Duration
	textGen    ai.Client
	useLLM     bool
	model      ai.Client
	log        *logger.Logger
	now        func() time.Time
}

// Option customizes agent construction
type Option func(*options)

// WithRand sets the random source used by hosted scoring.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithHTTPClient sets the client used for remote endpoints and model providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each remote or model decision call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTextGenerator lets hosted agents rewrite templated text through a model.
// When full is set the model is first asked for the whole decision.
func WithTextGenerator(c ai.Client, full bool) Option {
	return func(o *options) {
		o.textGen = c
		o.useLLM = full
	}
}

// WithModelClient overrides the provider client of a model-backed agent.
func WithModelClient(c ai.Client) Option {
	return func(o *options) { o.model = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithNow sets the clock used for CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and builds the agent. Configuration problems are
// returned here and never surface later during a step.
func New(cfg Config, opts ...Option) (*Agent, error) {
	o := options{timeout: protocol.DefaultDecisionTimeout, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, ErrEmptyName
	}

	a := &Agent{
		Name:       cfg.Name,
		Wallet:     cfg.Wallet,
		Kind:       cfg.Kind,
		Reputation: core.InitialReputation,
		CreatedAt:  o.now(),
		memory:     NewMemory(MaxMemoryEntries),
		log:        o.log,
	}

	switch cfg.Kind {
	case core.KindHosted:
		h, err := newHosted(cfg, o)
		if err != nil {
			return nil, err
		}
		a.impl = h
	case core.KindExternal:
		e, err := newExternal(cfg, o)
		if err != nil {
			return nil, err
		}
		a.impl = e
	case core.KindLLM:
		m, err := newLLM(&cfg, o)
		if err != nil {
			return nil, err
		}
		a.impl = m
	default:
		return nil, fmt.Errorf("unknown agent kind %q", cfg.Kind)
	}

	a.cfg = cfg
	return a, nil
}

// Config returns the configuration the agent was built from.
func (a *Agent) Config() Config {
	cfg := a.cfg
	cfg.Wallet = a.Wallet
	return cfg
}

// DecideAction produces this turn's decision. It never fails; problems
// with remote collaborators resolve to a fallback decision.
func (a *Agent) DecideAction(ctx context.Context, dc core.DecisionContext) core.Decision {
	d := a.impl.decide(ctx, a, dc)
	d.Agent = a.Name
	return d
}

// Remember records an accepted action in the memory ring.
func (a *Agent) Remember(e core.MemoryEntry) {
	a.memory.Add(e)
}

// Memory returns the newest n remembered actions.
func (a *Agent) Memory(n int) []core.MemoryEntry {
	return a.memory.Recent(n)
}

// Summary builds the self view included in a decision context.
func (a *Agent) Summary(accusationsReceived int) core.AgentSummary {
	return core.AgentSummary{
		Name:                a.Name,
		Wallet:              a.Wallet,
		Kind:                a.Kind,
		Reputation:          a.Reputation,
		TotalPosts:          a.memory.Count(core.ActionPost),
		AccusationsMade:     a.memory.Count(core.ActionAccuse),
		AccusationsReceived: accusationsReceived,
		RecentActions:       a.memory.Recent(protocol.MaxRecentActionsSent),
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
