// Package simulation runs the agent population: it owns the feed, the
// reputation economy and the per-agent scheduler, and drives steps.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/ledger"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
	"github.com/NethermindEth/masp/registry"
	"github.com/NethermindEth/masp/store"
	"github.com/NethermindEth/masp/utils"
)

const (
	MaxFeedEntries    = 500
	MaxChainEvents    = 200
	ContextWindow     = 20
	MaxFeedPage       = 200
	DefaultFeedPage   = 50
	DefaultInterval   = 15 * time.Second
	defaultReasoning  = "No reasoning provided"
	ledgerCallTimeout = 10 * time.Second
)

var (
	ErrNoAgents       = errors.New("at least 1 agent is required")
	ErrAgentExists    = errors.New("agent already exists")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrProbeFailed    = errors.New("capability probe failed")
	ErrAlreadyRunning = errors.New("simulation already running")
)

// Config holds the engine tunables.
type Config struct {
	// Seed drives every random draw. Zero picks a random seed.
	Seed         int64
	StepInterval time.Duration
	Schedule     ScheduleConfig
	ProbeTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StepInterval: DefaultInterval,
		Schedule:     DefaultSchedule(),
		ProbeTimeout: protocol.DefaultProbeTimeout,
	}
}

type options struct {
	clock      Clock
	ledger     ledger.Client
	writer     store.Writer
	events     communication.Publisher
	log        *logger.Logger
	httpClient *http.Client
	agentOpts  []agent.Option
}

// Option customizes the engine
type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

func WithLedger(l ledger.Client) Option { return func(o *options) { o.ledger = l } }

func WithStore(w store.Writer) Option { return func(o *options) { o.writer = w } }

func WithPublisher(p communication.Publisher) Option { return func(o *options) { o.events = p } }

func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

// WithHTTPClient is used for probes and passed to every agent.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithAgentOptions are applied to every agent the engine builds.
func WithAgentOptions(opts ...agent.Option) Option {
	return func(o *options) { o.agentOpts = append(o.agentOpts, opts...) }
}

// StepResult summarizes one step.
type StepResult struct {
	Step        int64              `json:"step"`
	Actions     []core.FeedEntry   `json:"actions"`
	Leaderboard []core.RankedAgent `json:"leaderboard"`
}

// Engine is the simulation. All exported methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	seed     int64
	clock    Clock
	ledger   ledger.Client
	writer   store.Writer
	events   communication.Publisher
	log      *logger.Logger
	prober   *protocol.Prober
	http     *http.Client
	agentOpt []agent.Option
	chainQ   *utils.Queue

	// stepMu serializes steps. stateMu guards everything below it and is
	// never held across a decision call.
	stepMu  sync.Mutex
	stateMu sync.RWMutex

	registry         *registry.Registry
	scheduler        *Scheduler
	rng              *rand.Rand
	feed             []*core.FeedEntry
	nextID           int64
	step             int64
	totalAccusations int64
	vouches          map[string]bool
	chainEvents      []core.ChainEvent

	lifeMu  sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a stopped engine with an empty population.
func New(cfg Config, opts ...Option) (*Engine, error) {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.clock == nil {
		o.clock = RealClock{}
	}
	if o.ledger == nil {
		o.ledger = ledger.LocalOnly{}
	}
	if o.writer == nil {
		o.writer = store.Discard{}
	}
	if o.events == nil {
		o.events = communication.Discard{}
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	def := DefaultConfig()
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = def.StepInterval
	}
	if cfg.Schedule == (ScheduleConfig{}) {
		cfg.Schedule = def.Schedule
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}

	seed := cfg.Seed
	if seed == 0 {
		var err error
		if seed, err = utils.NewSeed(); err != nil {
			return nil, fmt.Errorf("seed engine: %w", err)
		}
	}

	e := &Engine{
		cfg:       cfg,
		seed:      seed,
		clock:     o.clock,
		ledger:    o.ledger,
		writer:    o.writer,
		events:    o.events,
		log:       o.log,
		prober:    protocol.NewProber(o.httpClient, cfg.ProbeTimeout),
		http:      o.httpClient,
		agentOpt:  o.agentOpts,
		chainQ:    utils.NewQueue(1),
		registry:  registry.New(),
		scheduler: NewScheduler(cfg.Schedule),
		rng:       rand.New(rand.NewSource(seed)),
		vouches:   make(map[string]bool),
	}
	e.log.Engine("init", "seed=%d ledger=%s", seed, e.ledger.Mode())
	return e, nil
}

// Seed returns the seed every random draw derives from.
func (e *Engine) Seed() int64 { return e.seed }

// agentRand gives each agent its own deterministic source.
func (e *Engine) agentRand(name string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(e.seed ^ int64(h.Sum64())))
}

// Step runs one step. It waits for an in-flight step to finish first.
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()
	return e.runStep(context.WithoutCancel(ctx))
}

func (e *Engine) runStep(ctx context.Context) (StepResult, error) {
	e.stateMu.Lock()
	agents := e.registry.All()
	if len(agents) == 0 {
		e.stateMu.Unlock()
		return StepResult{}, ErrNoAgents
	}
	e.step++
	step := e.step
	e.rng.Shuffle(len(agents), func(i, j int) { agents[i], agents[j] = agents[j], agents[i] })
	e.stateMu.Unlock()

	var emitted []core.FeedEntry
	for _, a := range agents {
		e.stateMu.Lock()
		if !e.liveLocked(a) {
			e.stateMu.Unlock()
			continue
		}
		if !e.scheduler.Ready(a.Name, a.Kind, e.registry.Len(), e.clock.Now(), e.rng) {
			e.stateMu.Unlock()
			e.log.Scheduler(a.Name, "not ready")
			continue
		}
		dc := e.buildContextLocked(a)
		e.stateMu.Unlock()

		d := a.DecideAction(ctx, dc)
		e.log.Decision(a.Name, "%s target=%q reasoning=%q", d.Action, d.Target, d.Reasoning)

		e.stateMu.Lock()
		var entry *core.FeedEntry
		if e.liveLocked(a) {
			if entry = e.executeLocked(a, d); entry != nil {
				wake := e.scheduler.Schedule(a.Name, a.Kind, e.registry.Len(), e.clock.Now(), e.rng)
				e.log.Scheduler(a.Name, "next wake %s", wake.Format(time.RFC3339))
			}
		}
		e.stateMu.Unlock()

		if entry != nil {
			emitted = append(emitted, *entry)
			e.events.Publish(communication.EventFeedEntry, entry)
		}
	}

	e.stateMu.Lock()
	e.writer.SaveState(e.stateLocked())
	result := StepResult{Step: step, Actions: emitted, Leaderboard: e.leaderboardLocked()}
	e.stateMu.Unlock()

	e.log.Engine("step", "step %d: %d actions", step, len(emitted))
	e.events.Publish(communication.EventStepCompleted, result)
	return result, nil
}

// liveLocked reports whether a is still the registered agent under its name.
func (e *Engine) liveLocked(a *agent.Agent) bool {
	cur, ok := e.registry.Get(a.Name)
	return ok && cur == a
}

// BuildContext returns the decision context a would receive now, recording
// impressions on the posts it contains.
func (e *Engine) BuildContext(name string) (core.DecisionContext, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	a, ok := e.registry.Get(name)
	if !ok {
		return core.DecisionContext{}, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return e.buildContextLocked(a), nil
}

func (e *Engine) buildContextLocked(a *agent.Agent) core.DecisionContext {
	start := len(e.feed) - ContextWindow
	if start < 0 {
		start = 0
	}
	recent := make([]core.FeedEntry, 0, len(e.feed)-start)
	for _, entry := range e.feed[start:] {
		if entry.Action == core.ActionPost && entry.Agent != a.Name && !entry.ViewedBy[a.Name] {
			if entry.ViewedBy == nil {
				entry.ViewedBy = make(map[string]bool)
			}
			entry.ViewedBy[a.Name] = true
			entry.Views++
			e.writer.UpdateFeedCounters(*entry)
		}
		recent = append(recent, entry.Clone())
	}

	received := 0
	for _, entry := range e.feed {
		if entry.Action == core.ActionAccuse && entry.Target == a.Name {
			received++
		}
	}

	return core.DecisionContext{
		RecentPosts:      recent,
		Agents:           e.leaderboardLocked(),
		Self:             a.Summary(received),
		Step:             e.step,
		TotalAccusations: e.totalAccusations,
	}
}

func (e *Engine) leaderboardLocked() []core.RankedAgent {
	agents := e.registry.All()
	sort.SliceStable(agents, func(i, j int) bool { return agents[i].Reputation > agents[j].Reputation })
	out := make([]core.RankedAgent, len(agents))
	for i, a := range agents {
		out[i] = core.RankedAgent{
			Rank:       i + 1,
			Name:       a.Name,
			Wallet:     a.Wallet,
			Kind:       a.Kind,
			Reputation: a.Reputation,
		}
	}
	return out
}

func (e *Engine) stateLocked() core.SimulationState {
	vouches := make([]string, 0, len(e.vouches))
	for k := range e.vouches {
		vouches = append(vouches, k)
	}
	sort.Strings(vouches)
	return core.SimulationState{
		Step:             e.step,
		TotalAccusations: e.totalAccusations,
		NextEntryID:      e.nextID,
		Vouches:          vouches,
	}
}
