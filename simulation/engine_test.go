package simulation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/masp/agent"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/ledger"
	"github.com/NethermindEth/masp/store"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeLedger struct {
	mu    sync.Mutex
	fail  bool
	calls []string
}

func (f *fakeLedger) record(call string) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.fail {
		return ledger.Receipt{}, errors.New("rpc unreachable")
	}
	return ledger.Receipt{TxHash: fmt.Sprintf("0x%02d", len(f.calls)), ContentHash: "0xhash", Mode: ledger.ModeOnChain}, nil
}

func (f *fakeLedger) RegisterAgent(_ context.Context, _, name string) (ledger.Receipt, error) {
	return f.record("register:" + name)
}

func (f *fakeLedger) RecordPost(_ context.Context, wallet, _ string) (ledger.Receipt, error) {
	return f.record("post:" + wallet)
}

func (f *fakeLedger) Accuse(_ context.Context, accuser, target, _ string) (ledger.Receipt, error) {
	return f.record("accuse:" + accuser + ">" + target)
}

func (f *fakeLedger) Mode() string     { return ledger.ModeOnChain }
func (f *fakeLedger) Endpoint() string { return "http://127.0.0.1:26657" }

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) Publish(eventType string, _ any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, eventType)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	opts = append([]Option{WithClock(clock)}, opts...)
	e, err := New(Config{Seed: 42}, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, clock
}

func addHosted(t *testing.T, e *Engine, names ...string) {
	t.Helper()
	for i, name := range names {
		_, err := e.CreateHostedAgent(context.Background(), agent.Config{
			Name:        name,
			Wallet:      fmt.Sprintf("0x%040d", i+1),
			Personality: "Analyst",
			Strategy:    "TruthSeeking",
		})
		require.NoError(t, err)
	}
}

func post(t *testing.T, e *Engine, name, content string) core.FeedEntry {
	t.Helper()
	entry, err := e.ExecuteDecision(name, core.Decision{Action: core.ActionPost, Content: content, Reasoning: "sharing"})
	require.NoError(t, err)
	require.NotNil(t, entry, "post %q was rejected", content)
	return *entry
}

func reputation(t *testing.T, e *Engine, name string) float64 {
	t.Helper()
	a, ok := e.Agent(name)
	require.True(t, ok)
	return a.Reputation
}

func setReputation(t *testing.T, e *Engine, name string, rep float64) {
	t.Helper()
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	a, ok := e.registry.Get(name)
	require.True(t, ok)
	a.Reputation = rep
}

func TestVouchCreditedOncePerPair(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")

	topics := []string{
		"Rollup sequencers need decentralization soon",
		"Validator churn looks healthy lately",
		"Bridge audits remain underfunded everywhere",
		"Stablecoin liquidity migrates toward L2",
		"Governance turnout keeps dropping quarterly",
	}
	var ids []int64
	for _, c := range topics {
		ids = append(ids, post(t, e, "ann", c).ID)
	}
	for _, id := range ids {
		entry, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionLike, Target: "ann", TargetPostID: core.PostID(id), Reasoning: "agree"})
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "Liked ann's contribution.", entry.Content)
		assert.Equal(t, id, *entry.ParentPostID)
	}

	assert.Equal(t, core.InitialReputation+2, reputation(t, e, "ann"))
	assert.True(t, e.HasVouched("bob", "ann"))
	assert.False(t, e.HasVouched("ann", "bob"))
	assert.Len(t, e.Feed(200), 10)

	// A reply from the same voucher earns nothing more.
	reply, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionReply, Target: "ann", Content: "Which sequencer designs do you favour here?", Reasoning: "curious"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, ids[4], *reply.ParentPostID, "falls back to the newest post by the target")
	assert.Equal(t, core.InitialReputation+2, reputation(t, e, "ann"))
}

func TestDuplicateLikeIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	p := post(t, e, "ann", "Sequencer revenue is finally public")

	like := core.Decision{Action: core.ActionLike, Target: "ann", TargetPostID: core.PostID(p.ID), Reasoning: "nice"}
	first, err := e.ExecuteDecision("bob", like)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := e.ExecuteDecision("bob", like)
	require.NoError(t, err)
	assert.Nil(t, second)

	feed := e.Feed(10)
	assert.Len(t, feed, 2)
	assert.Equal(t, 1, feed[1].Likes)
	assert.Equal(t, core.InitialReputation+2, reputation(t, e, "ann"))
}

func TestDuplicateReplyIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	p := post(t, e, "ann", "Blob fees dropped after the upgrade")

	first, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionReply, Target: "ann", TargetPostID: core.PostID(p.ID), Content: "Do you expect them to stay low?", Reasoning: "curious"})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, p.ID, *first.ParentPostID)
	assert.Equal(t, "ann", first.Target)
	assert.Equal(t, core.InitialReputation+1, reputation(t, e, "ann"))
	assert.True(t, e.HasVouched("bob", "ann"))

	second, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionReply, Target: "ann", TargetPostID: core.PostID(p.ID), Content: "Following up on rollup demand instead", Reasoning: "more"})
	require.NoError(t, err)
	assert.Nil(t, second)

	feed := e.Feed(10)
	require.Len(t, feed, 2)
	assert.Equal(t, p.ID, feed[1].ID)
	assert.Equal(t, 1, feed[1].Comments)
	assert.Equal(t, core.InitialReputation+1, reputation(t, e, "ann"))
}

func TestRejections(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	p := post(t, e, "ann", "Data availability costs keep falling")
	accusation, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionAccuse, Target: "ann", Content: "ann is farming likes", Reasoning: "pattern"})
	require.NoError(t, err)
	require.NotNil(t, accusation)

	cases := map[string]struct {
		actor    string
		decision core.Decision
	}{
		"self like":         {"ann", core.Decision{Action: core.ActionLike, Target: "ann", TargetPostID: core.PostID(p.ID), Reasoning: "me"}},
		"self reply":        {"ann", core.Decision{Action: core.ActionReply, Target: "ann", Content: "adding more", Reasoning: "me"}},
		"like unknown post": {"bob", core.Decision{Action: core.ActionLike, Target: "carol", TargetPostID: core.PostID(99), Reasoning: "?"}},
		"like non-post":     {"ann", core.Decision{Action: core.ActionLike, Target: "nobody", TargetPostID: core.PostID(accusation.ID), Reasoning: "?"}},
		"invalid decision":  {"bob", core.Decision{Action: core.ActionPost, Reasoning: "no content"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			before := len(e.Feed(200))
			repAnn, repBob := reputation(t, e, "ann"), reputation(t, e, "bob")
			entry, err := e.ExecuteDecision(tc.actor, tc.decision)
			require.NoError(t, err)
			assert.Nil(t, entry)
			assert.Len(t, e.Feed(200), before)
			assert.Equal(t, repAnn, reputation(t, e, "ann"))
			assert.Equal(t, repBob, reputation(t, e, "bob"))
		})
	}

	_, err = e.ExecuteDecision("nobody", core.Decision{Action: core.ActionPost, Content: "x", Reasoning: "y"})
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestNearDuplicateSuppressed(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	post(t, e, "ann", "Monad throughput keeps improving this cycle")

	for _, content := range []string{
		"Monad throughput keeps improving this cycle",
		"  monad THROUGHPUT keeps\nimproving this cycle ",
		"This cycle Monad throughput keeps improving",
	} {
		entry, err := e.ExecuteDecision("ann", core.Decision{Action: core.ActionPost, Content: content, Reasoning: "again"})
		require.NoError(t, err)
		assert.Nil(t, entry, content)
	}
	assert.Len(t, e.Feed(10), 1)

	// Another author may say the same thing.
	post(t, e, "bob", "Monad throughput keeps improving this cycle")
	// And a clearly different post goes through.
	post(t, e, "ann", "Parallel execution benchmarks need independent review")
}

func TestHighOverlapSuppressed(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann")

	words := make([]string, 50)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	post(t, e, "ann", strings.Join(words, " "))

	// 47 of 50 distinct words shared: 0.94 of the larger set.
	variant := append(append([]string{}, words[:47]...), "x1", "x2", "x3")
	entry, err := e.ExecuteDecision("ann", core.Decision{Action: core.ActionPost, Content: strings.Join(variant, " "), Reasoning: "again"})
	require.NoError(t, err)
	assert.Nil(t, entry)

	// 45 of 50 is 0.90 and passes.
	variant = append(append([]string{}, words[:45]...), "x1", "x2", "x3", "x4", "x5")
	entry, err = e.ExecuteDecision("ann", core.Decision{Action: core.ActionPost, Content: strings.Join(variant, " "), Reasoning: "different enough"})
	require.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Len(t, e.Feed(10), 2)
}

func TestSuppressionHappensBeforeSlash(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	post(t, e, "ann", "bob keeps recycling the same claims")

	entry, err := e.ExecuteDecision("ann", core.Decision{Action: core.ActionAccuse, Target: "bob", Content: "bob keeps recycling the same claims", Reasoning: "spam"})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, core.InitialReputation, reputation(t, e, "bob"))
	assert.Zero(t, e.State().TotalAccusations)
}

func TestAccusationSlash(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	setReputation(t, e, "ann", 47)
	setReputation(t, e, "bob", 60)

	entry, err := e.ExecuteDecision("ann", core.Decision{Action: core.ActionAccuse, Target: "bob", Content: "bob is coordinating a like ring", Reasoning: "evidence"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.AccusationCount)
	assert.Equal(t, 56.0, reputation(t, e, "bob"))
	assert.Equal(t, 47.0, reputation(t, e, "ann"))
	assert.Equal(t, int64(1), e.State().TotalAccusations)

	setReputation(t, e, "ann", 3)
	_, err = e.ExecuteDecision("ann", core.Decision{Action: core.ActionAccuse, Target: "bob", Content: "still suspicious about bob", Reasoning: "followup"})
	require.NoError(t, err)
	assert.Equal(t, 55.0, reputation(t, e, "bob"), "slash never drops below one")

	ctx, err := e.BuildContext("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, ctx.Self.AccusationsReceived)
	assert.Equal(t, int64(2), ctx.TotalAccusations)
}

func TestSelfAccusationBecomesPost(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "solo")

	entry, err := e.ExecuteDecision("solo", core.Decision{Action: core.ActionAccuse, Target: "solo", Content: "I accuse myself", Reasoning: "odd"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, core.ActionPost, entry.Action)
	assert.Empty(t, entry.Target)
	assert.Equal(t, noAccuseTarget, entry.Content)
	assert.Zero(t, e.State().TotalAccusations)
	assert.Equal(t, core.InitialReputation, reputation(t, e, "solo"))
}

func TestFeedEviction(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann")
	for i := 1; i <= MaxFeedEntries+1; i++ {
		post(t, e, "ann", fmt.Sprintf("entry %d alpha", i))
	}

	e.stateMu.RLock()
	assert.Len(t, e.feed, MaxFeedEntries)
	assert.Equal(t, int64(2), e.feed[0].ID)
	assert.Equal(t, int64(MaxFeedEntries+1), e.feed[len(e.feed)-1].ID)
	e.stateMu.RUnlock()

	a, ok := e.registry.Get("ann")
	require.True(t, ok)
	assert.Len(t, a.Memory(-1), agent.MaxMemoryEntries)
}

func TestReasoningNormalized(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann")
	long := ""
	for i := 0; i < 30; i++ {
		long += "reasoning "
	}
	entry, err := e.ExecuteDecision("ann", core.Decision{Action: core.ActionPost, Content: "first thought", Reasoning: long})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, []rune(entry.Reasoning), 200)

	entry, err = e.ExecuteDecision("ann", core.Decision{Action: core.ActionPost, Content: "second unrelated idea", Reasoning: "   "})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "No reasoning provided", entry.Reasoning)
}

func TestStepEmptyRegistry(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Step(context.Background())
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestStepSingleAgentWaitsForSchedule(t *testing.T) {
	e, clock := newTestEngine(t)
	addHosted(t, e, "solo")
	ctx := context.Background()

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Step)
	assert.Empty(t, res.Actions)

	// A lone agent can only post; rejected likes leave it ready for the next step.
	emitted := false
	for i := 0; i < 20 && !emitted; i++ {
		clock.Advance(70 * time.Second)
		res, err = e.Step(ctx)
		require.NoError(t, err)
		emitted = len(res.Actions) == 1
	}
	require.True(t, emitted)
	assert.Equal(t, "solo", res.Actions[0].Agent)
	assert.Equal(t, res.Step, res.Actions[0].Step)

	// Rescheduled at least 18s * 1.45 ahead.
	res, err = e.Step(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	assert.Len(t, res.Leaderboard, 1)
}

func TestStepMarksImpressionsOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")
	p := post(t, e, "ann", "Fee markets are quiet this week")

	for i := 0; i < 2; i++ {
		dc, err := e.BuildContext("bob")
		require.NoError(t, err)
		require.Len(t, dc.RecentPosts, 1)
	}
	_, err := e.BuildContext("ann")
	require.NoError(t, err)

	feed := e.Feed(1)
	require.Len(t, feed, 1)
	assert.Equal(t, p.ID, feed[0].ID)
	assert.Equal(t, 1, feed[0].Views)
	assert.True(t, feed[0].ViewedBy["bob"])
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() []core.FeedEntry {
		e, clock := newTestEngine(t)
		addHosted(t, e, "ann", "bob", "carol")
		for i := 0; i < 12; i++ {
			_, err := e.Step(context.Background())
			require.NoError(t, err)
			clock.Advance(10 * time.Second)
		}
		return e.Feed(200)
	}
	a, b := run(), run()
	require.NotEmpty(t, a)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Agent, b[i].Agent)
		assert.Equal(t, a[i].Action, b[i].Action)
		assert.Equal(t, a[i].Content, b[i].Content)
	}
}

func TestTickSkipsWhileStepRunning(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann")

	e.stepMu.Lock()
	assert.False(t, e.tick(context.Background()))
	e.stepMu.Unlock()
	assert.Zero(t, e.State().Step)

	assert.True(t, e.tick(context.Background()))
	assert.Equal(t, int64(1), e.State().Step)
}

func TestLifecycle(t *testing.T) {
	events := &eventLog{}
	e, clock := newTestEngine(t, WithPublisher(events))
	addHosted(t, e, "ann")

	require.NoError(t, e.Start(time.Second))
	assert.ErrorIs(t, e.Start(time.Second), ErrAlreadyRunning)
	assert.True(t, e.Running())
	assert.Eventually(t, func() bool { return e.State().Step == 1 }, 2*time.Second, 5*time.Millisecond)

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return e.State().Step == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, e.Stop())
	assert.False(t, e.Stop())
	assert.False(t, e.State().Running)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Contains(t, events.types, "SIMULATION_STARTED")
	assert.Contains(t, events.types, "STEP_COMPLETED")
	assert.Contains(t, events.types, "SIMULATION_STOPPED")
}

func TestLedgerFailureDoesNotAbort(t *testing.T) {
	l := &fakeLedger{fail: true}
	e, _ := newTestEngine(t, WithLedger(l))
	addHosted(t, e, "ann", "bob")

	post(t, e, "ann", "Chain halted but the feed keeps going")
	_, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionAccuse, Target: "ann", Content: "ann hides downtime", Reasoning: "suspicion"})
	require.NoError(t, err)
	e.FlushLedger()

	assert.Len(t, e.Feed(10), 2)
	proof := e.ChainProof(10)
	assert.Empty(t, proof.Events)
	l.mu.Lock()
	assert.Len(t, l.calls, 4)
	l.mu.Unlock()
}

func TestLedgerReceiptsAndChainProof(t *testing.T) {
	l := &fakeLedger{}
	e, _ := newTestEngine(t, WithLedger(l))
	addHosted(t, e, "ann", "bob")

	p := post(t, e, "ann", "Publishing validator uptime numbers")
	_, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionAccuse, Target: "ann", Content: "ann cherry-picks uptime windows", Reasoning: "bias"})
	require.NoError(t, err)
	_, err = e.ExecuteDecision("bob", core.Decision{Action: core.ActionLike, Target: "ann", TargetPostID: core.PostID(p.ID), Reasoning: "fair"})
	require.NoError(t, err)
	e.FlushLedger()

	feed := e.Feed(10)
	require.Len(t, feed, 3)
	assert.Empty(t, feed[0].ChainTxHash, "likes are not mirrored")
	assert.NotEmpty(t, feed[1].ChainTxHash)
	assert.Equal(t, "0xhash", feed[2].ChainContentHash)

	proof := e.ChainProof(0)
	assert.Equal(t, ledger.ModeOnChain, proof.Mode)
	assert.True(t, proof.RPCConfigured)
	require.Len(t, proof.Events, 4)
	assert.Equal(t, ChainAccuseAgent, proof.Events[0].Action)
	assert.Equal(t, "ann", proof.Events[0].Target)
	assert.Equal(t, ChainRecordPost, proof.Events[1].Action)
	assert.Equal(t, ChainRegisterAgent, proof.Events[3].Action)

	assert.Len(t, e.ChainProof(1).Events, 1)
	assert.Len(t, e.ChainProof(-5).Events, 1)
}

func TestFeedAdmin(t *testing.T) {
	e, _ := newTestEngine(t)
	addHosted(t, e, "ann", "bob")

	post(t, e, "ann", "First observation about gas")
	_, err := e.ExecuteDecision("bob", agent.FallbackDecision("bob", "HTTP 500"))
	require.NoError(t, err)
	post(t, e, "ann", "Second observation about blobs")

	feed := e.Feed(2)
	require.Len(t, feed, 2)
	assert.Equal(t, int64(3), feed[0].ID)
	assert.Equal(t, int64(2), feed[1].ID)

	assert.Equal(t, 1, e.RemoveFallbackEntries())
	assert.Equal(t, 0, e.RemoveFallbackEntries())
	assert.Len(t, e.Feed(200), 2)

	e.ClearFeed()
	st := e.State()
	assert.Zero(t, st.FeedSize)
	assert.Zero(t, st.Step)
	assert.Equal(t, 2, st.Agents)

	next := post(t, e, "ann", "Fresh start after the reset")
	assert.Equal(t, int64(4), next.ID, "ids are never reused")
}

func TestAgentAdmin(t *testing.T) {
	e, _ := newTestEngine(t)

	a, err := e.CreateHostedAgent(context.Background(), agent.Config{Name: "rand"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.Config().Personality)
	assert.NotEmpty(t, a.Config().Strategy)
	assert.Regexp(t, `^0x[0-9a-fA-F]{40}$`, a.Wallet)

	_, err = e.CreateHostedAgent(context.Background(), agent.Config{Name: "rand"})
	assert.ErrorIs(t, err, ErrAgentExists)
	_, err = e.CreateHostedAgent(context.Background(), agent.Config{Name: "bad", Personality: "Nope"})
	assert.ErrorIs(t, err, agent.ErrUnknownPersonality)
	_, err = e.CreateLLMAgent(context.Background(), agent.Config{Name: "model", Provider: "groq"})
	assert.Error(t, err, "missing api key")

	views := e.ListAgents()
	require.Len(t, views, 1)
	assert.Equal(t, core.KindHosted, views[0].Kind)

	require.NoError(t, e.RemoveAgent("rand"))
	assert.ErrorIs(t, e.RemoveAgent("rand"), ErrAgentNotFound)
	assert.Empty(t, e.Leaderboard())
}

func TestAgentReturnsDetachedView(t *testing.T) {
	e, clock := newTestEngine(t)
	addHosted(t, e, "ann", "bob", "cy")

	view, ok := e.Agent("ann")
	require.True(t, ok)
	assert.Equal(t, "ann", view.Name)
	assert.Equal(t, core.KindHosted, view.Kind)
	assert.Equal(t, "Analyst", view.Personality)

	view.Reputation = -1
	assert.Equal(t, core.InitialReputation, reputation(t, e, "ann"))

	_, ok = e.Agent("nobody")
	assert.False(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, _ = e.Agent("bob")
		}
	}()
	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		_, err := e.Step(context.Background())
		require.NoError(t, err)
	}
	<-done
}

func TestCreateExternalAgentProbe(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"supported_protocols":["masp/2.0"]}`))
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"supported_protocols":["masp/1.0"]}`))
	}))
	defer good.Close()

	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, probe, err := e.CreateExternalAgent(ctx, agent.Config{Name: "strict", Endpoint: bad.URL}, true)
	assert.ErrorIs(t, err, ErrProbeFailed)
	assert.False(t, probe.OK)

	a, probe, err := e.CreateExternalAgent(ctx, agent.Config{Name: "lenient", Endpoint: bad.URL}, false)
	require.NoError(t, err)
	assert.False(t, probe.OK)
	assert.Equal(t, core.KindExternal, a.Kind)

	_, probe, err = e.CreateExternalAgent(ctx, agent.Config{Name: "good", Endpoint: good.URL}, true)
	require.NoError(t, err)
	assert.True(t, probe.OK)

	_, _, err = e.CreateExternalAgent(ctx, agent.Config{Name: "typo", Endpoint: "ftp://nope"}, false)
	assert.ErrorIs(t, err, agent.ErrInvalidEndpoint)
	assert.Len(t, e.ListAgents(), 2)
}

func TestRestore(t *testing.T) {
	backend := store.NewMemory()
	w := store.NewAsync(backend, nil)
	defer w.Close()

	e, _ := newTestEngine(t, WithStore(w))
	addHosted(t, e, "ann", "bob")
	p := post(t, e, "ann", "Persistence matters for long simulations")
	_, err := e.ExecuteDecision("bob", core.Decision{Action: core.ActionLike, Target: "ann", TargetPostID: core.PostID(p.ID), Reasoning: "yes"})
	require.NoError(t, err)
	_, err = e.Step(context.Background())
	require.NoError(t, err)
	w.Flush()

	snap, err := backend.Load(context.Background())
	require.NoError(t, err)

	restored, _ := newTestEngine(t)
	require.NoError(t, restored.Restore(context.Background(), snap))
	assert.Equal(t, core.InitialReputation+2, reputation(t, restored, "ann"))
	assert.True(t, restored.HasVouched("bob", "ann"))
	assert.Len(t, restored.Feed(10), 2)
	assert.Equal(t, int64(1), restored.State().Step)

	next := post(t, restored, "ann", "Picking up where we left off")
	assert.Equal(t, int64(3), next.ID)

	assert.Error(t, restored.Restore(context.Background(), snap))
}
