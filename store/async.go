package store

import (
	"context"
	"time"

	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/utils"
)

const writeTimeout = 10 * time.Second

// Async turns a Store into a Writer. Writes are applied in order on a single
// background worker. Delivery is at-most-once: a crash loses queued writes
// and failures are only logged.
type Async struct {
	backend Store
	queue   *utils.Queue
	log     *logger.Logger
}

func NewAsync(backend Store, log *logger.Logger) *Async {
	if log == nil {
		log = logger.Nop()
	}
	return &Async{backend: backend, queue: utils.NewQueue(1), log: log}
}

func (a *Async) submit(op string, fn func(ctx context.Context) error) {
	a.queue.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.log.Error("store "+op, "%v", err)
			return
		}
		a.log.Store(op, "ok")
	})
}

func (a *Async) UpsertAgent(rec AgentRecord) {
	a.submit("upsert agent", func(ctx context.Context) error { return a.backend.UpsertAgent(ctx, rec) })
}

func (a *Async) DeleteAgent(name string) {
	a.submit("delete agent", func(ctx context.Context) error { return a.backend.DeleteAgent(ctx, name) })
}

func (a *Async) AppendFeedEntry(entry core.FeedEntry) {
	entry = entry.Clone()
	a.submit("append feed entry", func(ctx context.Context) error { return a.backend.AppendFeedEntry(ctx, entry) })
}

func (a *Async) UpdateFeedCounters(entry core.FeedEntry) {
	entry = entry.Clone()
	a.submit("update feed counters", func(ctx context.Context) error { return a.backend.UpdateFeedCounters(ctx, entry) })
}

func (a *Async) SaveState(state core.SimulationState) {
	state.Vouches = append([]string(nil), state.Vouches...)
	a.submit("save state", func(ctx context.Context) error { return a.backend.SaveState(ctx, state) })
}

func (a *Async) ClearFeed() {
	a.submit("clear feed", a.backend.ClearFeed)
}

func (a *Async) DeleteFeedEntries(ids []int64) {
	ids = append([]int64(nil), ids...)
	a.submit("delete feed entries", func(ctx context.Context) error { return a.backend.DeleteFeedEntries(ctx, ids) })
}

// Flush blocks until every write submitted so far has been applied.
func (a *Async) Flush() {
	a.queue.Wait()
}

// Close flushes pending writes and stops the worker.
func (a *Async) Close() {
	a.queue.Close()
}
