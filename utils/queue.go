package utils

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// Queue runs submitted tasks in the background. With one worker tasks run
// in submission order.
type Queue struct {
	pool    *workerpool.WorkerPool
	pending sync.WaitGroup
}

// NewQueue starts a queue with the given number of workers.
func NewQueue(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{pool: workerpool.New(workers)}
}

// Submit enqueues task without blocking the caller.
func (q *Queue) Submit(task func()) {
	q.pending.Add(1)
	q.pool.Submit(func() {
		defer q.pending.Done()
		task()
	})
}

// Wait blocks until every task submitted so far has finished.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close waits for queued tasks and stops the workers.
func (q *Queue) Close() {
	q.pool.StopWait()
}
