// Package requeue re-offers deferred tasks once their retry window
// has passed. Deferrals land in a min-heap keyed by ready time; a
// background loop drains ready entries and flips the task's status
// back to QUEUED so the broker picks it up again.
//
// A deferral that carries no retry estimate (policy denial with an
// unknown window, dirty energy with no forecast) falls back to
// exponential backoff per attempt. Tasks deferred more than MaxDeferrals
// times are left parked and counted as exhausted; an operator has to
// look at those.
package requeue

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"

	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/infra/sqlite"
)

// Config controls deferral backoff and exhaustion.
type Config struct {
	MaxDeferrals int           // deferrals before a task is parked (default 5)
	BaseBackoff  time.Duration // fallback backoff, doubles per attempt (default 5m)
	MaxBackoff   time.Duration // backoff cap (default 4h)
	Interval     time.Duration // drain cadence in Run (default 30s)
}

// DefaultConfig returns production requeue defaults.
func DefaultConfig() Config {
	return Config{
		MaxDeferrals: 5,
		BaseBackoff:  5 * time.Minute,
		MaxBackoff:   4 * time.Hour,
		Interval:     30 * time.Second,
	}
}

// Entry is one parked deferral.
type Entry struct {
	TaskID     string
	Reason     string
	Attempt    int
	ReadyAt    time.Time
	DeferredAt time.Time
}

// Queue holds deferred tasks until they are ready to re-offer.
// Safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	config    Config
	heap      entryHeap
	attempts  map[string]int
	exhausted int64
	total     int64
	now       func() time.Time
}

// New creates a deferral requeue.
func New(cfg Config) *Queue {
	return &Queue{
		config:   cfg,
		attempts: make(map[string]int),
		now:      time.Now,
	}
}

// Schedule parks a deferred task until retryIn has passed. A zero
// retryIn falls back to exponential backoff on the task's deferral
// count. Returns false when the task has exhausted its deferrals and
// stays parked.
func (q *Queue) Schedule(taskID, reason string, retryIn time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	attempt := q.attempts[taskID] + 1
	q.attempts[taskID] = attempt

	if attempt > q.config.MaxDeferrals {
		q.exhausted++
		log.Printf("[requeue] task %s exhausted %d deferrals — parked (%s)", taskID, attempt-1, reason)
		return false
	}

	if retryIn <= 0 {
		retryIn = q.backoff(attempt)
	}

	now := q.now()
	heap.Push(&q.heap, Entry{
		TaskID:     taskID,
		Reason:     reason,
		Attempt:    attempt,
		ReadyAt:    now.Add(retryIn),
		DeferredAt: now,
	})
	q.total++
	return true
}

// backoff doubles per attempt from the base, capped.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.config.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > q.config.MaxBackoff {
			return q.config.MaxBackoff
		}
	}
	return d
}

// NextReady pops the next entry whose ready time has passed.
func (q *Queue) NextReady() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil, false
	}
	if q.now().Before(q.heap[0].ReadyAt) {
		return nil, false
	}
	e := heap.Pop(&q.heap).(Entry)
	return &e, true
}

// DrainReady pops every entry that is ready, earliest first.
func (q *Queue) DrainReady() []Entry {
	var ready []Entry
	for {
		e, ok := q.NextReady()
		if !ok {
			break
		}
		ready = append(ready, *e)
	}
	return ready
}

// Forget drops a task's deferral history. Called when the task finally
// runs or is removed from the queue.
func (q *Queue) Forget(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.attempts, taskID)
}

// Len returns how many deferrals are parked.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Stats is a point-in-time view of the requeue.
type Stats struct {
	Parked    int   `json:"parked"`
	Total     int64 `json:"total_deferrals"`
	Exhausted int64 `json:"exhausted"`
}

// Snapshot returns current requeue statistics.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Parked: q.heap.Len(), Total: q.total, Exhausted: q.exhausted}
}

// Run drains ready deferrals on a fixed cadence, flipping each task
// back to QUEUED in the fact base. Blocks until ctx is done.
func (q *Queue) Run(ctx context.Context, db *sqlite.DB) {
	interval := q.config.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range q.DrainReady() {
				if err := db.UpdateTaskStatus(e.TaskID, domain.TaskQueued); err != nil {
					if err != domain.ErrTaskNotFound {
						log.Printf("[requeue] task %s: requeue failed: %v", e.TaskID, err)
					}
					continue
				}
				log.Printf("[requeue] task %s re-queued after deferral %d (%s)", e.TaskID, e.Attempt, e.Reason)
			}
		}
	}
}

// ─── Heap ───────────────────────────────────────────────────────────────────
// Min-heap on ReadyAt, FIFO on ties.

type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].ReadyAt.Equal(h[j].ReadyAt) {
		return h[i].DeferredAt.Before(h[j].DeferredAt)
	}
	return h[i].ReadyAt.Before(h[j].ReadyAt)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
