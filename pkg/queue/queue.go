// Package queue implements a priority-ordered, bounded-concurrency work
// queue for external API calls. Failed tasks are rescheduled ahead of
// their priority peers after an exponential backoff, up to the task's
// own retry budget.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MacroPulse/internal/service/retry"
	"MacroPulse/pkg/logger"
)

var (
	ErrNotRunning = errors.New("queue not running")
	ErrQueueFull  = errors.New("queue full")
)

// Config contains the configuration for the queue.
type Config struct {
	ConcurrentLimit int           // max tasks in flight
	MaxDepth        int           // pending task cap, 0 = unbounded
	RetryPolicy     retry.Config  // backoff for rescheduled tasks
	DrainTimeout    time.Duration // grace period on Stop
}

// PriorityQueue runs tasks with bounded concurrency in priority order.
type PriorityQueue struct {
	logger *logger.Logger
	cfg    Config

	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	seq     uint64
	active  int
	running bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a priority queue. It must be started before Submit.
func New(lgr *logger.Logger, cfg Config) *PriorityQueue {
	if cfg.ConcurrentLimit <= 0 {
		cfg.ConcurrentLimit = 4
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.RetryPolicy.MaxDelay <= 0 {
		cfg.RetryPolicy = retry.DefaultConfig()
	}
	q := &PriorityQueue{logger: lgr, cfg: cfg}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the dispatcher.
func (q *PriorityQueue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.mu.Unlock()

	q.wg.Add(1)
	go q.dispatch()
	q.logger.Info("priority queue started",
		logger.Int("concurrent_limit", q.cfg.ConcurrentLimit))
	return nil
}

// Stop drains in-flight tasks up to the configured timeout.
func (q *PriorityQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.cond.Broadcast()
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("queue drain: %w", ctx.Err())
	case <-doneCh:
		q.logger.Info("priority queue stopped")
		return nil
	}
}

// Submit enqueues a task. Returns ErrQueueFull past MaxDepth.
func (q *PriorityQueue) Submit(t *Task) error {
	if t == nil || t.Run == nil {
		return fmt.Errorf("task must have a Run function")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return ErrNotRunning
	}
	if q.cfg.MaxDepth > 0 && q.pending.Len() >= q.cfg.MaxDepth {
		return ErrQueueFull
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	q.seq++
	t.seq = q.seq
	heap.Push(&q.pending, t)
	q.cond.Signal()
	return nil
}

// Depth reports the number of pending tasks.
func (q *PriorityQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Active reports the number of tasks in flight.
func (q *PriorityQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *PriorityQueue) dispatch() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for q.running && (q.pending.Len() == 0 || q.active >= q.cfg.ConcurrentLimit) {
			q.cond.Wait()
		}
		if !q.running {
			q.mu.Unlock()
			return
		}
		t := heap.Pop(&q.pending).(*Task)
		q.active++
		q.mu.Unlock()

		q.wg.Add(1)
		go q.execute(t)
	}
}

func (q *PriorityQueue) execute(t *Task) {
	defer q.wg.Done()
	err := q.runTask(t)

	q.mu.Lock()
	q.active--
	q.cond.Signal()
	q.mu.Unlock()

	if err == nil {
		return
	}
	t.attempts++
	if t.attempts > t.MaxRetries {
		q.logger.Error("task failed permanently",
			logger.String("task", t.ID),
			logger.Int("attempts", t.attempts),
			logger.Error(err))
		return
	}

	delay := retry.Backoff(q.cfg.RetryPolicy, t.attempts-1)
	q.logger.Warn("task rescheduled",
		logger.String("task", t.ID),
		logger.Int("attempt", t.attempts),
		logger.Error(err))

	// Re-enqueue after backoff. The original sequence number is kept so
	// the task sorts ahead of same-priority work submitted after it.
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if !q.running {
			return
		}
		heap.Push(&q.pending, t)
		q.cond.Signal()
	})
}

func (q *PriorityQueue) runTask(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return t.Run(q.ctx)
}

// taskHeap orders by priority descending, then sequence ascending.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
