package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/garrettladley/slackerp/internal/xslog"
)

var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue runs jobs on a fixed pool of goroutines in this process.
// Pending jobs are lost on exit.
type MemoryQueue struct {
	runner  *Runner
	workers int
	jobs    chan Job
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool

	// retryMu is never held across a blocking send.
	retryMu  sync.Mutex
	stopping bool
	// retries holds timers that have not fired yet. Shutdown stops them.
	retries map[*time.Timer]struct{}
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(runner *Runner, workers, buffer int, logger *slog.Logger) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	return &MemoryQueue{
		runner:  runner,
		workers: workers,
		jobs:    make(chan Job, buffer),
		logger:  logger,
		retries: make(map[*time.Timer]struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes jobs until ctx is cancelled, then drains what is buffered.
func (q *MemoryQueue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range q.workers {
		wg.Go(func() {
			for job := range q.jobs {
				q.process(ctx, job)
			}
		})
	}

	<-ctx.Done()
	q.retryMu.Lock()
	q.stopping = true
	for timer := range q.retries {
		timer.Stop()
	}
	if n := len(q.retries); n > 0 {
		q.logger.WarnContext(ctx, "dropping pending retries", slog.Int("count", n))
	}
	clear(q.retries)
	q.retryMu.Unlock()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	close(q.jobs)
	wg.Wait()
	return nil
}

func (q *MemoryQueue) process(ctx context.Context, job Job) {
	// Buffered jobs still run after shutdown starts.
	out := q.runner.Process(context.WithoutCancel(ctx), job)
	if !out.Retry {
		return
	}

	q.retryMu.Lock()
	defer q.retryMu.Unlock()
	if q.stopping {
		q.logger.WarnContext(ctx, "dropping retry", xslog.JobID(out.Next.ID.String()), xslog.Error(ErrQueueClosed))
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(out.Delay, func() {
		q.retryMu.Lock()
		_, pending := q.retries[timer]
		delete(q.retries, timer)
		q.retryMu.Unlock()
		if !pending {
			return
		}
		if err := q.Enqueue(ctx, out.Next); err != nil {
			q.logger.WarnContext(ctx, "dropping retry", xslog.JobID(out.Next.ID.String()), xslog.Error(err))
		}
	})
	q.retries[timer] = struct{}{}
}

func (q *MemoryQueue) pendingRetries() int {
	q.retryMu.Lock()
	defer q.retryMu.Unlock()
	return len(q.retries)
}
