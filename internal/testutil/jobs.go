package testutil

import (
	"context"
	"sync"

	"github.com/garrettladley/slackerp/internal/jobs"
)

// Queue keeps enqueued jobs until Drain runs them.
type Queue struct {
	mu   sync.Mutex
	Jobs []jobs.Job
	Err  error
}

var _ jobs.Queue = (*Queue)(nil)

func (q *Queue) Enqueue(_ context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Jobs = append(q.Jobs, job)
	return nil
}

func (q *Queue) Kinds() []jobs.Kind {
	q.mu.Lock()
	defer q.mu.Unlock()
	kinds := make([]jobs.Kind, len(q.Jobs))
	for i, j := range q.Jobs {
		kinds[i] = j.Kind
	}
	return kinds
}

// Drain runs every pending job once through r, in order, and returns the
// outcomes. Retries are not re-run.
func (q *Queue) Drain(ctx context.Context, r *jobs.Runner) []jobs.Outcome {
	q.mu.Lock()
	pending := q.Jobs
	q.Jobs = nil
	q.mu.Unlock()

	out := make([]jobs.Outcome, 0, len(pending))
	for _, j := range pending {
		out = append(out, r.Process(ctx, j))
	}
	return out
}
