package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/xslog"
)

var ErrUnknownKind = errors.New("unknown job kind")

type Handler func(ctx context.Context, job Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type Runner struct {
	mu          sync.RWMutex
	handlers    map[Kind]Handler
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

type RunnerOption func(*Runner)

func WithMaxAttempts(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.backoff = d
		}
	}
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		handlers:    make(map[Kind]Handler),
		maxAttempts: 5,
		backoff:     2 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Outcome says what a backend should do after one attempt.
type Outcome struct {
	Retry bool
	// Next is the job to enqueue again after Delay when Retry is set.
	Next  Job
	Delay time.Duration
	Err   error
}

// Process runs one attempt of job. Panics count as failures.
func (r *Runner) Process(ctx context.Context, job Job) Outcome {
	logger := r.logger.With(xslog.JobID(job.ID.String()), xslog.JobKind(string(job.Kind)), xslog.Attempt(job.Attempt))
	ctx = xslog.WithLogger(ctx, logger)

	err := r.run(ctx, job)
	if err == nil {
		metrics.Job(string(job.Kind), metrics.OutcomeOK)
		logger.DebugContext(ctx, "job done")
		return Outcome{}
	}

	if IsPermanent(err) || errors.Is(err, ErrUnknownKind) || job.Attempt+1 >= r.maxAttempts {
		metrics.Job(string(job.Kind), metrics.OutcomeError)
		logger.ErrorContext(ctx, "job failed", xslog.Error(err))
		return Outcome{Err: err}
	}

	next := job
	next.Attempt++
	delay := r.backoff << job.Attempt
	metrics.Job(string(job.Kind), metrics.OutcomeRetry)
	logger.WarnContext(ctx, "job failed, retrying", xslog.Error(err), xslog.Duration(delay))
	return Outcome{Retry: true, Next: next, Delay: delay, Err: err}
}

func (r *Runner) run(ctx context.Context, job Job) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Kind]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			r.logger.ErrorContext(ctx, "job panicked", xslog.ErrorGroupWithStack(rec))
		}
	}()
	return h(ctx, job)
}
