// Package scheduler runs named tasks on recurring schedules inside the
// server process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/robfig/cron/v3"
)

var ErrUnknownTask = errors.New("unknown task")

// Schedule returns the first activation strictly after now.
type Schedule = cron.Schedule

// Every fires at a fixed interval measured from the previous activation.
// Intervals are rounded to whole seconds, with one second as the minimum.
func Every(d time.Duration) Schedule { return cron.Every(d) }

// DailyAt fires once a day at hour:minute wall clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return nil, fmt.Errorf("daily at %02d:%02d: %w", hour, minute, err)
	}
	if spec, ok := s.(*cron.SpecSchedule); ok {
		spec.Location = loc
	}
	return s, nil
}

type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	schedule Schedule
	fn       TaskFunc
}

type Manager struct {
	mu     sync.Mutex
	tasks  []task
	logger *slog.Logger
}

func New(logger *slog.Logger) *Manager {
	return &Manager{logger: logger}
}

func (m *Manager) Add(name string, s Schedule, fn TaskFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task{name: name, schedule: s, fn: fn})
}

// Names lists the registered tasks in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.tasks))
	for i, t := range m.tasks {
		names[i] = t.name
	}
	return names
}

// RunNow runs the named task once, outside its schedule.
func (m *Manager) RunNow(ctx context.Context, name string) error {
	m.mu.Lock()
	i := slices.IndexFunc(m.tasks, func(t task) bool { return t.name == name })
	var found task
	if i >= 0 {
		found = m.tasks[i]
	}
	m.mu.Unlock()
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.execute(ctx, found)
}

// Run blocks until ctx is cancelled, then waits for running tasks. A failing
// task is logged and runs again at its next activation. An activation that
// finds the previous run of the same task still going is skipped.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	tasks := slices.Clone(m.tasks)
	m.mu.Unlock()

	logger := cronLogger{logger: m.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	for _, t := range tasks {
		c.Schedule(t.schedule, cron.FuncJob(func() { _ = m.execute(ctx, t) }))
		m.logger.DebugContext(ctx, "task scheduled", xslog.Task(t.name), slog.Time("next", t.schedule.Next(time.Now())))
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (m *Manager) execute(ctx context.Context, t task) (err error) {
	logger := m.logger.With(xslog.Task(t.name))
	ctx = xslog.WithLogger(ctx, logger)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "task panicked", xslog.ErrorGroupWithStack(rec))
			err = fmt.Errorf("task %s panicked: %v", t.name, rec)
		}
		if err != nil {
			metrics.ScheduledRun(t.name, metrics.OutcomeError)
			return
		}
		metrics.ScheduledRun(t.name, metrics.OutcomeOK)
	}()

	if err := t.fn(ctx); err != nil {
		logger.ErrorContext(ctx, "task failed", xslog.Error(err), xslog.Duration(time.Since(start)))
		return err
	}
	logger.InfoContext(ctx, "task finished", xslog.Duration(time.Since(start)))
	return nil
}

// cronLogger sends the cron runner's own messages to slog. They are
// bookkeeping, so info goes out at debug.
type cronLogger struct {
	logger *slog.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, xslog.Error(err))...)
}
