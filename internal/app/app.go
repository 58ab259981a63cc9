// Package app builds the connector from configuration. The server, the CLI
// and the Lambda entrypoints share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awslambda "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/config"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/migrations/postgres"
	xredis "github.com/garrettladley/slackerp/internal/redis"
	"github.com/garrettladley/slackerp/internal/scheduler"
	"github.com/garrettladley/slackerp/internal/server"
	"github.com/garrettladley/slackerp/internal/service/attendance"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/service/leave"
	"github.com/garrettladley/slackerp/internal/service/reminder"
	"github.com/garrettladley/slackerp/internal/service/timesheet"
	"github.com/garrettladley/slackerp/internal/service/webhook"
	"github.com/garrettladley/slackerp/internal/service/workload"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Scheduled task names, also accepted by the admin API and the CLI.
const (
	TaskAttendance     = "attendance"
	TaskReminder       = "reminder"
	TaskWorkloadDaily  = "workload_daily"
	TaskWorkloadWeekly = "workload_weekly"
)

const (
	attendancePollInterval = 5 * time.Minute
	memoryQueueBuffer      = 256
)

type App struct {
	Config  *config.Holder
	Logger  *slog.Logger
	Backend storage.Backend

	Runner    *jobs.Runner
	Queue     jobs.Queue
	Scheduler *scheduler.Manager

	Verifier   *interaction.Verifier
	Dispatcher *interaction.Dispatcher

	Directory  *directory.Service
	Leave      *leave.Service
	Timesheet  *timesheet.Service
	Attendance *attendance.Service
	Reminder   *reminder.Service
	Workload   *workload.Service
	Webhook    *webhook.Processor

	rateLimiter storage.RateLimiter
	workers     []server.Worker
	closers     []func() error
}

// New connects to the storage backend and Redis (when configured) and
// builds every service. Call Close when done.
func New(ctx context.Context, holder *config.Holder, logger *slog.Logger) (_ *App, err error) {
	cfg := holder.Current()
	a := &App{Config: holder, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = xredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		a.closers = append(a.closers, redisClient.Close)
	}

	a.Backend, err = initBackend(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.closers = append(a.closers, a.Backend.Close)

	var locker storage.Locker = a.Backend
	if redisClient != nil {
		locker = storage.NewRedisLocker(redisClient)
		a.rateLimiter = storage.NewRedisRateLimiter(redisClient, int(cfg.RateLimit.Limit*60), time.Minute)
	} else {
		limiter := storage.NewMemoryRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Burst)
		a.rateLimiter = limiter
		a.closers = append(a.closers, limiter.Close)
	}

	a.Runner = jobs.NewRunner(
		jobs.WithLogger(logger),
		jobs.WithMaxAttempts(cfg.Jobs.MaxAttempts),
		jobs.WithBackoff(cfg.Jobs.Backoff),
	)
	if err := a.initQueue(cfg.Jobs, redisClient); err != nil {
		return nil, err
	}

	messenger := chat.New(cfg.Slack.BotToken,
		chat.WithAPIURL(cfg.Slack.APIURL),
		chat.WithLogger(logger))
	erp := frappe.New(cfg.ERP.URL, tokenSource(ctx, cfg.ERP),
		frappe.WithLogger(logger),
		frappe.WithTimeout(cfg.ERP.Timeout),
		frappe.WithCustomLeaveFields(cfg.ERP.CustomLeaveFields),
		frappe.WithPMS(cfg.ERP.PMSInstalled))

	a.Directory = directory.New(messenger, erp.Employees, a.Backend)
	a.Leave = leave.New(messenger, erp.Leaves, a.Directory, a.Backend, a.Queue, leave.Config{
		SiteURL:           cfg.ERP.URL,
		AttendanceChannel: cfg.Attendance.Channel,
		ThreadUpdates:     cfg.Attendance.ThreadUpdates,
		CustomLeaveFields: cfg.ERP.CustomLeaveFields,
		AnnounceOnSubmit:  cfg.ERP.WebhookSecret == "",
		Location:          loc,
	})
	a.Timesheet = timesheet.New(messenger, erp.Timesheets, erp.Employees, a.Directory, loc)

	hour, minute, _ := config.ParseClock(cfg.Attendance.Time)
	a.Attendance = attendance.New(messenger, erp.Leaves, erp.Holidays, a.Directory, a.Backend, locker, attendance.Config{
		Enabled:           cfg.Attendance.Enabled,
		Channel:           cfg.Attendance.Channel,
		Title:             cfg.Attendance.Title,
		Hour:              hour,
		Minute:            minute,
		HolidayList:       cfg.Attendance.HolidayList,
		CustomLeaveFields: cfg.ERP.CustomLeaveFields,
		Location:          loc,
	})
	a.Reminder = reminder.New(messenger, erp.Employees, erp.Timesheets, erp.Holidays, erp, a.Directory, reminder.Config{
		TemplateName: cfg.Reminder.TemplateName,
		Template:     cfg.Reminder.Template,
		Location:     loc,
	})
	a.Workload = workload.New(messenger, erp.Workload, erp.Employees, erp.Leaves, erp.Holidays, a.Directory, workload.Config{
		Daily:        cfg.Workload.Daily,
		Weekly:       cfg.Workload.Weekly,
		Channel:      cfg.Workload.Channel,
		MentionUsers: cfg.Workload.MentionUsers,
		PMSInstalled: cfg.ERP.PMSInstalled,
		Location:     loc,
	})
	if cfg.ERP.WebhookSecret != "" {
		a.Webhook = webhook.NewProcessor(cfg.ERP.WebhookSecret, a.Queue)
	}

	a.Leave.Register(a.Runner)
	a.Timesheet.Register(a.Runner)

	a.Verifier = interaction.NewVerifier(holder)
	a.Dispatcher = interaction.NewDispatcher(interaction.Handlers{
		OpenTimesheet:   a.Timesheet.OpenFromReminder,
		ToggleHalfDay:   a.Leave.ToggleHalfDay,
		FilterTimesheet: a.Timesheet.Filter,
		DecideLeave:     a.Leave.Decide,
		SubmitTimesheet: a.Timesheet.Submit,
		SubmitLeave:     a.Leave.Submit,
	})

	a.Scheduler, err = a.initScheduler(cfg, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	return a, nil
}

func initBackend(ctx context.Context, cfg config.Database, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Driver {
	case "postgres":
		logger.InfoContext(ctx, "initializing PostgreSQL backend")
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := postgres.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return storage.NewPostgresBackend(pool), nil
	case "sqlite":
		logger.InfoContext(ctx, "initializing SQLite backend")
		backend, err := storage.OpenSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		logger.InfoContext(ctx, "initializing in-memory backend")
		return storage.NewMemoryBackend(), nil
	}
}

func (a *App) initQueue(cfg config.Jobs, redisClient *redis.Client) error {
	switch cfg.Backend {
	case "redis":
		q := jobs.NewRedisQueue(redisClient, cfg.QueueKey, a.Runner, cfg.Workers, a.Logger)
		a.Queue = q
		a.workers = append(a.workers, q.Run)
	case "lambda":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return fmt.Errorf("aws session: %w", err)
		}
		a.Queue = jobs.NewLambdaQueue(awslambda.New(sess), cfg.LambdaFunction)
	default:
		q := jobs.NewMemoryQueue(a.Runner, cfg.Workers, memoryQueueBuffer, a.Logger)
		a.Queue = q
		a.workers = append(a.workers, q.Run)
	}
	return nil
}

func (a *App) initScheduler(cfg *config.Config, loc *time.Location) (*scheduler.Manager, error) {
	m := scheduler.New(a.Logger)

	// attendance gates on its own time of day and once-per-day state
	m.Add(TaskAttendance, scheduler.Every(attendancePollInterval), a.Attendance.Run)

	daily := func(clock string) (scheduler.Schedule, error) {
		hour, minute, err := config.ParseClock(clock)
		if err != nil {
			return nil, err
		}
		return scheduler.DailyAt(hour, minute, loc)
	}

	if cfg.Reminder.Enabled {
		s, err := daily(cfg.Reminder.Time)
		if err != nil {
			return nil, err
		}
		m.Add(TaskReminder, s, a.Reminder.Run)
	}

	if cfg.Workload.Daily || cfg.Workload.Weekly {
		s, err := daily(cfg.Workload.Time)
		if err != nil {
			return nil, err
		}
		if cfg.Workload.Daily {
			m.Add(TaskWorkloadDaily, s, a.Workload.Daily)
		}
		if cfg.Workload.Weekly {
			m.Add(TaskWorkloadWeekly, s, a.Workload.Weekly)
		}
	}
	return m, nil
}

func tokenSource(ctx context.Context, cfg config.ERP) oauth2.TokenSource {
	if cfg.OAuth.Enabled() {
		return frappe.OAuthTokenSource(ctx, cfg.URL, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.TokenURL, cfg.OAuth.RefreshToken)
	}
	return frappe.APIKeyTokenSource(cfg.APIKey, cfg.APISecret)
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler {
	deps := server.Deps{
		Logger:      a.Logger,
		Verifier:    a.Verifier,
		Dispatcher:  a.Dispatcher,
		Leave:       a.Leave,
		Timesheets:  a.Timesheet,
		Directory:   a.Directory,
		Attendance:  a.Attendance,
		Tasks:       a.Scheduler,
		Health:      a.Backend,
		RateLimiter: a.rateLimiter,
		AdminAPIKey: a.Config.Current().Admin.APIKey,
	}
	if a.Webhook != nil {
		deps.Webhook = a.Webhook
	}
	return server.NewHandler(deps)
}

// Workers returns the background loops: queue consumers and, when
// withScheduler is set, the scheduler.
func (a *App) Workers(withScheduler bool) []server.Worker {
	workers := append([]server.Worker(nil), a.workers...)
	if withScheduler {
		workers = append(workers, a.Scheduler.Run)
	}
	workers = append(workers, func(ctx context.Context) error {
		a.Config.WatchSignals(xslog.WithLogger(ctx, a.Logger))
		return nil
	})
	if _, err := os.Stat(config.EnvFile); err == nil {
		workers = append(workers, func(ctx context.Context) error {
			return a.Config.WatchFile(xslog.WithLogger(ctx, a.Logger), config.EnvFile)
		})
	}
	return workers
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
