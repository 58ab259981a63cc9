package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	appenv "github.com/garrettladley/slackerp/internal/env"
	"github.com/garrettladley/slackerp/internal/redis"
)

type Config struct {
	Port       string             `env:"PORT" envDefault:"8080"`
	Env        appenv.Environment `env:"ENV" envDefault:"development"`
	Timezone   string             `env:"TIMEZONE" envDefault:"UTC"`
	Slack      Slack              `envPrefix:"SLACK_"`
	ERP        ERP                `envPrefix:"ERP_"`
	Database   Database           `envPrefix:"DATABASE_"`
	Redis      redis.Config       `envPrefix:"REDIS_"`
	Jobs       Jobs               `envPrefix:"JOBS_"`
	Attendance Attendance         `envPrefix:"ATTENDANCE_"`
	Reminder   Reminder           `envPrefix:"REMINDER_"`
	Workload   Workload           `envPrefix:"WORKLOAD_"`
	RateLimit  RateLimit          `envPrefix:"RATE_"`
	Admin      Admin              `envPrefix:"ADMIN_"`
}

type Slack struct {
	BotToken      string `env:"BOT_TOKEN,required"`
	SigningSecret string `env:"SIGNING_SECRET,required"`
	APIURL        string `env:"API_URL"`
}

type ERP struct {
	URL       string        `env:"URL,required"`
	APIKey    string        `env:"API_KEY"`
	APISecret string        `env:"API_SECRET"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// CustomLeaveFields marks sites whose Leave Application carries the
	// first/second half field and an Approve/Reject workflow.
	CustomLeaveFields bool `env:"CUSTOM_LEAVE_FIELDS" envDefault:"false"`
	// PMSInstalled enables the employee working-hours and task billable fields.
	PMSInstalled  bool   `env:"PMS_INSTALLED" envDefault:"false"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	OAuth         OAuth  `envPrefix:"OAUTH_"`
}

type OAuth struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	TokenURL     string `env:"TOKEN_URL"`
	RefreshToken string `env:"REFRESH_TOKEN"`
}

func (o OAuth) Enabled() bool { return o.ClientID != "" && o.RefreshToken != "" }

type Database struct {
	// Driver is one of "postgres", "sqlite" or "memory".
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	URL    string `env:"URL" envDefault:"file:slackerp.db?_foreign_keys=on&_busy_timeout=5000"`
}

type Jobs struct {
	// Backend is one of "memory", "redis" or "lambda".
	Backend        string        `env:"BACKEND" envDefault:"memory"`
	Workers        int           `env:"WORKERS" envDefault:"4"`
	MaxAttempts    int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Backoff        time.Duration `env:"BACKOFF" envDefault:"2s"`
	QueueKey       string        `env:"QUEUE_KEY" envDefault:"slackerp:jobs"`
	LambdaFunction string        `env:"LAMBDA_FUNCTION"`
	AWSRegion      string        `env:"AWS_REGION" envDefault:"us-east-1"`
}

type Attendance struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Channel string `env:"CHANNEL"`
	// Time is the local HH:MM after which the summary may be posted.
	Time  string `env:"TIME" envDefault:"09:30"`
	Title string `env:"TITLE" envDefault:"Employees on Leave"`
	// HolidayList is the company Holiday List checked before posting.
	HolidayList   string `env:"HOLIDAY_LIST"`
	ThreadUpdates bool   `env:"THREAD_UPDATES" envDefault:"true"`
}

type Reminder struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Time    string `env:"TIME" envDefault:"10:00"`
	// TemplateName names an ERP Email Template; Template is used when empty.
	TemplateName string `env:"TEMPLATE_NAME"`
	Template     string `env:"TEMPLATE" envDefault:"Hi {{ mention }}, you logged {{ logged_time }}h on {{ date }} against a daily norm of {{ daily_norm }}h. Please update your timesheet."`
}

// Workload alerts need the PMS resource allocation doctype (ERP_PMS_INSTALLED).
type Workload struct {
	Daily  bool `env:"DAILY" envDefault:"false"`
	Weekly bool `env:"WEEKLY" envDefault:"false"`
	// Channel takes an id or a #name.
	Channel      string `env:"CHANNEL" envDefault:"#workload"`
	Time         string `env:"TIME" envDefault:"10:00"`
	MentionUsers bool   `env:"MENTION_USERS" envDefault:"false"`
}

type RateLimit struct {
	Limit float64 `env:"LIMIT" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

type Admin struct {
	APIKey string `env:"API_KEY"`
}

var (
	ErrMissingERPAuth = errors.New("erp: either API_KEY/API_SECRET or OAUTH_CLIENT_ID/OAUTH_REFRESH_TOKEN is required")
	ErrInvalidDriver  = errors.New("database: unknown driver")
	ErrInvalidBackend = errors.New("jobs: unknown backend")
)

// Read parses the process environment.
func Read() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ReadFrom parses cfg from vars instead of the process environment.
func ReadFrom(vars map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if (c.ERP.APIKey == "" || c.ERP.APISecret == "") && !c.ERP.OAuth.Enabled() {
		errs = append(errs, ErrMissingERPAuth)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDriver, c.Database.Driver))
	}

	switch c.Jobs.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("jobs: redis backend requires REDIS_URL"))
		}
	case "lambda":
		if c.Jobs.LambdaFunction == "" {
			errs = append(errs, errors.New("jobs: lambda backend requires JOBS_LAMBDA_FUNCTION"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidBackend, c.Jobs.Backend))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for name, v := range map[string]string{
		"ATTENDANCE_TIME": c.Attendance.Time,
		"REMINDER_TIME":   c.Reminder.Time,
		"WORKLOAD_TIME":   c.Workload.Time,
	} {
		if _, _, err := ParseClock(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Attendance.Enabled && c.Attendance.Channel == "" {
		errs = append(errs, errors.New("attendance: ATTENDANCE_CHANNEL is required when enabled"))
	}

	return errors.Join(errs...)
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ParseClock parses an HH:MM wall clock value.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
