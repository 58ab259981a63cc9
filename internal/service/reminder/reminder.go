// Package reminder nudges employees who logged less than their daily norm
// on the previous day.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/xslog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrency = 4

type Directory interface {
	ChatUserForEmail(ctx context.Context, email string) (string, error)
}

type Templates interface {
	EmailTemplate(ctx context.Context, name string) (string, error)
}

type Config struct {
	// TemplateName is fetched from the ERP on every run when set.
	TemplateName string
	Template     string
	Location     *time.Location
}

// Report counts the outcome of one run. Skipped covers unlinked employees,
// holidays and complete timesheets.
type Report struct {
	Date    string `json:"date"`
	Sent    int64  `json:"sent"`
	Skipped int64  `json:"skipped"`
	Failed  int64  `json:"failed"`
}

type Service struct {
	chat       chat.Messenger
	employees  frappe.EmployeeService
	timesheets frappe.TimesheetService
	holidays   frappe.HolidayService
	templates  Templates
	directory  Directory
	cfg        Config
	now        func() time.Time
}

func New(
	messenger chat.Messenger,
	employees frappe.EmployeeService,
	timesheets frappe.TimesheetService,
	holidays frappe.HolidayService,
	templates Templates,
	directory Directory,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		chat:       messenger,
		employees:  employees,
		timesheets: timesheets,
		holidays:   holidays,
		templates:  templates,
		directory:  directory,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run reminds every active employee about yesterday's timesheet.
func (s *Service) Run(ctx context.Context) error {
	_, err := s.Send(ctx)
	return err
}

func (s *Service) Send(ctx context.Context) (Report, error) {
	logger := xslog.FromContext(ctx)
	day := frappe.NewDate(s.now().In(s.cfg.Location)).AddDays(-1)
	report := Report{Date: day.String()}

	tmpl, err := s.template(ctx)
	if err != nil {
		return report, err
	}
	employees, err := s.employees.Active(ctx)
	if err != nil {
		return report, err
	}

	var sent, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for _, emp := range employees {
		g.Go(func() error {
			ok, err := s.remind(gctx, emp, day, tmpl)
			switch {
			case err != nil:
				failed.Add(1)
				logger.WarnContext(gctx, "sending timesheet reminder", xslog.EmployeeID(emp.Name), xslog.Error(err))
			case ok:
				sent.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Sent, report.Skipped, report.Failed = sent.Load(), skipped.Load(), failed.Load()
	logger.InfoContext(ctx, "sent timesheet reminders",
		xslog.Date(day.Time),
		slog.Int64("sent", report.Sent),
		slog.Int64("skipped", report.Skipped),
		slog.Int64("failed", report.Failed))
	return report, nil
}

func (s *Service) template(ctx context.Context) (string, error) {
	if s.cfg.TemplateName == "" {
		return s.cfg.Template, nil
	}
	return s.templates.EmailTemplate(ctx, s.cfg.TemplateName)
}

func (s *Service) remind(ctx context.Context, emp frappe.Employee, day frappe.Date, tmpl string) (bool, error) {
	user, err := s.directory.ChatUserForEmail(ctx, emp.Email())
	if errors.Is(err, directory.ErrNotLinked) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	holiday, err := s.holidays.EmployeeHoliday(ctx, emp.Name, day)
	if err != nil {
		return false, err
	}
	if holiday {
		return false, nil
	}

	norm, err := s.timesheets.DailyNorm(ctx, emp.Name)
	if err != nil {
		return false, err
	}
	logged, err := s.timesheets.ReportedHours(ctx, emp.Name, day)
	if err != nil {
		return false, err
	}
	if logged >= norm {
		return false, nil
	}

	message := Render(tmpl, map[string]string{
		"date":        render.FormatDate(day.Time),
		"name":        emp.EmployeeName,
		"logged_time": render.Hours(logged),
		"mention":     render.Mention(user, emp.EmployeeName),
		"daily_norm":  render.Hours(norm),
	})
	_, err = s.chat.PostBlocks(ctx, user, render.Reminder(message),
		chat.WithFallbackText(message), chat.WithPurpose("reminder"))
	return err == nil, err
}

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render strips HTML tags left over from email templates and substitutes
// {{ key }} placeholders with vars. Unknown keys render empty.
func Render(tmpl string, vars map[string]string) string {
	out := placeholder.ReplaceAllStringFunc(render.StripHTML(tmpl), func(m string) string {
		return vars[placeholder.FindStringSubmatch(m)[1]]
	})
	return strings.TrimSpace(out)
}
