// Package workload alerts a channel about engineers with unallocated hours.
package workload

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"
)

const (
	maxConcurrency = 4
	managerUnknown = "N/A"
)

var ErrPMSMissing = errors.New("workload: resource allocations need the PMS app installed")

type Directory interface {
	ChatUserForEmployee(ctx context.Context, employeeID string) (string, error)
}

type Config struct {
	Daily        bool
	Weekly       bool
	Channel      string
	MentionUsers bool
	PMSInstalled bool
	Location     *time.Location
}

type Service struct {
	chat      chat.Messenger
	workload  frappe.WorkloadService
	employees frappe.EmployeeService
	leaves    frappe.LeaveService
	holidays  frappe.HolidayService
	directory Directory
	cfg       Config
	now       func() time.Time
}

func New(
	messenger chat.Messenger,
	workload frappe.WorkloadService,
	employees frappe.EmployeeService,
	leaves frappe.LeaveService,
	holidays frappe.HolidayService,
	directory Directory,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Channel == "" {
		cfg.Channel = "#workload"
	}
	return &Service{
		chat:      messenger,
		workload:  workload,
		employees: employees,
		leaves:    leaves,
		holidays:  holidays,
		directory: directory,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Daily posts today's under-allocated engineers on weekdays.
func (s *Service) Daily(ctx context.Context) error {
	if !s.cfg.Daily {
		return nil
	}
	if !s.cfg.PMSInstalled {
		return ErrPMSMissing
	}
	now := s.now().In(s.cfg.Location)
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil
	}

	rows, err := s.Rows(ctx, []frappe.Date{frappe.NewDate(now)})
	if err != nil {
		return err
	}
	return s.post(ctx, render.DailyWorkload(rows), "Daily Workload Alert")
}

// Weekly posts the Monday to Friday table on the weekday named by the
// timesheet settings. Runs on a weekend cover the following week.
func (s *Service) Weekly(ctx context.Context) error {
	if !s.cfg.Weekly {
		return nil
	}
	if !s.cfg.PMSInstalled {
		return ErrPMSMissing
	}
	now := s.now().In(s.cfg.Location)

	settings, err := s.workload.Settings(ctx)
	if err != nil {
		return err
	}
	if now.Weekday().String() != settings.RemindOn {
		return nil
	}

	rows, err := s.Rows(ctx, Week(frappe.NewDate(now)))
	if err != nil {
		return err
	}
	return s.post(ctx, render.WeeklyWorkload(rows), "Weekly Workload Alert")
}

// Week returns Monday to Friday of the week containing day, or of the next
// week when day falls on a weekend.
func Week(day frappe.Date) []frappe.Date {
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDays(-offset)
	if offset > 4 {
		monday = day.AddDays(7 - offset)
	}
	days := make([]frappe.Date, 5)
	for i := range days {
		days[i] = monday.AddDays(i)
	}
	return days
}

func (s *Service) post(ctx context.Context, messages [][]slack.Block, fallback string) error {
	for _, blocks := range messages {
		if _, err := s.chat.PostBlocks(ctx, s.cfg.Channel, blocks,
			chat.WithFallbackText(fallback), chat.WithPurpose("workload")); err != nil {
			return err
		}
	}
	xslog.FromContext(ctx).InfoContext(ctx, "posted workload alert", xslog.Count(len(messages)))
	return nil
}

// Rows computes unallocated hours per day for every active employee with a
// tracked designation, dropping employees fully allocated on every day.
// Holidays and leave count as allocated. Rows are ordered by total
// unallocated hours, highest first.
func (s *Service) Rows(ctx context.Context, days []frappe.Date) ([]render.WorkloadRow, error) {
	settings, err := s.workload.Settings(ctx)
	if err != nil {
		return nil, err
	}
	designations := settings.DesignationNames()
	if len(designations) == 0 {
		return nil, nil
	}
	employees, err := s.employees.ActiveByDesignation(ctx, designations)
	if err != nil || len(employees) == 0 {
		return nil, err
	}

	names := make([]string, len(employees))
	for i, e := range employees {
		names[i] = e.Name
	}
	start, end := days[0], days[len(days)-1]

	var (
		allocations []frappe.Allocation
		leaves      []frappe.LeaveApplication
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		allocations, err = s.workload.Allocations(gctx, names, start, end)
		return err
	})
	g.Go(func() (err error) {
		leaves, err = s.leaves.InRange(gctx, names, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allocsBy := group(allocations, func(a frappe.Allocation) string { return a.Employee })
	leavesBy := group(leaves, func(l frappe.LeaveApplication) string { return l.Employee })

	unallocated := make([][]float64, len(employees))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, emp := range employees {
		g.Go(func() error {
			hours, err := s.unallocated(gctx, emp.Name, days, allocsBy[emp.Name], leavesBy[emp.Name])
			unallocated[i] = hours
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	managers := map[string]frappe.Employee{}
	var rows []render.WorkloadRow
	for i, emp := range employees {
		if !slices.ContainsFunc(unallocated[i], func(h float64) bool { return h > 0 }) {
			continue
		}
		row := render.WorkloadRow{Name: emp.EmployeeName, ManagerName: managerUnknown, Unallocated: unallocated[i]}
		if s.cfg.MentionUsers {
			row.UserID = s.chatUser(ctx, emp.Name)
		}
		if emp.ReportsTo != "" {
			s.fillManager(ctx, &row, emp.ReportsTo, managers)
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b render.WorkloadRow) int { return cmp.Compare(b.Total(), a.Total()) })
	return rows, nil
}

func (s *Service) unallocated(
	ctx context.Context,
	employee string,
	days []frappe.Date,
	allocations []frappe.Allocation,
	leaves []frappe.LeaveApplication,
) ([]float64, error) {
	hours := make([]float64, len(days))
	for i, day := range days {
		if slices.ContainsFunc(leaves, func(l frappe.LeaveApplication) bool { return l.Covers(day) }) {
			continue
		}
		holiday, err := s.holidays.EmployeeHoliday(ctx, employee, day)
		if err != nil {
			return nil, err
		}
		if holiday {
			continue
		}

		var allocated float64
		for _, a := range allocations {
			if a.Covers(day) {
				allocated += a.HoursPerDay
			}
		}
		hours[i] = max(0, render.StandardHours-allocated)
	}
	return hours, nil
}

func (s *Service) fillManager(ctx context.Context, row *render.WorkloadRow, id string, cache map[string]frappe.Employee) {
	manager, ok := cache[id]
	if !ok {
		var err error
		manager, err = s.employees.Get(ctx, id)
		if err != nil {
			xslog.FromContext(ctx).WarnContext(ctx, "loading project manager", xslog.EmployeeID(id), xslog.Error(err))
		}
		cache[id] = manager
	}
	if manager.EmployeeName != "" {
		row.ManagerName = manager.EmployeeName
	}
	if s.cfg.MentionUsers && manager.Email() != "" {
		row.ManagerID = s.chatUser(ctx, id)
	}
}

func (s *Service) chatUser(ctx context.Context, employee string) string {
	id, err := s.directory.ChatUserForEmployee(ctx, employee)
	if err != nil && !errors.Is(err, directory.ErrNotLinked) {
		xslog.FromContext(ctx).WarnContext(ctx, "resolving chat user", xslog.EmployeeID(employee), xslog.Error(err))
	}
	return id
}

func group[T any](items []T, key func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, item := range items {
		k := key(item)
		out[k] = append(out[k], item)
	}
	return out
}
