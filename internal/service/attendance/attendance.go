// Package attendance posts the daily summary of employees on leave.
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/xslog"
)

const lockTTL = 24 * time.Hour

const (
	groupFullDay    = "Full Day"
	groupHalfDay    = "Half Day"
	groupFirstHalf  = "First-Half"
	groupSecondHalf = "Second-Half"
)

var ErrNoChannel = errors.New("attendance: no channel configured")

type Mentioner interface {
	Mention(ctx context.Context, employeeID, name string) string
}

type Config struct {
	Enabled bool
	Channel string
	Title   string
	// Hour and Minute are the local time after which the summary is posted.
	Hour   int
	Minute int
	// HolidayList is checked before posting. Empty skips the check.
	HolidayList       string
	CustomLeaveFields bool
	Location          *time.Location
}

type Service struct {
	chat     chat.Messenger
	leaves   frappe.LeaveService
	holidays frappe.HolidayService
	mentions Mentioner
	state    storage.StateStore
	locker   storage.Locker
	cfg      Config
	now      func() time.Time
}

func New(
	messenger chat.Messenger,
	leaves frappe.LeaveService,
	holidays frappe.HolidayService,
	mentions Mentioner,
	state storage.StateStore,
	locker storage.Locker,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Title == "" {
		cfg.Title = "Employees on Leave"
	}
	return &Service{
		chat:     messenger,
		leaves:   leaves,
		holidays: holidays,
		mentions: mentions,
		state:    state,
		locker:   locker,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run posts today's summary once per working day. It is safe to call on
// every scheduler tick and from several replicas.
func (s *Service) Run(ctx context.Context) error {
	_, err := s.post(ctx, false)
	return err
}

// Force posts today's summary regardless of the time of day or whether it
// was already sent.
func (s *Service) Force(ctx context.Context) (string, error) {
	return s.post(ctx, true)
}

func (s *Service) post(ctx context.Context, force bool) (string, error) {
	logger := xslog.FromContext(ctx)
	if s.cfg.Channel == "" {
		return "", ErrNoChannel
	}

	now := s.now().In(s.cfg.Location)
	today := frappe.NewDate(now)

	if !force {
		ok, reason, err := s.due(ctx, now, today)
		if err != nil {
			return "", err
		}
		if !ok {
			logger.DebugContext(ctx, "skipping attendance summary", xslog.Reason(reason))
			return "", nil
		}
		won, err := s.locker.AcquireOnce(ctx, "attendance:"+today.String(), lockTTL)
		if err != nil {
			return "", err
		}
		if !won {
			logger.DebugContext(ctx, "attendance summary claimed elsewhere")
			return "", nil
		}
	}

	groups, err := s.Summary(ctx, today)
	if err != nil {
		return "", err
	}

	ts, err := s.chat.PostBlocks(ctx, s.cfg.Channel, render.Attendance(s.cfg.Title, groups),
		chat.WithFallbackText(s.cfg.Title), chat.WithPurpose("attendance"))
	if err != nil {
		return "", err
	}

	if err := s.state.SaveAttendance(ctx, storage.AttendanceState{LastDate: today.String(), LastMessageTS: ts}); err != nil {
		return ts, err
	}
	logger.InfoContext(ctx, "posted attendance summary", xslog.Date(today.Time), xslog.Count(count(groups)))
	return ts, nil
}

func (s *Service) due(ctx context.Context, now time.Time, today frappe.Date) (bool, string, error) {
	if !s.cfg.Enabled {
		return false, "disabled", nil
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, "weekend", nil
	}
	if now.Hour()*60+now.Minute() < s.cfg.Hour*60+s.cfg.Minute {
		return false, "too early", nil
	}

	state, err := s.state.GetAttendance(ctx)
	if err != nil {
		return false, "", err
	}
	if state.LastDate == today.String() {
		return false, "already sent", nil
	}

	if s.cfg.HolidayList != "" {
		holiday, err := s.holidays.ListHoliday(ctx, s.cfg.HolidayList, today)
		if err != nil {
			return false, "", err
		}
		if holiday {
			return false, "holiday", nil
		}
	}
	return true, "", nil
}

// Summary groups the leaves covering day by how much of the day they take.
func (s *Service) Summary(ctx context.Context, day frappe.Date) ([]render.AbsenceGroup, error) {
	leaves, err := s.leaves.OnLeave(ctx, day)
	if err != nil {
		return nil, err
	}

	labels := []string{groupFullDay, groupHalfDay}
	if s.cfg.CustomLeaveFields {
		labels = []string{groupFullDay, groupFirstHalf, groupSecondHalf}
	}
	byLabel := make(map[string][]render.Absence, len(labels))

	for _, l := range leaves {
		a := render.Absence{Mention: s.mentions.Mention(ctx, l.Employee, l.EmployeeName)}
		if !l.ToDate.Equal(day) {
			a.Until = l.ToDate.Time
		}
		label := s.group(l, day)
		byLabel[label] = append(byLabel[label], a)
	}

	groups := make([]render.AbsenceGroup, 0, len(labels))
	for _, label := range labels {
		groups = append(groups, render.AbsenceGroup{Label: label, Absences: byLabel[label]})
	}
	return groups, nil
}

func (s *Service) group(l frappe.LeaveApplication, day frappe.Date) string {
	switch {
	case !l.IsHalfDay() || !l.HalfDayDate.Equal(day):
		return groupFullDay
	case !s.cfg.CustomLeaveFields:
		return groupHalfDay
	case l.HalfDayPeriod == frappe.PeriodFirstHalf:
		return groupFirstHalf
	default:
		return groupSecondHalf
	}
}

func count(groups []render.AbsenceGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Absences)
	}
	return n
}

// SendTest posts a test message to channel, or the configured channel when
// channel is empty.
func (s *Service) SendTest(ctx context.Context, channel string) error {
	if channel == "" {
		channel = s.cfg.Channel
	}
	if channel == "" {
		return ErrNoChannel
	}
	_, err := s.chat.PostText(ctx, channel, render.TestChannelText)
	return err
}
