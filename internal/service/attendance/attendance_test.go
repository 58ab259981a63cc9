package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

var kolkata = time.FixedZone("IST", 5*3600+1800)

func date(s string) frappe.Date {
	d, err := frappe.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	svc      *Service
	chat     *testutil.Messenger
	leaves   *testutil.Leaves
	holidays *testutil.Holidays
	store    *storage.MemoryBackend
}

func newFixture(t *testing.T, cfg Config, now time.Time) fixture {
	t.Helper()

	messenger := testutil.NewMessenger(
		chat.User{ID: "U1", Username: "asha", Email: "asha@example.com"},
		chat.User{ID: "U2", Username: "mira", Email: "mira@example.com"},
	)
	employees := testutil.NewEmployees(
		frappe.Employee{Name: "EMP-1", EmployeeName: "Asha", UserID: "asha@example.com"},
		frappe.Employee{Name: "EMP-2", EmployeeName: "Mira", UserID: "mira@example.com"},
		frappe.Employee{Name: "EMP-3", EmployeeName: "Ravi", UserID: "ravi@example.com"},
	)
	leaves := testutil.NewLeaves(
		frappe.LeaveApplication{Name: "L1", Employee: "EMP-1", EmployeeName: "Asha", FromDate: date("2024-03-04"), ToDate: date("2024-03-04"), Status: frappe.LeaveStatusApproved},
		frappe.LeaveApplication{Name: "L2", Employee: "EMP-2", EmployeeName: "Mira", FromDate: date("2024-03-01"), ToDate: date("2024-03-06"), Status: frappe.LeaveStatusOpen},
		frappe.LeaveApplication{
			Name:          "L3",
			Employee:      "EMP-3",
			EmployeeName:  "Ravi",
			FromDate:      date("2024-03-04"),
			ToDate:        date("2024-03-04"),
			Status:        frappe.LeaveStatusApproved,
			HalfDay:       1,
			HalfDayDate:   date("2024-03-04"),
			HalfDayPeriod: frappe.PeriodSecondHalf,
		},
	)
	holidays := testutil.NewHolidays()
	store := testutil.NewStore(t)

	if cfg.Channel == "" {
		cfg.Channel = "C-ATT"
	}
	if cfg.Location == nil {
		cfg.Location = kolkata
	}
	svc := New(messenger, leaves, holidays, directory.New(messenger, employees, store), store, store, cfg)
	svc.now = func() time.Time { return now }

	return fixture{svc: svc, chat: messenger, leaves: leaves, holidays: holidays, store: store}
}

// 2024-03-04 is a Monday.
var mondayMorning = time.Date(2024, 3, 4, 10, 0, 0, 0, kolkata)

func TestSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		custom bool
		want   []render.AbsenceGroup
	}{
		{
			name: "standard fields",
			want: []render.AbsenceGroup{
				{Label: "Full Day", Absences: []render.Absence{{Mention: "<@U1>"}, {Mention: "<@U2>", Until: date("2024-03-06").Time}}},
				{Label: "Half Day", Absences: []render.Absence{{Mention: "Ravi"}}},
			},
		},
		{
			name:   "custom half day fields",
			custom: true,
			want: []render.AbsenceGroup{
				{Label: "Full Day", Absences: []render.Absence{{Mention: "<@U1>"}, {Mention: "<@U2>", Until: date("2024-03-06").Time}}},
				{Label: "First-Half"},
				{Label: "Second-Half", Absences: []render.Absence{{Mention: "Ravi"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, Config{Enabled: true, CustomLeaveFields: tt.custom}, mondayMorning)
			got, err := f.svc.Summary(t.Context(), date("2024-03-04"))
			if err != nil {
				t.Fatalf("Summary() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunGates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		now      time.Time
		setup    func(t *testing.T, f fixture)
		wantPost bool
	}{
		{name: "due", cfg: Config{Enabled: true, Hour: 9, Minute: 30}, now: mondayMorning, wantPost: true},
		{name: "disabled", cfg: Config{Hour: 9, Minute: 30}, now: mondayMorning},
		{name: "too early", cfg: Config{Enabled: true, Hour: 10, Minute: 30}, now: mondayMorning},
		{name: "weekend", cfg: Config{Enabled: true}, now: mondayMorning.AddDate(0, 0, -1)},
		{
			name: "already sent",
			cfg:  Config{Enabled: true},
			now:  mondayMorning,
			setup: func(t *testing.T, f fixture) {
				if err := f.store.SaveAttendance(t.Context(), storage.AttendanceState{LastDate: "2024-03-04", LastMessageTS: "1.0"}); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "holiday",
			cfg:  Config{Enabled: true, HolidayList: "India 2024"},
			now:  mondayMorning,
			setup: func(_ *testing.T, f fixture) {
				f.holidays.Lists[testutil.ReportedKey("India 2024", date("2024-03-04"))] = true
			},
		},
		{name: "working day on holiday list", cfg: Config{Enabled: true, HolidayList: "India 2024"}, now: mondayMorning, wantPost: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.cfg, tt.now)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			if err := f.svc.Run(t.Context()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := len(f.chat.PostsTo("C-ATT")) > 0; got != tt.wantPost {
				t.Errorf("posted = %t, want %t", got, tt.wantPost)
			}
		})
	}
}

func TestRunRecordsState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{Enabled: true}, mondayMorning)

	for range 2 {
		if err := f.svc.Run(t.Context()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	posts := f.chat.PostsTo("C-ATT")
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].Purpose != "attendance" {
		t.Errorf("Purpose = %q, want %q", posts[0].Purpose, "attendance")
	}

	state, err := f.store.GetAttendance(t.Context())
	if err != nil {
		t.Fatalf("GetAttendance() error = %v", err)
	}
	if state.LastDate != "2024-03-04" || state.LastMessageTS == "" {
		t.Errorf("state = %+v, want today's date and a message ts", state)
	}
}

func TestForceIgnoresGates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, mondayMorning.AddDate(0, 0, -1))
	ts, err := f.svc.Force(t.Context())
	if err != nil {
		t.Fatalf("Force() error = %v", err)
	}
	if ts == "" {
		t.Error("Force() ts is empty")
	}
}

func TestRunPostFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{Enabled: true}, mondayMorning)
	f.chat.Errors = map[string]error{"chat.postMessage": errors.New("channel_not_found")}

	if err := f.svc.Run(t.Context()); err == nil {
		t.Fatal("Run() error = nil, want error")
	}
	state, err := f.store.GetAttendance(t.Context())
	if err != nil {
		t.Fatalf("GetAttendance() error = %v", err)
	}
	if state.LastDate != "" {
		t.Errorf("LastDate = %q, want empty after a failed post", state.LastDate)
	}
}

func TestSendTest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		channel     string
		wantChannel string
	}{
		{name: "configured channel", wantChannel: "C-ATT"},
		{name: "explicit channel", channel: "C-OTHER", wantChannel: "C-OTHER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, Config{}, mondayMorning)
			if err := f.svc.SendTest(t.Context(), tt.channel); err != nil {
				t.Fatalf("SendTest() error = %v", err)
			}
			posts := f.chat.PostsTo(tt.wantChannel)
			if len(posts) != 1 || posts[0].Text != render.TestChannelText {
				t.Errorf("posts to %s = %+v, want the test message", tt.wantChannel, posts)
			}
		})
	}
}
