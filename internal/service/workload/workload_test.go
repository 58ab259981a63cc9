package workload

import (
	"errors"
	"testing"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

func date(s string) frappe.Date {
	d, err := frappe.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestWeek(t *testing.T) {
	t.Parallel()

	tests := []struct {
		day  string
		want string
	}{
		{day: "2024-03-04", want: "2024-03-04"}, // Monday
		{day: "2024-03-06", want: "2024-03-04"},
		{day: "2024-03-08", want: "2024-03-04"},
		{day: "2024-03-09", want: "2024-03-11"}, // Saturday covers next week
		{day: "2024-03-10", want: "2024-03-11"},
	}

	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			t.Parallel()

			got := Week(date(tt.day))
			if len(got) != 5 {
				t.Fatalf("Week(%s) has %d days, want 5", tt.day, len(got))
			}
			if got[0].String() != tt.want {
				t.Errorf("Week(%s)[0] = %s, want %s", tt.day, got[0], tt.want)
			}
			if wd := got[4].Weekday(); wd != time.Friday {
				t.Errorf("Week(%s)[4] is a %s, want Friday", tt.day, wd)
			}
		})
	}
}

type fixture struct {
	svc      *Service
	chat     *testutil.Messenger
	workload *testutil.Workload
	leaves   *testutil.Leaves
	holidays *testutil.Holidays
}

func newFixture(t *testing.T, cfg Config, now time.Time) fixture {
	t.Helper()

	messenger := testutil.NewMessenger(
		chat.User{ID: "U1", Username: "asha", Email: "asha@example.com"},
		chat.User{ID: "U9", Username: "pm", Email: "pm@example.com"},
	)
	employees := testutil.NewEmployees(
		frappe.Employee{Name: "EMP-1", EmployeeName: "Asha", UserID: "asha@example.com", Designation: "Engineer", ReportsTo: "EMP-9"},
		frappe.Employee{Name: "EMP-2", EmployeeName: "Mira", UserID: "mira@example.com", Designation: "Engineer", ReportsTo: "EMP-9"},
		frappe.Employee{Name: "EMP-3", EmployeeName: "Ravi", UserID: "ravi@example.com", Designation: "Engineer"},
		frappe.Employee{Name: "EMP-4", EmployeeName: "Noor", UserID: "noor@example.com", Designation: "Designer"},
		frappe.Employee{Name: "EMP-9", EmployeeName: "Priya", UserID: "pm@example.com", Designation: "Manager"},
	)
	workload := &testutil.Workload{
		SettingsDoc: frappe.TimesheetSettings{
			Designations: []frappe.DesignationRow{{Designation: "Engineer"}},
			RemindOn:     "Monday",
		},
		AllocList: []frappe.Allocation{
			{Employee: "EMP-1", StartDate: date("2024-03-01"), EndDate: date("2024-03-31"), HoursPerDay: 6},
			{Employee: "EMP-2", StartDate: date("2024-03-01"), EndDate: date("2024-03-05"), HoursPerDay: 8},
			{Employee: "EMP-4", StartDate: date("2024-03-01"), EndDate: date("2024-03-01"), HoursPerDay: 1},
		},
	}
	leaves := testutil.NewLeaves(
		frappe.LeaveApplication{Name: "L1", Employee: "EMP-3", FromDate: date("2024-03-04"), ToDate: date("2024-03-05"), Status: frappe.LeaveStatusApproved},
	)
	holidays := testutil.NewHolidays()

	cfg.PMSInstalled = true
	cfg.Channel = "C-WL"
	store := testutil.NewStore(t)
	svc := New(messenger, workload, employees, leaves, holidays, directory.New(messenger, employees, store), cfg)
	svc.now = func() time.Time { return now }

	return fixture{svc: svc, chat: messenger, workload: workload, leaves: leaves, holidays: holidays}
}

var monday = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func TestRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{MentionUsers: true}, monday)
	f.holidays.Employee[testutil.ReportedKey("EMP-1", date("2024-03-08"))] = true

	got, err := f.svc.Rows(t.Context(), Week(date("2024-03-04")))
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	want := []render.WorkloadRow{
		{Name: "Mira", ManagerID: "U9", ManagerName: "Priya", Unallocated: []float64{0, 0, 8, 8, 8}},
		{Name: "Ravi", ManagerName: "N/A", Unallocated: []float64{0, 0, 8, 8, 8}},
		{UserID: "U1", Name: "Asha", ManagerID: "U9", ManagerName: "Priya", Unallocated: []float64{2, 2, 2, 2, 0}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsWithoutMentions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, monday)
	got, err := f.svc.Rows(t.Context(), []frappe.Date{date("2024-03-04")})
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	want := []render.WorkloadRow{
		{Name: "Asha", ManagerName: "Priya", Unallocated: []float64{2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rows() mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsNoDesignations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, monday)
	f.workload.SettingsDoc.Designations = nil

	got, err := f.svc.Rows(t.Context(), []frappe.Date{date("2024-03-04")})
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Rows() = %+v, want none", got)
	}
}

func TestDaily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		now       time.Time
		wantPosts int
	}{
		{name: "weekday", cfg: Config{Daily: true}, now: monday, wantPosts: 1},
		{name: "disabled", cfg: Config{}, now: monday},
		{name: "weekend", cfg: Config{Daily: true}, now: monday.AddDate(0, 0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.cfg, tt.now)
			if err := f.svc.Daily(t.Context()); err != nil {
				t.Fatalf("Daily() error = %v", err)
			}
			posts := f.chat.PostsTo("C-WL")
			if len(posts) != tt.wantPosts {
				t.Fatalf("posts = %d, want %d", len(posts), tt.wantPosts)
			}
			if tt.wantPosts > 0 && posts[0].Purpose != "workload" {
				t.Errorf("Purpose = %q, want %q", posts[0].Purpose, "workload")
			}
		})
	}
}

func TestWeeklyRunsOnConfiguredDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		now       time.Time
		wantPosts int
	}{
		{name: "monday", now: monday, wantPosts: 1},
		{name: "tuesday", now: monday.AddDate(0, 0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, Config{Weekly: true}, tt.now)
			if err := f.svc.Weekly(t.Context()); err != nil {
				t.Fatalf("Weekly() error = %v", err)
			}
			if got := len(f.chat.PostsTo("C-WL")); got != tt.wantPosts {
				t.Errorf("posts = %d, want %d", got, tt.wantPosts)
			}
		})
	}
}

func TestRequiresPMS(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{Daily: true, Weekly: true}, monday)
	f.svc.cfg.PMSInstalled = false

	if err := f.svc.Daily(t.Context()); !errors.Is(err, ErrPMSMissing) {
		t.Errorf("Daily() error = %v, want %v", err, ErrPMSMissing)
	}
	if err := f.svc.Weekly(t.Context()); !errors.Is(err, ErrPMSMissing) {
		t.Errorf("Weekly() error = %v, want %v", err, ErrPMSMissing)
	}
}

func TestRowsAllocationFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, monday)
	boom := errors.New("boom")
	f.workload.Err = boom

	if _, err := f.svc.Rows(t.Context(), []frappe.Date{date("2024-03-04")}); !errors.Is(err, boom) {
		t.Errorf("Rows() error = %v, want %v", err, boom)
	}
}
