package frappe

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Query  map[string]string
	Body   map[string]any
}

// fakeSite records requests and answers each "METHOD path" from a canned table.
type fakeSite struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]response
}

type response struct {
	status int
	body   any
}

func (f *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := recordedCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Query: map[string]string{}}
	for k := range r.URL.Query() {
		c.Query[k] = r.URL.Query().Get(k)
	}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = go_json.Unmarshal(b, &c.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	resp, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		resp = response{status: http.StatusNotFound, body: map[string]any{"exc_type": "DoesNotExistError"}}
	}
	if resp.status == 0 {
		resp.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_ = go_json.NewEncoder(w).Encode(resp.body)
}

func (f *fakeSite) recorded() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestClient(t *testing.T, responses map[string]response, opts ...Option) (*Client, *fakeSite) {
	t.Helper()
	site := &fakeSite{responses: responses}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return New(srv.URL, APIKeyTokenSource("key", "secret"), opts...), site
}

func data(v any) response    { return response{body: map[string]any{"data": v}} }
func message(v any) response { return response{body: map[string]any{"message": v}} }

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func TestAPIKeyAuthHeader(t *testing.T) {
	t.Parallel()

	site := &fakeSite{responses: map[string]response{
		"GET /api/resource/Leave Application/LA-0001": data(map[string]any{"name": "LA-0001"}),
	}}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	c := New(srv.URL, APIKeyTokenSource("abc", "xyz"))
	if _, err := c.Leaves.Get(t.Context(), "LA-0001"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got, want := site.recorded()[0].Auth, "token abc:xyz"; got != want {
		t.Errorf("Authorization = %q, want %q", got, want)
	}
}

func TestOnLeave(t *testing.T) {
	t.Parallel()

	c, site := newTestClient(t, map[string]response{
		"GET /api/resource/Leave Application": data([]map[string]any{
			{"name": "LA-0001", "employee": "EMP-1", "from_date": "2024-03-04", "to_date": "2024-03-04", "half_day": 1, "half_day_date": "2024-03-04"},
			{"name": "LA-0002", "employee": "EMP-2", "from_date": "2024-03-01", "to_date": "2024-03-08", "half_day_date": nil},
		}),
	})

	leaves, err := c.Leaves.OnLeave(t.Context(), mustDate(t, "2024-03-04"))
	if err != nil {
		t.Fatalf("OnLeave() error = %v", err)
	}
	if len(leaves) != 2 {
		t.Fatalf("OnLeave() returned %d leaves, want 2", len(leaves))
	}
	if !leaves[0].IsHalfDay() || leaves[0].HalfDayDate.String() != "2024-03-04" {
		t.Errorf("leaves[0] = %+v, want half day on 2024-03-04", leaves[0])
	}
	if !leaves[1].HalfDayDate.IsZero() {
		t.Errorf("leaves[1].HalfDayDate = %v, want zero", leaves[1].HalfDayDate)
	}

	calls := site.recorded()
	var filters [][]any
	if err := go_json.Unmarshal([]byte(calls[0].Query["filters"]), &filters); err != nil {
		t.Fatalf("decoding filters: %v", err)
	}
	want := [][]any{
		{"from_date", "<=", "2024-03-04"},
		{"to_date", ">=", "2024-03-04"},
		{"status", "in", []any{"Open", "Approved"}},
		{"docstatus", "!=", float64(2)},
	}
	if diff := cmp.Diff(want, filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if got := calls[0].Query["order_by"]; got != "to_date asc" {
		t.Errorf("order_by = %q, want %q", got, "to_date asc")
	}
	if got := calls[0].Query["limit_page_length"]; got != "0" {
		t.Errorf("limit_page_length = %q, want %q", got, "0")
	}
}

func TestLeaveFieldsFollowSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		customLeave bool
		wantPeriod  bool
	}{
		{name: "plain site", customLeave: false, wantPeriod: false},
		{name: "custom leave fields", customLeave: true, wantPeriod: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, site := newTestClient(t, map[string]response{
				"GET /api/resource/Leave Application": data([]any{}),
			}, WithCustomLeaveFields(tt.customLeave))

			if _, err := c.Leaves.OnLeave(t.Context(), mustDate(t, "2024-03-04")); err != nil {
				t.Fatalf("OnLeave() error = %v", err)
			}
			var fields []string
			if err := go_json.Unmarshal([]byte(site.recorded()[0].Query["fields"]), &fields); err != nil {
				t.Fatalf("decoding fields: %v", err)
			}
			got := false
			for _, f := range fields {
				got = got || f == "custom_first_halfsecond_half"
			}
			if got != tt.wantPeriod {
				t.Errorf("fields include period = %v, want %v", got, tt.wantPeriod)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	t.Run("status and submit", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, map[string]response{
			"PUT /api/resource/Leave Application/LA-0001": data(map[string]any{"name": "LA-0001", "status": "Approved"}),
		})

		got, err := c.Leaves.Decide(t.Context(), "LA-0001", true)
		if err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if got.Status != LeaveStatusApproved {
			t.Errorf("Decide().Status = %q, want %q", got.Status, LeaveStatusApproved)
		}
		want := map[string]any{"status": "Approved", "docstatus": float64(1)}
		if diff := cmp.Diff(want, site.recorded()[0].Body); diff != "" {
			t.Errorf("body mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("workflow", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, map[string]response{
			"GET /api/resource/Leave Application/LA-0002":           data(map[string]any{"name": "LA-0002", "status": "Open"}),
			"POST /api/method/frappe.model.workflow.apply_workflow": message(map[string]any{"name": "LA-0002", "status": "Rejected"}),
		}, WithCustomLeaveFields(true))

		got, err := c.Leaves.Decide(t.Context(), "LA-0002", false)
		if err != nil {
			t.Fatalf("Decide() error = %v", err)
		}
		if got.Status != LeaveStatusRejected {
			t.Errorf("Decide().Status = %q, want %q", got.Status, LeaveStatusRejected)
		}
		calls := site.recorded()
		if len(calls) != 2 {
			t.Fatalf("got %d calls, want 2", len(calls))
		}
		if action := calls[1].Body["action"]; action != "Reject" {
			t.Errorf("action = %v, want Reject", action)
		}
	})
}

func TestLeaveTypes(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, map[string]response{
		"POST /api/method/" + methodLeaveDetails: message(map[string]any{
			"leave_allocation": map[string]any{
				"Sick Leave":   map[string]any{"remaining_leaves": 3},
				"Casual Leave": map[string]any{"remaining_leaves": 5},
			},
		}),
	})

	got, err := c.Leaves.LeaveTypes(t.Context(), "EMP-1", mustDate(t, "2024-03-04"))
	if err != nil {
		t.Fatalf("LeaveTypes() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Casual Leave", "Sick Leave"}, got); diff != "" {
		t.Errorf("LeaveTypes() mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		resp         response
		wantMessage  string
		wantNotFound bool
	}{
		{
			name: "server messages",
			resp: response{status: http.StatusExpectationFailed, body: map[string]any{
				"exc_type":         "ValidationError",
				"_server_messages": `["{\"message\": \"Leave overlaps\"}"]`,
			}},
			wantMessage: "Leave overlaps",
		},
		{
			name: "traceback",
			resp: response{status: http.StatusInternalServerError, body: map[string]any{
				"exception": "Traceback ...\nfrappe.exceptions.ValidationError: Invalid task",
			}},
			wantMessage: "Invalid task",
		},
		{
			name:         "missing document",
			resp:         response{status: http.StatusNotFound, body: map[string]any{"exc_type": "DoesNotExistError"}},
			wantMessage:  "404 Not Found",
			wantNotFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, map[string]response{
				"GET /api/resource/Leave Application/LA-9": tt.resp,
			})

			_, err := c.Leaves.Get(t.Context(), "LA-9")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Get() error = %v, want *APIError", err)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if got := errors.Is(err, ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v", got, tt.wantNotFound)
			}
		})
	}
}

func TestByEmail(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, map[string]response{
			"GET /api/resource/Employee": data([]map[string]any{{"name": "EMP-1", "user_id": "jane@example.com"}}),
		})
		got, err := c.Employees.ByEmail(t.Context(), " jane@example.com ")
		if err != nil {
			t.Fatalf("ByEmail() error = %v", err)
		}
		if got.Name != "EMP-1" {
			t.Errorf("ByEmail().Name = %q, want %q", got.Name, "EMP-1")
		}
		if q := site.recorded()[0].Query; q["or_filters"] == "" || q["limit_page_length"] != "1" {
			t.Errorf("query = %v, want or_filters and limit 1", q)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t, map[string]response{
			"GET /api/resource/Employee": data([]any{}),
		})
		if _, err := c.Employees.ByEmail(t.Context(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ByEmail() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDailyNorm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pms       bool
		employee  map[string]any
		hrHours   any
		want      float64
		wantCalls int
	}{
		{
			name:      "hr settings",
			hrHours:   7.5,
			want:      7.5,
			wantCalls: 1,
		},
		{
			name:      "default",
			hrHours:   nil,
			want:      8,
			wantCalls: 1,
		},
		{
			name:      "employee per day",
			pms:       true,
			employee:  map[string]any{"custom_working_hours": 6, "custom_work_schedule": "Per Day"},
			want:      6,
			wantCalls: 1,
		},
		{
			name:      "employee per week",
			pms:       true,
			employee:  map[string]any{"custom_working_hours": 40, "custom_work_schedule": "Per Week"},
			want:      8,
			wantCalls: 1,
		},
		{
			name:      "employee without hours falls back",
			pms:       true,
			employee:  map[string]any{},
			hrHours:   9,
			want:      9,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, site := newTestClient(t, map[string]response{
				"GET /api/resource/Employee/EMP-1":          data(tt.employee),
				"GET /api/resource/HR Settings/HR Settings": data(map[string]any{"standard_working_hours": tt.hrHours}),
			}, WithPMS(tt.pms))

			got, err := c.Timesheets.DailyNorm(t.Context(), "EMP-1")
			if err != nil {
				t.Fatalf("DailyNorm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DailyNorm() = %v, want %v", got, tt.want)
			}
			if n := len(site.recorded()); n != tt.wantCalls {
				t.Errorf("DailyNorm() made %d calls, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestReportedHours(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, map[string]response{
		"GET /api/resource/Timesheet": data([]map[string]any{{"total_hours": 2.5}, {"total_hours": 3}}),
	})
	got, err := c.Timesheets.ReportedHours(t.Context(), "EMP-1", mustDate(t, "2024-03-04"))
	if err != nil {
		t.Fatalf("ReportedHours() error = %v", err)
	}
	if got != 5.5 {
		t.Errorf("ReportedHours() = %v, want 5.5", got)
	}
}

func TestCreateTimeLog(t *testing.T) {
	t.Parallel()

	entry := TimeEntry{
		Employee:    "EMP-1",
		Task:        "TASK-1",
		Date:        mustDate(t, "2024-03-04"),
		Hours:       1.5,
		Description: "review",
	}

	t.Run("new timesheet", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, map[string]response{
			"GET /api/resource/Task/TASK-1": data(map[string]any{"name": "TASK-1", "project": "PROJ-1"}),
			"GET /api/resource/Timesheet":   data([]any{}),
			"POST /api/resource/Timesheet":  data(map[string]any{"name": "TS-1"}),
		})

		got, err := c.Timesheets.CreateTimeLog(t.Context(), entry)
		if err != nil {
			t.Fatalf("CreateTimeLog() error = %v", err)
		}
		if got.Name != "TS-1" {
			t.Errorf("CreateTimeLog().Name = %q, want %q", got.Name, "TS-1")
		}
		calls := site.recorded()
		body := calls[len(calls)-1].Body
		if body["parent_project"] != "PROJ-1" {
			t.Errorf("parent_project = %v, want PROJ-1", body["parent_project"])
		}
		logs, _ := body["time_logs"].([]any)
		if len(logs) != 1 {
			t.Fatalf("time_logs = %v, want one log", body["time_logs"])
		}
		log := logs[0].(map[string]any)
		if log["from_time"] != "2024-03-04 00:00:00" || log["to_time"] != "2024-03-04 01:30:00" {
			t.Errorf("log times = %v..%v, want 00:00..01:30", log["from_time"], log["to_time"])
		}
	})

	t.Run("append to existing", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, map[string]response{
			"GET /api/resource/Task/TASK-1": data(map[string]any{"name": "TASK-1", "project": "PROJ-1"}),
			"GET /api/resource/Timesheet":   data([]map[string]any{{"name": "TS-7"}}),
			"GET /api/resource/Timesheet/TS-7": data(map[string]any{
				"name":      "TS-7",
				"time_logs": []map[string]any{{"name": "row-1", "task": "TASK-0"}},
			}),
			"PUT /api/resource/Timesheet/TS-7": data(map[string]any{"name": "TS-7"}),
		})

		if _, err := c.Timesheets.CreateTimeLog(t.Context(), entry); err != nil {
			t.Fatalf("CreateTimeLog() error = %v", err)
		}
		calls := site.recorded()
		last := calls[len(calls)-1]
		if last.Method != http.MethodPut {
			t.Fatalf("last call = %s %s, want PUT", last.Method, last.Path)
		}
		logs, _ := last.Body["time_logs"].([]any)
		if len(logs) != 2 {
			t.Fatalf("time_logs has %d rows, want 2", len(logs))
		}
		if name := logs[0].(map[string]any)["name"]; name != "row-1" {
			t.Errorf("existing row name = %v, want row-1", name)
		}
	})

	t.Run("rejects non-positive hours", func(t *testing.T) {
		t.Parallel()
		c, site := newTestClient(t, nil)
		bad := entry
		bad.Hours = 0
		if _, err := c.Timesheets.CreateTimeLog(t.Context(), bad); err == nil {
			t.Error("CreateTimeLog() error = nil, want error")
		}
		if n := len(site.recorded()); n != 0 {
			t.Errorf("CreateTimeLog() made %d calls, want 0", n)
		}
	})
}

func TestHolidays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message any
		want    bool
	}{
		{name: "true", message: true, want: true},
		{name: "false", message: false, want: false},
		{name: "null", message: nil, want: false},
		{name: "list", message: []any{map[string]any{"holiday_date": "2024-03-04"}}, want: true},
		{name: "empty list", message: []any{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newTestClient(t, map[string]response{
				"POST /api/method/" + methodEmployeeIsHoliday: message(tt.message),
			})
			got, err := c.Holidays.EmployeeHoliday(t.Context(), "EMP-1", mustDate(t, "2024-03-04"))
			if err != nil {
				t.Fatalf("EmployeeHoliday() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EmployeeHoliday() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("holiday list", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t, map[string]response{
			"GET /api/resource/Holiday List/India 2024": data(map[string]any{
				"holidays": []map[string]any{{"holiday_date": "2024-03-25"}},
			}),
		})
		for day, want := range map[string]bool{"2024-03-25": true, "2024-03-26": false} {
			got, err := c.Holidays.ListHoliday(t.Context(), "India 2024", mustDate(t, day))
			if err != nil {
				t.Fatalf("ListHoliday() error = %v", err)
			}
			if got != want {
				t.Errorf("ListHoliday(%s) = %v, want %v", day, got, want)
			}
		}
	})
}

func TestWorkloadSettings(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, map[string]response{
		"GET /api/resource/Timesheet Settings/Timesheet Settings": data(map[string]any{
			"remind_on":    "Friday",
			"designations": []map[string]any{{"designation": "Engineer"}, {"designation": "Designer"}},
		}),
	})
	got, err := c.Workload.Settings(t.Context())
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if got.RemindOn != "Friday" {
		t.Errorf("RemindOn = %q, want Friday", got.RemindOn)
	}
	if diff := cmp.Diff([]string{"Engineer", "Designer"}, got.DesignationNames()); diff != "" {
		t.Errorf("DesignationNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestDateJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "date", input: `"2024-03-04"`, want: "2024-03-04"},
		{name: "datetime", input: `"2024-03-04 10:00:00"`, want: "2024-03-04"},
		{name: "null", input: `null`, want: ""},
		{name: "empty", input: `""`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d Date
			if err := go_json.Unmarshal([]byte(tt.input), &d); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got := d.String(); got != tt.want {
				t.Errorf("Date = %q, want %q", got, tt.want)
			}
		})
	}

	b, err := go_json.Marshal(NewDate(time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"2024-03-04"` {
		t.Errorf("Marshal() = %s, want \"2024-03-04\"", b)
	}
}

func TestEmailTemplate(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, map[string]response{
		"GET /api/resource/Email Template/Timesheet Reminder": data(map[string]any{
			"response":      "plain",
			"response_html": "Hi {{ mention }}",
		}),
	})
	got, err := c.EmailTemplate(t.Context(), "Timesheet Reminder")
	if err != nil {
		t.Fatalf("EmailTemplate() error = %v", err)
	}
	if got != "Hi {{ mention }}" {
		t.Errorf("EmailTemplate() = %q, want %q", got, "Hi {{ mention }}")
	}
}
