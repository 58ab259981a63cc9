package timesheet

import (
	"errors"
	"testing"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/testutil"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/google/go-cmp/cmp"
	"github.com/slack-go/slack"
)

type fixture struct {
	svc        *Service
	chat       *testutil.Messenger
	timesheets *testutil.Timesheets
	runner     *jobs.Runner
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	messenger := testutil.NewMessenger(
		chat.User{ID: "U1", Username: "asha", Email: "asha@example.com"},
		chat.User{ID: "U2", Username: "mira", Email: "mira@example.com"},
	)
	employees := testutil.NewEmployees(
		frappe.Employee{Name: "EMP-1", EmployeeName: "Asha", UserID: "asha@example.com", ReportsTo: "EMP-2"},
		frappe.Employee{Name: "EMP-2", EmployeeName: "Mira", UserID: "mira@example.com"},
		frappe.Employee{Name: "EMP-3", EmployeeName: "Ravi", UserID: "ravi@example.com"},
	)
	timesheets := testutil.NewTimesheets()
	timesheets.ProjectList = []frappe.Project{
		{Name: "PROJ-1", ProjectName: "Website"},
		{Name: "PROJ-2", ProjectName: "Mobile"},
	}
	timesheets.TaskList = []frappe.Task{
		{Name: "TASK-1", Subject: "Landing page", Project: "PROJ-1"},
		{Name: "TASK-2", Subject: "Login", Project: "PROJ-2"},
	}

	store := testutil.NewStore(t)
	svc := New(messenger, timesheets, employees, directory.New(messenger, employees, store), time.UTC)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) }

	runner := jobs.NewRunner(jobs.WithLogger(xslog.Discard()))
	svc.Register(runner)

	return fixture{svc: svc, chat: messenger, timesheets: timesheets, runner: runner}
}

func TestOpenModal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		setup        func(*testutil.Timesheets)
		wantCallback string
	}{
		{name: "form", setup: func(*testutil.Timesheets) {}, wantCallback: interaction.CallbackTimesheetModal},
		{name: "no projects", setup: func(ts *testutil.Timesheets) { ts.ProjectList = nil }, wantCallback: render.CallbackErrorModal},
		{name: "no tasks", setup: func(ts *testutil.Timesheets) { ts.TaskList = nil }, wantCallback: render.CallbackErrorModal},
		{name: "erp failure", setup: func(ts *testutil.Timesheets) { ts.ProjectErr = errors.New("boom") }, wantCallback: render.CallbackErrorModal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.setup(f.timesheets)

			if err := f.svc.OpenModal(t.Context(), "trigger"); err != nil {
				t.Fatalf("OpenModal() error = %v", err)
			}
			calls := f.chat.ViewCalls()
			if len(calls) != 1 || calls[0].Method != "views.open" {
				t.Fatalf("view calls = %+v, want one views.open", calls)
			}
			if got := calls[0].View.CallbackID; got != tt.wantCallback {
				t.Errorf("CallbackID = %q, want %q", got, tt.wantCallback)
			}
		})
	}
}

func TestOpenModalViewFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.chat.Errors = map[string]error{"views.open": errors.New("expired_trigger_id")}

	if err := f.svc.OpenModal(t.Context(), "trigger"); err == nil {
		t.Error("OpenModal() error = nil, want error")
	}
}

func openForm(t *testing.T, f fixture) slack.View {
	t.Helper()

	form, err := f.svc.form(t.Context())
	if err != nil {
		t.Fatalf("form() error = %v", err)
	}
	return slack.View{ID: "V1", Hash: "h1", CallbackID: form.CallbackID, Title: form.Title, Blocks: form.Blocks}
}

func selectOptions(t *testing.T, view slack.ModalViewRequest, blockID string) []string {
	t.Helper()

	for _, b := range view.Blocks.BlockSet {
		in, ok := b.(*slack.InputBlock)
		if !ok || in.BlockID != blockID {
			continue
		}
		sel, ok := in.Element.(*slack.SelectBlockElement)
		if !ok {
			t.Fatalf("block %q is not a select", blockID)
		}
		var values []string
		for _, o := range sel.Options {
			values = append(values, o.Value)
		}
		if sel.InitialOption != nil {
			values = append(values, "initial:"+sel.InitialOption.Value)
		}
		return values
	}
	t.Fatalf("block %q not found", blockID)
	return nil
}

func TestFilterByProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := openForm(t, f)

	err := f.svc.Filter(t.Context(), &interaction.BlockActions{
		TriggerID: "trigger",
		Action:    slack.BlockAction{ActionID: render.ActionProject, BlockID: interaction.BlockProject, SelectedOption: slack.OptionBlockObject{Value: "PROJ-2"}},
		View:      &view,
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	calls := f.chat.ViewCalls()
	if len(calls) != 1 || calls[0].Method != "views.update" {
		t.Fatalf("view calls = %+v, want one views.update", calls)
	}
	if calls[0].ViewID != "V1" || calls[0].Hash != "h1" {
		t.Errorf("update target = %q/%q, want V1/h1", calls[0].ViewID, calls[0].Hash)
	}
	if diff := cmp.Diff([]string{"TASK-2"}, selectOptions(t, calls[0].View, interaction.BlockTask)); diff != "" {
		t.Errorf("task options mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterProjectWithoutTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.timesheets.ProjectList = append(f.timesheets.ProjectList, frappe.Project{Name: "PROJ-3"})
	view := openForm(t, f)

	err := f.svc.Filter(t.Context(), &interaction.BlockActions{
		TriggerID: "trigger",
		Action:    slack.BlockAction{ActionID: render.ActionProject, SelectedOption: slack.OptionBlockObject{Value: "PROJ-3"}},
		View:      &view,
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	calls := f.chat.ViewCalls()
	if len(calls) != 1 || calls[0].Method != "views.push" {
		t.Fatalf("view calls = %+v, want one views.push", calls)
	}
}

func TestFilterByTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := openForm(t, f)

	err := f.svc.Filter(t.Context(), &interaction.BlockActions{
		TriggerID: "trigger",
		Action:    slack.BlockAction{ActionID: render.ActionTask, SelectedOption: slack.OptionBlockObject{Value: "TASK-1"}},
		View:      &view,
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	calls := f.chat.ViewCalls()
	if len(calls) != 1 || calls[0].Method != "views.update" {
		t.Fatalf("view calls = %+v, want one views.update", calls)
	}
	got := selectOptions(t, calls[0].View, interaction.BlockProject)
	if last := got[len(got)-1]; last != "initial:PROJ-1" {
		t.Errorf("initial project = %q, want %q", last, "initial:PROJ-1")
	}
}

func TestFilterFailurePushesError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	view := openForm(t, f)
	f.timesheets.TaskErr = errors.New("timeout")

	err := f.svc.Filter(t.Context(), &interaction.BlockActions{
		TriggerID: "trigger",
		Action:    slack.BlockAction{ActionID: render.ActionProject, SelectedOption: slack.OptionBlockObject{Value: "PROJ-1"}},
		View:      &view,
	})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	calls := f.chat.ViewCalls()
	if len(calls) != 1 || calls[0].Method != "views.push" {
		t.Fatalf("view calls = %+v, want one views.push", calls)
	}
	if got := calls[0].View.CallbackID; got != render.CallbackTimesheetError {
		t.Errorf("CallbackID = %q, want %q", got, render.CallbackTimesheetError)
	}
}

func TestFilterWithoutView(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.svc.Filter(t.Context(), &interaction.BlockActions{Action: slack.BlockAction{ActionID: render.ActionProject}})
	if !errors.Is(err, interaction.ErrMalformedRequest) {
		t.Errorf("Filter() error = %v, want %v", err, interaction.ErrMalformedRequest)
	}
}

func submission(user, task, date, hours string) *interaction.ViewSubmission {
	values := map[string]map[string]slack.BlockAction{
		render.BlockEntryDate:   {render.ActionEntryDate: {SelectedDate: date}},
		render.BlockHours:       {render.ActionHours: {Value: hours}},
		render.BlockDescription: {render.ActionDescription: {Value: " fixed header "}},
	}
	if task != "" {
		values[interaction.BlockTask] = map[string]slack.BlockAction{render.ActionTask: {SelectedOption: slack.OptionBlockObject{Value: task}}}
	}
	return &interaction.ViewSubmission{
		User: interaction.User{ID: user},
		View: slack.View{CallbackID: interaction.CallbackTimesheetModal, State: &slack.ViewState{Values: values}},
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	resp, err := f.svc.Submit(t.Context(), submission("U1", "TASK-1", "2024-03-04", "2.5"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.Body == nil || resp.Body.ResponseAction != slack.RAPush {
		t.Fatalf("Submit() response = %+v, want push", resp.Body)
	}
	if got := resp.Body.View.Title.Text; got != "Submitted" {
		t.Errorf("pushed view title = %q, want %q", got, "Submitted")
	}

	want := []frappe.TimeEntry{{
		Employee:    "EMP-1",
		Task:        "TASK-1",
		Date:        frappe.NewDate(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)),
		Hours:       2.5,
		Description: "fixed header",
	}}
	if diff := cmp.Diff(want, f.timesheets.Created, cmp.Comparer(func(a, b frappe.Date) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("created entries mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sub     *interaction.ViewSubmission
		wantKey string
	}{
		{name: "missing task", sub: submission("U1", "", "2024-03-04", "1"), wantKey: interaction.BlockTask},
		{name: "zero hours", sub: submission("U1", "TASK-1", "2024-03-04", "0"), wantKey: render.BlockHours},
		{name: "not a number", sub: submission("U1", "TASK-1", "2024-03-04", "two"), wantKey: render.BlockHours},
		{name: "negative hours", sub: submission("U1", "TASK-1", "2024-03-04", "-1"), wantKey: render.BlockHours},
		{name: "NaN hours", sub: submission("U1", "TASK-1", "2024-03-04", "NaN"), wantKey: render.BlockHours},
		{name: "infinite hours", sub: submission("U1", "TASK-1", "2024-03-04", "Inf"), wantKey: render.BlockHours},
		{name: "huge hours", sub: submission("U1", "TASK-1", "2024-03-04", "1e308"), wantKey: render.BlockHours},
		{name: "more than a day", sub: submission("U1", "TASK-1", "2024-03-04", "24.5"), wantKey: render.BlockHours},
		{name: "missing date", sub: submission("U1", "TASK-1", "", "1"), wantKey: render.BlockEntryDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			resp, err := f.svc.Submit(t.Context(), tt.sub)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if resp.Body == nil || resp.Body.ResponseAction != slack.RAErrors {
				t.Fatalf("Submit() response = %+v, want errors", resp.Body)
			}
			if _, ok := resp.Body.Errors[tt.wantKey]; !ok {
				t.Errorf("Errors = %v, want key %q", resp.Body.Errors, tt.wantKey)
			}
			if len(f.timesheets.Created) != 0 {
				t.Errorf("created %d entries, want none", len(f.timesheets.Created))
			}
		})
	}
}

func TestSubmitFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		user  string
		setup func(fixture)
	}{
		{name: "erp rejects", user: "U1", setup: func(f fixture) { f.timesheets.CreateErr = errors.New("<b>Overlapping</b> time logs") }},
		{name: "unknown employee", user: "U9", setup: func(fixture) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.setup(f)

			resp, err := f.svc.Submit(t.Context(), submission(tt.user, "TASK-1", "2024-03-04", "1"))
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if resp.Body == nil || resp.Body.ResponseAction != slack.RAPush {
				t.Fatalf("Submit() response = %+v, want push", resp.Body)
			}
			if got := resp.Body.View.CallbackID; got != render.CallbackTimesheetError {
				t.Errorf("CallbackID = %q, want %q", got, render.CallbackTimesheetError)
			}
		})
	}
}

func TestApprovalNotice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		employee  string
		wantPosts int
	}{
		{name: "manager notified", employee: "EMP-1", wantPosts: 1},
		{name: "no manager", employee: "EMP-2", wantPosts: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			job, err := jobs.New(KindApprovalNotice, ApprovalNoticePayload{Timesheet: "TS-1", Employee: tt.employee})
			if err != nil {
				t.Fatalf("jobs.New() error = %v", err)
			}
			if out := f.runner.Process(t.Context(), job); out.Err != nil {
				t.Fatalf("Process() error = %v", out.Err)
			}

			posts := f.chat.PostsTo("U2")
			if len(posts) != tt.wantPosts {
				t.Fatalf("posts to manager = %d, want %d", len(posts), tt.wantPosts)
			}
			if tt.wantPosts > 0 {
				want := render.TimesheetApprovalText("<@U1>")
				if posts[0].Text != want {
					t.Errorf("text = %q, want %q", posts[0].Text, want)
				}
			}
		})
	}
}
