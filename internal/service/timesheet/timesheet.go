// Package timesheet records time entries from the chat timesheet modal.
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/validator"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

// KindApprovalNotice tells a manager that a weekly timesheet awaits approval.
const KindApprovalNotice jobs.Kind = "timesheet.approval_notice"

const (
	openErrorHeading = ":warning: Error opening timesheet"
	noProjects       = "No projects found"
	noTasks          = "No tasks found"
)

type Directory interface {
	EmployeeForChatUser(ctx context.Context, chatUserID string) (frappe.Employee, error)
	ChatUserForEmployee(ctx context.Context, employeeID string) (string, error)
}

type Service struct {
	chat       chat.Messenger
	timesheets frappe.TimesheetService
	employees  frappe.EmployeeService
	directory  Directory
	loc        *time.Location
	now        func() time.Time
}

func New(
	messenger chat.Messenger,
	timesheets frappe.TimesheetService,
	employees frappe.EmployeeService,
	directory Directory,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		chat:       messenger,
		timesheets: timesheets,
		employees:  employees,
		directory:  directory,
		loc:        loc,
		now:        time.Now,
	}
}

func (s *Service) Register(r *jobs.Runner) {
	r.Register(KindApprovalNotice, s.handleApprovalNotice)
}

// OpenModal opens the timesheet form, or an error modal explaining why it
// cannot be filled.
func (s *Service) OpenModal(ctx context.Context, triggerID string) error {
	view, err := s.form(ctx)
	if err != nil {
		xslog.FromContext(ctx).WarnContext(ctx, "building timesheet form", xslog.Error(err))
		view = render.ErrorModal(render.CallbackErrorModal, openErrorHeading, err.Error())
	}
	_, viewErr := s.chat.OpenView(ctx, triggerID, view)
	return viewErr
}

func (s *Service) form(ctx context.Context) (slack.ModalViewRequest, error) {
	projects, err := s.timesheets.Projects(ctx)
	if err != nil {
		return slack.ModalViewRequest{}, err
	}
	if len(projects) == 0 {
		return render.ErrorModal(render.CallbackErrorModal, openErrorHeading, noProjects), nil
	}
	tasks, err := s.timesheets.Tasks(ctx, "")
	if err != nil {
		return slack.ModalViewRequest{}, err
	}
	if len(tasks) == 0 {
		return render.ErrorModal(render.CallbackErrorModal, openErrorHeading, noTasks), nil
	}
	return render.TimesheetForm(projects, tasks, s.now().In(s.loc)), nil
}

// OpenFromReminder handles the button on the daily reminder.
func (s *Service) OpenFromReminder(ctx context.Context, p *interaction.BlockActions) error {
	return s.OpenModal(ctx, p.TriggerID)
}

// Filter narrows the task list when a project is picked and fills in the
// project when a task is picked first.
func (s *Service) Filter(ctx context.Context, p *interaction.BlockActions) error {
	if p.View == nil {
		return fmt.Errorf("%w: timesheet filter outside a view", interaction.ErrMalformedRequest)
	}

	var err error
	switch p.Action.ActionID {
	case render.ActionProject:
		err = s.filterTasks(ctx, p)
	case render.ActionTask:
		err = s.selectProject(ctx, p)
	default:
		return nil
	}
	if err == nil {
		return nil
	}

	xslog.FromContext(ctx).WarnContext(ctx, "updating timesheet form", xslog.Error(err))
	_, pushErr := s.chat.PushView(ctx, p.TriggerID, render.TimesheetError(err.Error()))
	return pushErr
}

func (s *Service) filterTasks(ctx context.Context, p *interaction.BlockActions) error {
	project := p.Action.SelectedOption.Value
	tasks, err := s.timesheets.Tasks(ctx, project)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		_, err := s.chat.PushView(ctx, p.TriggerID, render.NoTasks(project))
		return err
	}
	_, err = s.chat.UpdateView(ctx, render.WithTasks(*p.View, tasks), p.View.ID, p.View.Hash)
	return err
}

func (s *Service) selectProject(ctx context.Context, p *interaction.BlockActions) error {
	name, err := s.timesheets.TaskProject(ctx, p.Action.SelectedOption.Value)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	project, err := s.timesheets.Project(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.chat.UpdateView(ctx, render.WithProject(*p.View, project), p.View.ID, p.View.Hash)
	return err
}

// Submit records the time entry and answers with a pushed result view.
func (s *Service) Submit(ctx context.Context, p *interaction.ViewSubmission) (interaction.Response, error) {
	form := parse(p)
	if resp := validator.Validate(form); resp != nil {
		return interaction.Response{Body: resp}, nil
	}
	entry := form.entry

	view := render.TimesheetSubmitted()
	emp, err := s.directory.EmployeeForChatUser(ctx, p.User.ID)
	if err == nil {
		entry.Employee = emp.Name
		_, err = s.timesheets.CreateTimeLog(ctx, entry)
	}
	if err != nil {
		xslog.FromContext(ctx).ErrorContext(ctx, "creating time log", xslog.Task(entry.Task), xslog.Error(err))
		view = render.TimesheetError(err.Error())
	}
	return interaction.Response{Body: slack.NewPushViewSubmissionResponse(&view)}, nil
}

// maxEntryHours caps a single entry at one day.
const maxEntryHours = 24

// entryForm is a submitted time entry before validation.
type entryForm struct {
	entry    frappe.TimeEntry
	badDate  bool
	badHours bool
}

var _ validator.Validator = entryForm{}

func (f entryForm) Validate() map[string]string {
	errs := validator.Errors{}
	if f.entry.Task == "" {
		errs.Add(interaction.BlockTask, "Task is mandatory.")
	}
	if f.badDate {
		errs.Add(render.BlockEntryDate, "Select a date")
	}
	if f.badHours || !(f.entry.Hours > 0 && f.entry.Hours <= maxEntryHours) {
		errs.Add(render.BlockHours, "Hours must be a number greater than 0 and at most 24")
	}
	return errs
}

func parse(p *interaction.ViewSubmission) entryForm {
	var f entryForm

	if v, ok := p.StateValue(interaction.BlockTask, render.ActionTask); ok {
		f.entry.Task = v.SelectedOption.Value
	}

	v, _ := p.StateValue(render.BlockEntryDate, render.ActionEntryDate)
	day, err := frappe.ParseDate(v.SelectedDate)
	f.badDate = err != nil
	f.entry.Date = day

	v, _ = p.StateValue(render.BlockHours, render.ActionHours)
	hours, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	f.badHours = err != nil || math.IsNaN(hours) || math.IsInf(hours, 0)
	f.entry.Hours = hours

	if v, ok := p.StateValue(render.BlockDescription, render.ActionDescription); ok {
		f.entry.Description = strings.TrimSpace(v.Value)
	}
	return f
}

type ApprovalNoticePayload struct {
	Timesheet    string `json:"timesheet"`
	Employee     string `json:"employee"`
	EmployeeName string `json:"employee_name"`
}

func (s *Service) handleApprovalNotice(ctx context.Context, job jobs.Job) error {
	var p ApprovalNoticePayload
	if err := job.Decode(&p); err != nil {
		return jobs.Permanent(err)
	}
	logger := xslog.FromContext(ctx).With(xslog.EmployeeID(p.Employee))

	emp, err := s.employees.Get(ctx, p.Employee)
	if err != nil {
		return err
	}
	if emp.ReportsTo == "" {
		logger.WarnContext(ctx, "employee has no reporting manager, skipping timesheet notice")
		return nil
	}

	manager, err := s.directory.ChatUserForEmployee(ctx, emp.ReportsTo)
	if errors.Is(err, directory.ErrNotLinked) {
		logger.WarnContext(ctx, "manager has no chat account", slog.String("manager", emp.ReportsTo))
		return nil
	}
	if err != nil {
		return err
	}

	name := p.EmployeeName
	if name == "" {
		name = emp.EmployeeName
	}
	requester, err := s.directory.ChatUserForEmployee(ctx, p.Employee)
	if err != nil && !errors.Is(err, directory.ErrNotLinked) {
		logger.WarnContext(ctx, "resolving employee chat account", xslog.Error(err))
	}

	_, err = s.chat.PostText(ctx, manager, render.TimesheetApprovalText(render.Mention(requester, name)))
	return err
}
