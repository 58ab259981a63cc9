// Package leave handles leave applications submitted and decided from chat.
package leave

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/validator"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

const (
	KindDecide jobs.Kind = "leave.decide"
	KindNotify jobs.Kind = "leave.notify"
)

// Directory resolves people between the ERP and the chat workspace.
type Directory interface {
	EmployeeForChatUser(ctx context.Context, chatUserID string) (frappe.Employee, error)
	ChatUserForEmail(ctx context.Context, email string) (string, error)
	ChatUserForEmployee(ctx context.Context, employeeID string) (string, error)
}

type Config struct {
	// SiteURL is the ERP base URL used to link leave applications.
	SiteURL string
	// AttendanceChannel receives thread replies for leaves starting today.
	AttendanceChannel string
	ThreadUpdates     bool
	CustomLeaveFields bool
	// AnnounceOnSubmit sends the approval request when a leave is submitted
	// from chat. Disable it when ERP webhooks already report new leaves.
	AnnounceOnSubmit bool
	Location         *time.Location
}

type Service struct {
	chat      chat.Messenger
	leaves    frappe.LeaveService
	directory Directory
	state     storage.StateStore
	queue     jobs.Queue
	cfg       Config
	now       func() time.Time
}

func New(
	messenger chat.Messenger,
	leaves frappe.LeaveService,
	directory Directory,
	state storage.StateStore,
	queue jobs.Queue,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		chat:      messenger,
		leaves:    leaves,
		directory: directory,
		state:     state,
		queue:     queue,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Register adds the background handlers for leave jobs.
func (s *Service) Register(r *jobs.Runner) {
	r.Register(KindDecide, s.handleDecide)
	r.Register(KindNotify, s.handleNotify)
}

func (s *Service) today() time.Time {
	n := s.now().In(s.cfg.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) link(id string) string {
	if s.cfg.SiteURL == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.SiteURL, "/") + "/app/leave-application/" + url.PathEscape(id)
}

// OpenForm opens the leave application modal for a slash command.
func (s *Service) OpenForm(ctx context.Context, chatUserID, triggerID string) error {
	err := s.openForm(ctx, chatUserID, triggerID)
	if err == nil {
		return nil
	}
	if _, viewErr := s.chat.OpenView(ctx, triggerID, render.GenericError()); viewErr != nil {
		err = errors.Join(err, viewErr)
	}
	return err
}

func (s *Service) openForm(ctx context.Context, chatUserID, triggerID string) error {
	emp, err := s.directory.EmployeeForChatUser(ctx, chatUserID)
	if err != nil {
		return err
	}
	today := s.today()
	types, err := s.leaves.LeaveTypes(ctx, emp.Name, frappe.NewDate(today))
	if err != nil {
		return fmt.Errorf("leave types for %s: %w", emp.Name, err)
	}
	_, err = s.chat.OpenView(ctx, triggerID, render.LeaveForm(types, today, emp.Name))
	return err
}

// ToggleHalfDay shows or hides the half-day inputs as the checkbox changes.
func (s *Service) ToggleHalfDay(ctx context.Context, p *interaction.BlockActions) error {
	if p.View == nil {
		return fmt.Errorf("%w: half-day toggle outside a view", interaction.ErrMalformedRequest)
	}
	start, _ := p.StateValue(render.BlockStartDate, render.ActionStartDate)
	end, _ := p.StateValue(render.BlockEndDate, render.ActionEndDate)
	selected := len(p.Action.SelectedOptions) > 0

	view := render.ToggleHalfDay(*p.View, selected, start.SelectedDate == end.SelectedDate)
	_, err := s.chat.UpdateView(ctx, view, p.View.ID, p.View.Hash)
	return err
}

type submission struct {
	start, end  frappe.Date
	leaveType   string
	reason      string
	halfDay     bool
	halfDayDate frappe.Date
	// pickedHalfDayDate is set when the half day date input was filled in.
	pickedHalfDayDate bool
	period            string
}

var _ validator.Validator = submission{}

func (s submission) Validate() map[string]string {
	errs := validator.Errors{}
	if s.start.IsZero() {
		errs.Add(render.BlockStartDate, "Select a start date")
	}
	if s.end.IsZero() {
		errs.Add(render.BlockEndDate, "Select an end date")
	}
	if errs.Empty() && s.end.Before(s.start.Time) {
		errs.Add(render.BlockEndDate, "End date must be on or after the start date")
	}
	if s.leaveType == "" {
		errs.Add(render.BlockLeaveType, "Select a leave type")
	}
	if s.halfDay && s.pickedHalfDayDate && errs.Empty() &&
		(s.halfDayDate.Before(s.start.Time) || s.halfDayDate.After(s.end.Time)) {
		errs.Add(render.BlockHalfDayDate, "Half day date must fall within the leave")
	}
	return errs
}

// parse reads the form. Unparseable dates are left zero.
func parse(p *interaction.ViewSubmission) submission {
	var sub submission

	date := func(blockID, actionID string) (frappe.Date, bool) {
		v, ok := p.StateValue(blockID, actionID)
		if !ok || v.SelectedDate == "" {
			return frappe.Date{}, false
		}
		d, err := frappe.ParseDate(v.SelectedDate)
		return d, err == nil
	}

	sub.start, _ = date(render.BlockStartDate, render.ActionStartDate)
	sub.end, _ = date(render.BlockEndDate, render.ActionEndDate)

	if v, ok := p.StateValue(render.BlockLeaveType, render.ActionLeaveType); ok {
		sub.leaveType = v.SelectedOption.Value
	}
	if v, ok := p.StateValue(render.BlockReason, render.ActionReason); ok {
		sub.reason = strings.TrimSpace(v.Value)
	}

	if v, ok := p.StateValue(interaction.BlockHalfDayCheckbox, render.ActionHalfDay); ok {
		sub.halfDay = len(v.SelectedOptions) > 0
	}
	if !sub.halfDay {
		return sub
	}

	sub.halfDayDate = sub.start
	if d, ok := date(render.BlockHalfDayDate, render.ActionHalfDayDate); ok {
		sub.halfDayDate, sub.pickedHalfDayDate = d, true
	}
	sub.period = frappe.PeriodFirstHalf
	if v, ok := p.StateValue(render.BlockHalfDayPeriod, render.ActionHalfDayPeriod); ok && v.SelectedOption.Value == render.ValueSecondHalf {
		sub.period = frappe.PeriodSecondHalf
	}
	return sub
}

// Submit creates the leave application from the submitted form.
func (s *Service) Submit(ctx context.Context, p *interaction.ViewSubmission) (interaction.Response, error) {
	logger := xslog.FromContext(ctx)

	sub := parse(p)
	if resp := validator.Validate(sub); resp != nil {
		return interaction.Response{Body: resp}, nil
	}

	employee := p.View.PrivateMetadata
	if employee == "" {
		emp, err := s.directory.EmployeeForChatUser(ctx, p.User.ID)
		if err != nil {
			return interaction.Response{}, err
		}
		employee = emp.Name
	}

	approver, err := s.leaves.Approver(ctx, employee)
	if err != nil {
		logger.WarnContext(ctx, "looking up leave approver", xslog.EmployeeID(employee), xslog.Error(err))
	}

	doc := frappe.LeaveApplication{
		Employee:      employee,
		LeaveType:     sub.leaveType,
		FromDate:      sub.start,
		ToDate:        sub.end,
		PostingDate:   frappe.NewDate(s.today()),
		Status:        frappe.LeaveStatusOpen,
		Description:   sub.reason,
		LeaveApprover: approver,
	}
	if sub.halfDay {
		doc.HalfDay = 1
		doc.HalfDayDate = sub.halfDayDate
		doc.HalfDayPeriod = sub.period
	}

	created, err := s.leaves.Create(ctx, doc)
	if err != nil {
		logger.ErrorContext(ctx, "creating leave application", xslog.EmployeeID(employee), xslog.Error(err))
		view := render.ErrorModal(render.CallbackErrorModal, ":warning: Error submitting leave application", err.Error())
		return interaction.Response{Body: slack.NewPushViewSubmissionResponse(&view)}, nil
	}
	logger.InfoContext(ctx, "leave application created", xslog.LeaveID(created.Name), xslog.EmployeeID(employee))

	if _, err := jobs.Submit(ctx, s.queue, KindNotify, NotifyPayload{
		LeaveID:         created.Name,
		RequesterChatID: p.User.ID,
		Announce:        s.cfg.AnnounceOnSubmit,
	}); err != nil {
		logger.ErrorContext(ctx, "enqueueing leave notification", xslog.LeaveID(created.Name), xslog.Error(err))
	}
	return interaction.Response{}, nil
}

// Decide queues the approve or reject chosen on an approval message.
func (s *Service) Decide(ctx context.Context, p *interaction.BlockActions) error {
	var approve bool
	switch p.Action.ActionID {
	case render.ActionLeaveApprove:
		approve = true
	case render.ActionLeaveReject:
	default:
		return fmt.Errorf("unknown leave action %q", p.Action.ActionID)
	}
	if p.Action.Value == "" {
		return fmt.Errorf("%w: leave action without a leave id", interaction.ErrMalformedRequest)
	}

	_, err := jobs.Submit(ctx, s.queue, KindDecide, DecidePayload{
		LeaveID:    p.Action.Value,
		Approve:    approve,
		ChannelID:  p.ChannelID,
		MessageTS:  p.MessageTS,
		Blocks:     p.Message,
		ChatUserID: p.User.ID,
	})
	return err
}
