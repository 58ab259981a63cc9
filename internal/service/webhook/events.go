package webhook

import (
	"fmt"

	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/service/leave"
	"github.com/garrettladley/slackerp/internal/service/timesheet"
	go_json "github.com/goccy/go-json"
)

const (
	DocTypeLeaveApplication = "Leave Application"
	DocTypeTimesheet        = "Timesheet"

	approvalPending = "Approval Pending"
)

// Event is a document change that results in background work.
type Event interface {
	webhookEvent()
	GetDocType() string
	GetName() string
	Job() (jobs.Kind, any)
}

type eventBase struct {
	DocType string `json:"doctype"`
	Name    string `json:"name"`
}

func (e eventBase) GetDocType() string { return e.DocType }
func (e eventBase) GetName() string    { return e.Name }

// LeaveCreated announces a new leave application to its approver.
type LeaveCreated struct {
	eventBase
}

func (e LeaveCreated) webhookEvent() {}
func (e LeaveCreated) Job() (jobs.Kind, any) {
	return leave.KindNotify, leave.NotifyPayload{LeaveID: e.Name, Announce: true}
}

// TimesheetPending tells the employee's manager that a weekly timesheet
// awaits approval.
type TimesheetPending struct {
	eventBase
	Employee     string
	EmployeeName string
}

func (e TimesheetPending) webhookEvent() {}
func (e TimesheetPending) Job() (jobs.Kind, any) {
	return timesheet.KindApprovalNotice, timesheet.ApprovalNoticePayload{
		Timesheet:    e.Name,
		Employee:     e.Employee,
		EmployeeName: e.EmployeeName,
	}
}

type rawPayload struct {
	DocType        string `json:"doctype"`
	Name           string `json:"name"`
	Event          string `json:"event"`
	Employee       string `json:"employee"`
	EmployeeName   string `json:"employee_name"`
	ApprovalStatus string `json:"custom_weekly_approval_status"`
}

// ParseEvent parses the body of an ERP webhook into a typed event.
// Returns ErrUnknownEventType for documents and changes that need no work.
func ParseEvent(data []byte) (Event, error) {
	var raw rawPayload
	if err := go_json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("%w: missing document name", ErrUnknownEventType)
	}

	base := eventBase{DocType: raw.DocType, Name: raw.Name}

	switch raw.DocType {
	case DocTypeLeaveApplication:
		if raw.Event != "" && raw.Event != "after_insert" {
			return nil, fmt.Errorf("%w: leave application event %s", ErrUnknownEventType, raw.Event)
		}
		return LeaveCreated{eventBase: base}, nil
	case DocTypeTimesheet:
		if raw.ApprovalStatus != approvalPending {
			return nil, fmt.Errorf("%w: timesheet status %q", ErrUnknownEventType, raw.ApprovalStatus)
		}
		if raw.Employee == "" {
			return nil, fmt.Errorf("%w: timesheet %s has no employee", ErrMalformedEvent, raw.Name)
		}
		return TimesheetPending{eventBase: base, Employee: raw.Employee, EmployeeName: raw.EmployeeName}, nil
	default:
		return nil, fmt.Errorf("%w: unknown doctype: %s", ErrUnknownEventType, raw.DocType)
	}
}
