package frappe

import (
	"context"
	"fmt"
	"maps"
	"slices"

	go_json "github.com/goccy/go-json"
)

const (
	doctypeLeave   = "Leave Application"
	doctypeComment = "Comment"

	methodApplyWorkflow = "frappe.model.workflow.apply_workflow"
	methodLeaveDetails  = "hrms.hr.doctype.leave_application.leave_application.get_leave_details"
	methodLeaveApprover = "hrms.hr.doctype.leave_application.leave_application.get_leave_approver"
)

type LeaveService interface {
	// OnLeave lists open or approved leaves covering day, ordered by end date.
	OnLeave(ctx context.Context, day Date) ([]LeaveApplication, error)
	// InRange lists open or approved leaves of employees overlapping [start, end].
	InRange(ctx context.Context, employees []string, start, end Date) ([]LeaveApplication, error)
	Get(ctx context.Context, name string) (LeaveApplication, error)
	Create(ctx context.Context, leave LeaveApplication) (LeaveApplication, error)
	Decide(ctx context.Context, name string, approve bool) (LeaveApplication, error)
	AddComment(ctx context.Context, name, content string) error
	LeaveTypes(ctx context.Context, employee string, day Date) ([]string, error)
	Approver(ctx context.Context, employee string) (string, error)
}

type leaveService struct {
	client *Client
}

func (s *leaveService) fields() []string {
	f := []string{
		"name", "employee", "employee_name", "leave_type", "from_date", "to_date",
		"status", "half_day", "half_day_date", "leave_approver", "docstatus",
	}
	if s.client.fields.customLeave {
		f = append(f, "custom_first_halfsecond_half")
	}
	return f
}

func (s *leaveService) OnLeave(ctx context.Context, day Date) ([]LeaveApplication, error) {
	return list[LeaveApplication](ctx, s.client, doctypeLeave, ListParams{
		Fields: s.fields(),
		Filters: []Filter{
			Lte("from_date", day.String()),
			Gte("to_date", day.String()),
			In("status", []string{LeaveStatusOpen, LeaveStatusApproved}),
			Ne("docstatus", 2),
		},
		OrderBy: "to_date asc",
	})
}

func (s *leaveService) InRange(ctx context.Context, employees []string, start, end Date) ([]LeaveApplication, error) {
	if len(employees) == 0 {
		return nil, nil
	}
	return list[LeaveApplication](ctx, s.client, doctypeLeave, ListParams{
		Fields: s.fields(),
		Filters: []Filter{
			In("employee", employees),
			Lte("from_date", end.String()),
			Gte("to_date", start.String()),
			In("status", []string{LeaveStatusOpen, LeaveStatusApproved}),
			Ne("docstatus", 2),
		},
	})
}

func (s *leaveService) Get(ctx context.Context, name string) (LeaveApplication, error) {
	return get[LeaveApplication](ctx, s.client, doctypeLeave, name)
}

func (s *leaveService) Create(ctx context.Context, leave LeaveApplication) (LeaveApplication, error) {
	if !s.client.fields.customLeave {
		leave.HalfDayPeriod = ""
	}
	if leave.Status == "" {
		leave.Status = LeaveStatusOpen
	}
	return insert[LeaveApplication](ctx, s.client, doctypeLeave, leave)
}

// Decide approves or rejects a leave. Sites with the custom leave workflow
// go through apply_workflow; others set the status and submit.
func (s *leaveService) Decide(ctx context.Context, name string, approve bool) (LeaveApplication, error) {
	status, action := LeaveStatusRejected, "Reject"
	if approve {
		status, action = LeaveStatusApproved, "Approve"
	}

	if !s.client.fields.customLeave {
		return update[LeaveApplication](ctx, s.client, doctypeLeave, name, map[string]any{
			"status":    status,
			"docstatus": 1,
		})
	}

	doc, err := get[map[string]any](ctx, s.client, doctypeLeave, name)
	if err != nil {
		return LeaveApplication{}, err
	}
	docJSON, err := go_json.Marshal(doc)
	if err != nil {
		return LeaveApplication{}, fmt.Errorf("encoding %s: %w", name, err)
	}
	return call[LeaveApplication](ctx, s.client, methodApplyWorkflow, map[string]any{
		"doc":    string(docJSON),
		"action": action,
	})
}

func (s *leaveService) AddComment(ctx context.Context, name, content string) error {
	_, err := insert[map[string]any](ctx, s.client, doctypeComment, map[string]any{
		"comment_type":      "Info",
		"reference_doctype": doctypeLeave,
		"reference_name":    name,
		"content":           content,
	})
	return err
}

// LeaveTypes returns the leave types the employee holds an allocation for
// on day, sorted by name.
func (s *leaveService) LeaveTypes(ctx context.Context, employee string, day Date) ([]string, error) {
	details, err := call[struct {
		LeaveAllocation map[string]any `json:"leave_allocation"`
	}](ctx, s.client, methodLeaveDetails, map[string]any{
		"employee": employee,
		"date":     day.String(),
	})
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(details.LeaveAllocation)), nil
}

func (s *leaveService) Approver(ctx context.Context, employee string) (string, error) {
	return call[string](ctx, s.client, methodLeaveApprover, map[string]any{"employee": employee})
}
