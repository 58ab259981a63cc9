package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/garrettladley/slackerp/internal/client/frappe"
)

type Decision struct {
	Name    string
	Approve bool
}

type Comment struct {
	Name    string
	Content string
}

// Leaves is an in-memory LeaveService.
type Leaves struct {
	mu        sync.Mutex
	Docs      map[string]frappe.LeaveApplication
	Types     []string
	Approvers map[string]string
	Err       error
	DecideErr error
	Decisions []Decision
	Comments  []Comment
	Created   []frappe.LeaveApplication
}

var _ frappe.LeaveService = (*Leaves)(nil)

func NewLeaves(docs ...frappe.LeaveApplication) *Leaves {
	l := &Leaves{Docs: map[string]frappe.LeaveApplication{}, Approvers: map[string]string{}}
	for _, d := range docs {
		l.Docs[d.Name] = d
	}
	return l
}

func active(l frappe.LeaveApplication) bool {
	return l.Status == frappe.LeaveStatusOpen || l.Status == frappe.LeaveStatusApproved
}

func (l *Leaves) sorted(keep func(frappe.LeaveApplication) bool) []frappe.LeaveApplication {
	var out []frappe.LeaveApplication
	for _, d := range l.Docs {
		if active(d) && keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b frappe.LeaveApplication) int {
		return cmp.Or(cmp.Compare(a.ToDate.String(), b.ToDate.String()), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func (l *Leaves) OnLeave(_ context.Context, day frappe.Date) ([]frappe.LeaveApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	return l.sorted(func(d frappe.LeaveApplication) bool { return d.Covers(day) }), nil
}

func (l *Leaves) InRange(_ context.Context, employees []string, start, end frappe.Date) ([]frappe.LeaveApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	return l.sorted(func(d frappe.LeaveApplication) bool {
		return slices.Contains(employees, d.Employee) &&
			d.FromDate.String() <= end.String() && d.ToDate.String() >= start.String()
	}), nil
}

func (l *Leaves) Get(_ context.Context, name string) (frappe.LeaveApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return frappe.LeaveApplication{}, l.Err
	}
	d, ok := l.Docs[name]
	if !ok {
		return frappe.LeaveApplication{}, fmt.Errorf("%s: %w", name, frappe.ErrNotFound)
	}
	return d, nil
}

func (l *Leaves) Create(_ context.Context, leave frappe.LeaveApplication) (frappe.LeaveApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return frappe.LeaveApplication{}, l.Err
	}
	if leave.Name == "" {
		leave.Name = fmt.Sprintf("HR-LAP-2024-%05d", len(l.Docs)+1)
	}
	if leave.Status == "" {
		leave.Status = frappe.LeaveStatusOpen
	}
	l.Docs[leave.Name] = leave
	l.Created = append(l.Created, leave)
	return leave, nil
}

func (l *Leaves) Decide(_ context.Context, name string, approve bool) (frappe.LeaveApplication, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.DecideErr != nil {
		return frappe.LeaveApplication{}, l.DecideErr
	}
	l.Decisions = append(l.Decisions, Decision{Name: name, Approve: approve})
	d := l.Docs[name]
	d.Status = frappe.LeaveStatusRejected
	if approve {
		d.Status = frappe.LeaveStatusApproved
	}
	l.Docs[name] = d
	return d, nil
}

func (l *Leaves) AddComment(_ context.Context, name, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Comments = append(l.Comments, Comment{Name: name, Content: content})
	return nil
}

func (l *Leaves) LeaveTypes(context.Context, string, frappe.Date) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Types, l.Err
}

func (l *Leaves) Approver(_ context.Context, employee string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Approvers[employee], nil
}

// Employees is an in-memory EmployeeService.
type Employees struct {
	mu   sync.Mutex
	Docs map[string]frappe.Employee
	Err  error
	Gets int
}

var _ frappe.EmployeeService = (*Employees)(nil)

func NewEmployees(docs ...frappe.Employee) *Employees {
	e := &Employees{Docs: map[string]frappe.Employee{}}
	for _, d := range docs {
		if d.Status == "" {
			d.Status = frappe.EmployeeStatusActive
		}
		e.Docs[d.Name] = d
	}
	return e
}

func (e *Employees) ByEmail(_ context.Context, email string) (frappe.Employee, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return frappe.Employee{}, e.Err
	}
	for _, d := range e.Docs {
		for _, candidate := range []string{d.UserID, d.CompanyEmail, d.PersonalEmail} {
			if candidate != "" && strings.EqualFold(candidate, email) {
				return d, nil
			}
		}
	}
	return frappe.Employee{}, fmt.Errorf("employee %s: %w", email, frappe.ErrNotFound)
}

func (e *Employees) Get(_ context.Context, name string) (frappe.Employee, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Gets++
	if e.Err != nil {
		return frappe.Employee{}, e.Err
	}
	d, ok := e.Docs[name]
	if !ok {
		return frappe.Employee{}, fmt.Errorf("employee %s: %w", name, frappe.ErrNotFound)
	}
	return d, nil
}

func (e *Employees) list(keep func(frappe.Employee) bool) []frappe.Employee {
	var out []frappe.Employee
	for _, d := range e.Docs {
		if d.Status == frappe.EmployeeStatusActive && keep(d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b frappe.Employee) int { return cmp.Compare(a.EmployeeName, b.EmployeeName) })
	return out
}

func (e *Employees) Active(context.Context) ([]frappe.Employee, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return e.list(func(frappe.Employee) bool { return true }), nil
}

func (e *Employees) ActiveByDesignation(_ context.Context, designations []string) ([]frappe.Employee, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	return e.list(func(d frappe.Employee) bool { return slices.Contains(designations, d.Designation) }), nil
}

// Timesheets is an in-memory TimesheetService. Reported is keyed by
// employee and date joined with "/".
type Timesheets struct {
	mu          sync.Mutex
	ProjectList []frappe.Project
	TaskList    []frappe.Task
	Reported    map[string]float64
	Norms       map[string]float64
	Err         error
	CreateErr   error
	Created     []frappe.TimeEntry
	TaskErr     error
	ProjectErr  error
}

var _ frappe.TimesheetService = (*Timesheets)(nil)

func NewTimesheets() *Timesheets {
	return &Timesheets{Reported: map[string]float64{}, Norms: map[string]float64{}}
}

func ReportedKey(employee string, day frappe.Date) string {
	return employee + "/" + day.String()
}

func (t *Timesheets) Projects(context.Context) ([]frappe.Project, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ProjectList, t.ProjectErr
}

func (t *Timesheets) Tasks(_ context.Context, project string) ([]frappe.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.TaskErr != nil {
		return nil, t.TaskErr
	}
	var out []frappe.Task
	for _, task := range t.TaskList {
		if project == "" || task.Project == project {
			out = append(out, task)
		}
	}
	return out, nil
}

func (t *Timesheets) TaskProject(_ context.Context, name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, task := range t.TaskList {
		if task.Name == name {
			return task.Project, nil
		}
	}
	return "", fmt.Errorf("task %s: %w", name, frappe.ErrNotFound)
}

func (t *Timesheets) Project(_ context.Context, name string) (frappe.Project, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.ProjectList {
		if p.Name == name {
			return p, nil
		}
	}
	return frappe.Project{}, fmt.Errorf("project %s: %w", name, frappe.ErrNotFound)
}

func (t *Timesheets) ReportedHours(_ context.Context, employee string, day frappe.Date) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return 0, t.Err
	}
	return t.Reported[ReportedKey(employee, day)], nil
}

func (t *Timesheets) DailyNorm(_ context.Context, employee string) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return 0, t.Err
	}
	if n, ok := t.Norms[employee]; ok {
		return n, nil
	}
	return 8, nil
}

func (t *Timesheets) CreateTimeLog(_ context.Context, entry frappe.TimeEntry) (frappe.Timesheet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CreateErr != nil {
		return frappe.Timesheet{}, t.CreateErr
	}
	t.Created = append(t.Created, entry)
	return frappe.Timesheet{Name: fmt.Sprintf("TS-%05d", len(t.Created)), Employee: entry.Employee}, nil
}

// Holidays answers from sets keyed by employee (or list) and date joined
// with "/".
type Holidays struct {
	mu       sync.Mutex
	Employee map[string]bool
	Lists    map[string]bool
	Err      error
}

var _ frappe.HolidayService = (*Holidays)(nil)

func NewHolidays() *Holidays {
	return &Holidays{Employee: map[string]bool{}, Lists: map[string]bool{}}
}

func (h *Holidays) EmployeeHoliday(_ context.Context, employee string, day frappe.Date) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Employee[ReportedKey(employee, day)], h.Err
}

func (h *Holidays) ListHoliday(_ context.Context, list string, day frappe.Date) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Lists[ReportedKey(list, day)], h.Err
}

type Workload struct {
	SettingsDoc frappe.TimesheetSettings
	AllocList   []frappe.Allocation
	Err         error
}

var _ frappe.WorkloadService = (*Workload)(nil)

func (w *Workload) Settings(context.Context) (frappe.TimesheetSettings, error) {
	return w.SettingsDoc, w.Err
}

func (w *Workload) Allocations(_ context.Context, employees []string, start, end frappe.Date) ([]frappe.Allocation, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	var out []frappe.Allocation
	for _, a := range w.AllocList {
		if slices.Contains(employees, a.Employee) &&
			a.StartDate.String() <= end.String() && a.EndDate.String() >= start.String() {
			out = append(out, a)
		}
	}
	return out, nil
}
