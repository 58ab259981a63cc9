package frappe

import (
	"bytes"
	"time"

	go_json "github.com/goccy/go-json"
)

const (
	DateLayout     = time.DateOnly
	DateTimeLayout = time.DateTime
)

// Date is a calendar day serialized as "YYYY-MM-DD". The zero value
// encodes as null.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal compares calendar days only.
func (d Date) Equal(o Date) bool { return d.String() == o.String() }

func (d Date) AddDays(n int) Date { return Date{d.AddDate(0, 0, n)} }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return go_json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := go_json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

const (
	LeaveStatusOpen     = "Open"
	LeaveStatusApproved = "Approved"
	LeaveStatusRejected = "Rejected"

	PeriodFirstHalf  = "First Half"
	PeriodSecondHalf = "Second Half"
)

type LeaveApplication struct {
	Name          string `json:"name,omitempty"`
	Employee      string `json:"employee"`
	EmployeeName  string `json:"employee_name,omitempty"`
	LeaveType     string `json:"leave_type"`
	FromDate      Date   `json:"from_date"`
	ToDate        Date   `json:"to_date"`
	PostingDate   Date   `json:"posting_date,omitzero"`
	Status        string `json:"status,omitempty"`
	HalfDay       int    `json:"half_day"`
	HalfDayDate   Date   `json:"half_day_date,omitzero"`
	HalfDayPeriod string `json:"custom_first_halfsecond_half,omitempty"`
	Description   string `json:"description,omitempty"`
	LeaveApprover string `json:"leave_approver,omitempty"`
	DocStatus     int    `json:"docstatus,omitempty"`
}

func (l LeaveApplication) IsHalfDay() bool { return l.HalfDay == 1 }

// Covers reports whether day falls within the leave.
func (l LeaveApplication) Covers(day Date) bool {
	s := day.String()
	return l.FromDate.String() <= s && s <= l.ToDate.String()
}

type Employee struct {
	Name          string  `json:"name"`
	EmployeeName  string  `json:"employee_name"`
	UserID        string  `json:"user_id"`
	CompanyEmail  string  `json:"company_email"`
	PersonalEmail string  `json:"personal_email"`
	Status        string  `json:"status"`
	Designation   string  `json:"designation"`
	ReportsTo     string  `json:"reports_to"`
	WorkingHours  float64 `json:"custom_working_hours"`
	WorkSchedule  string  `json:"custom_work_schedule"`
}

// Email returns the address used to match the employee to a chat account.
func (e Employee) Email() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.CompanyEmail
}

type Project struct {
	Name        string `json:"name"`
	ProjectName string `json:"project_name"`
}

type Task struct {
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Project    string `json:"project"`
	IsBillable int    `json:"custom_is_billable"`
}

type TimeLog struct {
	Name        string  `json:"name,omitempty"`
	Task        string  `json:"task"`
	Project     string  `json:"project,omitempty"`
	Description string  `json:"description"`
	FromTime    string  `json:"from_time"`
	ToTime      string  `json:"to_time"`
	Hours       float64 `json:"hours,omitempty"`
	IsBillable  int     `json:"is_billable,omitempty"`
}

type Timesheet struct {
	Name          string    `json:"name,omitempty"`
	Employee      string    `json:"employee"`
	ParentProject string    `json:"parent_project,omitempty"`
	StartDate     Date      `json:"start_date,omitzero"`
	EndDate       Date      `json:"end_date,omitzero"`
	TotalHours    float64   `json:"total_hours,omitempty"`
	Status        string    `json:"status,omitempty"`
	TimeLogs      []TimeLog `json:"time_logs,omitempty"`
}

type Allocation struct {
	Employee    string  `json:"employee"`
	StartDate   Date    `json:"allocation_start_date"`
	EndDate     Date    `json:"allocation_end_date"`
	HoursPerDay float64 `json:"hours_allocated_per_day"`
}

func (a Allocation) Covers(day Date) bool {
	s := day.String()
	return a.StartDate.String() <= s && s <= a.EndDate.String()
}

type DesignationRow struct {
	Designation string `json:"designation"`
}

type TimesheetSettings struct {
	Designations []DesignationRow `json:"designations"`
	// RemindOn is a weekday name such as "Monday".
	RemindOn string `json:"remind_on"`
}

func (s TimesheetSettings) DesignationNames() []string {
	out := make([]string, 0, len(s.Designations))
	for _, d := range s.Designations {
		out = append(out, d.Designation)
	}
	return out
}
