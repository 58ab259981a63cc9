package frappe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	doctypeProject    = "Project"
	doctypeTask       = "Task"
	doctypeTimesheet  = "Timesheet"
	doctypeHRSettings = "HR Settings"

	// Slack select menus accept at most 100 options.
	optionLimit = 99

	defaultWorkingHours = 8
	schedulePerDay      = "Per Day"
	workdaysPerWeek     = 5
)

// TimeEntry is a single time log submitted for one day.
type TimeEntry struct {
	Employee    string
	Task        string
	Date        Date
	Hours       float64
	Description string
}

type TimesheetService interface {
	Projects(ctx context.Context) ([]Project, error)
	// Tasks lists tasks not completed or cancelled. An empty project lists
	// tasks across projects.
	Tasks(ctx context.Context, project string) ([]Task, error)
	TaskProject(ctx context.Context, task string) (string, error)
	Project(ctx context.Context, name string) (Project, error)
	ReportedHours(ctx context.Context, employee string, day Date) (float64, error)
	// DailyNorm is the number of hours the employee is expected to log per day.
	DailyNorm(ctx context.Context, employee string) (float64, error)
	// CreateTimeLog appends entry to the employee's timesheet for the task's
	// project on that day, creating the timesheet when none exists.
	CreateTimeLog(ctx context.Context, entry TimeEntry) (Timesheet, error)
}

type timesheetService struct {
	client *Client
}

func (s *timesheetService) Projects(ctx context.Context) ([]Project, error) {
	return list[Project](ctx, s.client, doctypeProject, ListParams{
		Fields:  []string{"name", "project_name"},
		Filters: []Filter{Eq("status", "Open")},
		OrderBy: "modified desc",
		Limit:   optionLimit,
	})
}

func (s *timesheetService) Tasks(ctx context.Context, project string) ([]Task, error) {
	filters := []Filter{NotIn("status", []string{"Completed", "Cancelled"})}
	if project != "" {
		filters = append(filters, Eq("project", project))
	}
	return list[Task](ctx, s.client, doctypeTask, ListParams{
		Fields:  []string{"name", "subject"},
		Filters: filters,
		OrderBy: "modified desc",
		Limit:   optionLimit,
	})
}

func (s *timesheetService) TaskProject(ctx context.Context, task string) (string, error) {
	t, err := get[Task](ctx, s.client, doctypeTask, task)
	if err != nil {
		return "", err
	}
	return t.Project, nil
}

func (s *timesheetService) Project(ctx context.Context, name string) (Project, error) {
	return get[Project](ctx, s.client, doctypeProject, name)
}

func (s *timesheetService) ReportedHours(ctx context.Context, employee string, day Date) (float64, error) {
	sheets, err := list[Timesheet](ctx, s.client, doctypeTimesheet, ListParams{
		Fields: []string{"total_hours"},
		Filters: []Filter{
			Eq("employee", employee),
			Eq("start_date", day.String()),
			Eq("end_date", day.String()),
		},
	})
	if err != nil {
		return 0, err
	}
	var total float64
	for _, sheet := range sheets {
		total += sheet.TotalHours
	}
	return total, nil
}

func (s *timesheetService) DailyNorm(ctx context.Context, employee string) (float64, error) {
	var (
		hours    float64
		schedule string
	)
	if s.client.fields.pms {
		emp, err := get[Employee](ctx, s.client, doctypeEmployee, employee)
		if err != nil {
			return 0, err
		}
		hours, schedule = emp.WorkingHours, emp.WorkSchedule
	}
	if hours == 0 {
		settings, err := get[struct {
			StandardWorkingHours float64 `json:"standard_working_hours"`
		}](ctx, s.client, doctypeHRSettings, doctypeHRSettings)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
		hours = settings.StandardWorkingHours
	}
	if hours == 0 {
		hours = defaultWorkingHours
	}
	if schedule != "" && schedule != schedulePerDay {
		return hours / workdaysPerWeek, nil
	}
	return hours, nil
}

func (s *timesheetService) CreateTimeLog(ctx context.Context, entry TimeEntry) (Timesheet, error) {
	if entry.Hours <= 0 {
		return Timesheet{}, fmt.Errorf("hours must be positive, got %v", entry.Hours)
	}

	task, err := get[Task](ctx, s.client, doctypeTask, entry.Task)
	if err != nil {
		return Timesheet{}, err
	}

	from := entry.Date.Time
	log := TimeLog{
		Task:        entry.Task,
		Project:     task.Project,
		Description: entry.Description,
		FromTime:    from.Format(DateTimeLayout),
		ToTime:      from.Add(time.Duration(entry.Hours * float64(time.Hour))).Format(DateTimeLayout),
		Hours:       entry.Hours,
	}
	if s.client.fields.pms {
		log.IsBillable = task.IsBillable
	}

	existing, err := list[Timesheet](ctx, s.client, doctypeTimesheet, ListParams{
		Fields: []string{"name"},
		Filters: []Filter{
			Eq("employee", entry.Employee),
			Gte("start_date", entry.Date.String()),
			Lte("end_date", entry.Date.String()),
			Eq("parent_project", task.Project),
			Ne("docstatus", 2),
		},
		Limit: 1,
	})
	if err != nil {
		return Timesheet{}, err
	}

	if len(existing) == 0 {
		return insert[Timesheet](ctx, s.client, doctypeTimesheet, Timesheet{
			Employee:      entry.Employee,
			ParentProject: task.Project,
			TimeLogs:      []TimeLog{log},
		})
	}

	sheet, err := get[Timesheet](ctx, s.client, doctypeTimesheet, existing[0].Name)
	if err != nil {
		return Timesheet{}, err
	}
	return update[Timesheet](ctx, s.client, doctypeTimesheet, sheet.Name, map[string]any{
		"parent_project": task.Project,
		"time_logs":      append(sheet.TimeLogs, log),
	})
}
