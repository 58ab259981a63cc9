package frappe

import "context"

const (
	doctypeTimesheetSettings  = "Timesheet Settings"
	doctypeResourceAllocation = "Resource Allocation"
)

type WorkloadService interface {
	Settings(ctx context.Context) (TimesheetSettings, error)
	// Allocations lists resource allocations of employees overlapping [start, end].
	Allocations(ctx context.Context, employees []string, start, end Date) ([]Allocation, error)
}

type workloadService struct {
	client *Client
}

func (s *workloadService) Settings(ctx context.Context) (TimesheetSettings, error) {
	return get[TimesheetSettings](ctx, s.client, doctypeTimesheetSettings, doctypeTimesheetSettings)
}

func (s *workloadService) Allocations(ctx context.Context, employees []string, start, end Date) ([]Allocation, error) {
	if len(employees) == 0 {
		return nil, nil
	}
	return list[Allocation](ctx, s.client, doctypeResourceAllocation, ListParams{
		Fields: []string{"employee", "allocation_start_date", "allocation_end_date", "hours_allocated_per_day"},
		Filters: []Filter{
			In("employee", employees),
			Lte("allocation_start_date", end.String()),
			Gte("allocation_end_date", start.String()),
		},
	})
}
