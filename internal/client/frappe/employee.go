package frappe

import (
	"context"
	"fmt"
	"strings"
)

const doctypeEmployee = "Employee"

const EmployeeStatusActive = "Active"

type EmployeeService interface {
	// ByEmail finds the active employee whose user id, company email or
	// personal email matches.
	ByEmail(ctx context.Context, email string) (Employee, error)
	Get(ctx context.Context, name string) (Employee, error)
	Active(ctx context.Context) ([]Employee, error)
	ActiveByDesignation(ctx context.Context, designations []string) ([]Employee, error)
}

type employeeService struct {
	client *Client
}

func (s *employeeService) fields() []string {
	f := []string{
		"name", "employee_name", "user_id", "company_email", "personal_email",
		"status", "designation", "reports_to",
	}
	if s.client.fields.pms {
		f = append(f, "custom_working_hours", "custom_work_schedule")
	}
	return f
}

func (s *employeeService) ByEmail(ctx context.Context, email string) (Employee, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Employee{}, fmt.Errorf("employee by email: %w", ErrNotFound)
	}
	employees, err := list[Employee](ctx, s.client, doctypeEmployee, ListParams{
		Fields:  s.fields(),
		Filters: []Filter{Eq("status", EmployeeStatusActive)},
		OrFilters: []Filter{
			Eq("user_id", email),
			Eq("company_email", email),
			Eq("personal_email", email),
		},
		Limit: 1,
	})
	if err != nil {
		return Employee{}, err
	}
	if len(employees) == 0 {
		return Employee{}, fmt.Errorf("employee %s: %w", email, ErrNotFound)
	}
	return employees[0], nil
}

func (s *employeeService) Get(ctx context.Context, name string) (Employee, error) {
	return get[Employee](ctx, s.client, doctypeEmployee, name)
}

func (s *employeeService) Active(ctx context.Context) ([]Employee, error) {
	return list[Employee](ctx, s.client, doctypeEmployee, ListParams{
		Fields:  s.fields(),
		Filters: []Filter{Eq("status", EmployeeStatusActive)},
		OrderBy: "employee_name asc",
	})
}

func (s *employeeService) ActiveByDesignation(ctx context.Context, designations []string) ([]Employee, error) {
	if len(designations) == 0 {
		return nil, nil
	}
	return list[Employee](ctx, s.client, doctypeEmployee, ListParams{
		Fields: s.fields(),
		Filters: []Filter{
			Eq("status", EmployeeStatusActive),
			In("designation", designations),
		},
		OrderBy: "employee_name asc",
	})
}
