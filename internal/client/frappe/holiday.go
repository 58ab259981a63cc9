package frappe

import "context"

const (
	doctypeHolidayList = "Holiday List"

	methodEmployeeIsHoliday = "erpnext.setup.doctype.employee.employee.is_holiday"
)

type HolidayService interface {
	// EmployeeHoliday reports whether day is a holiday on the employee's
	// holiday list (or the company default).
	EmployeeHoliday(ctx context.Context, employee string, day Date) (bool, error)
	// ListHoliday reports whether day appears on the named holiday list.
	ListHoliday(ctx context.Context, list string, day Date) (bool, error)
}

type holidayService struct {
	client *Client
}

func (s *holidayService) EmployeeHoliday(ctx context.Context, employee string, day Date) (bool, error) {
	// is_holiday returns a truthy value: a bool, or a list of holidays when
	// only_non_weekly is set.
	v, err := call[any](ctx, s.client, methodEmployeeIsHoliday, map[string]any{
		"employee":        employee,
		"date":            day.String(),
		"raise_exception": 0,
	})
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func (s *holidayService) ListHoliday(ctx context.Context, list string, day Date) (bool, error) {
	doc, err := get[struct {
		Holidays []struct {
			HolidayDate Date `json:"holiday_date"`
		} `json:"holidays"`
	}](ctx, s.client, doctypeHolidayList, list)
	if err != nil {
		return false, err
	}
	for _, h := range doc.Holidays {
		if h.HolidayDate.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	default:
		return true
	}
}
