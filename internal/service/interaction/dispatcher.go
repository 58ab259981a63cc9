package interaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

// Route names the single handler a payload is delivered to.
type Route string

const (
	RouteIgnore          Route = "ignore"
	RouteOpenTimesheet   Route = "open_timesheet"
	RouteToggleHalfDay   Route = "toggle_half_day"
	RouteFilterTimesheet Route = "filter_timesheet"
	RouteDecideLeave     Route = "decide_leave"
	RouteSubmitTimesheet Route = "submit_timesheet"
	RouteSubmitLeave     Route = "submit_leave"
)

const (
	IgnorePrefix = "ignore"

	BlockDailyReminderButton = "daily_reminder_button"
	BlockHalfDayCheckbox     = "half_day_checkbox"
	BlockProject             = "project_block"
	BlockTask                = "task_block"

	CallbackTimesheetModal = "timesheet_modal"
)

var blockRoutes = map[string]Route{
	BlockDailyReminderButton: RouteOpenTimesheet,
	BlockHalfDayCheckbox:     RouteToggleHalfDay,
	BlockProject:             RouteFilterTimesheet,
	BlockTask:                RouteFilterTimesheet,
}

// Resolve picks the route for p. The first match wins: ignore prefix, known
// block ids, then leave approval as the default for block actions; the
// timesheet callback id, then leave submission for view submissions.
func Resolve(p Payload) (Route, error) {
	switch p := p.(type) {
	case *BlockActions:
		if strings.HasPrefix(p.Action.ActionID, IgnorePrefix) {
			return RouteIgnore, nil
		}
		if route, ok := blockRoutes[p.Action.BlockID]; ok {
			return route, nil
		}
		return RouteDecideLeave, nil
	case *ViewSubmission:
		if p.View.CallbackID == CallbackTimesheetModal {
			return RouteSubmitTimesheet, nil
		}
		return RouteSubmitLeave, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownEventType, p)
	}
}

// Response is what the HTTP layer writes back to Slack. A nil Body means
// an empty 200.
type Response struct {
	Body *slack.ViewSubmissionResponse
}

func (r Response) Empty() bool { return r.Body == nil }

type (
	BlockActionFunc    func(ctx context.Context, p *BlockActions) error
	ViewSubmissionFunc func(ctx context.Context, p *ViewSubmission) (Response, error)
)

type Handlers struct {
	OpenTimesheet   BlockActionFunc
	ToggleHalfDay   BlockActionFunc
	FilterTimesheet BlockActionFunc
	DecideLeave     BlockActionFunc
	SubmitTimesheet ViewSubmissionFunc
	SubmitLeave     ViewSubmissionFunc
}

type Dispatcher struct {
	handlers Handlers
}

func NewDispatcher(h Handlers) *Dispatcher {
	return &Dispatcher{handlers: h}
}

// Dispatch runs exactly one handler for p. Handler errors and panics come
// back wrapped in ErrHandlerFailure; nothing is retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) (resp Response, err error) {
	route, err := Resolve(p)
	if err != nil {
		metrics.Interaction("unknown", metrics.OutcomeError)
		return Response{}, err
	}

	ctx = xslog.WithAttrs(ctx,
		xslog.InteractionType(string(p.Kind())),
		xslog.Route(string(route)),
		xslog.ChatUserID(p.Actor().ID),
	)
	logger := xslog.FromContext(ctx)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "interaction handler panicked", xslog.ErrorGroupWithStack(rec))
			resp, err = Response{}, fmt.Errorf("%w: panic: %v", ErrHandlerFailure, rec)
		}
		if err != nil {
			metrics.Interaction(string(route), metrics.OutcomeError)
			return
		}
		outcome := metrics.OutcomeOK
		if route == RouteIgnore {
			outcome = metrics.OutcomeSkipped
		}
		metrics.Interaction(string(route), outcome)
		logger.InfoContext(ctx, "interaction handled", xslog.Duration(time.Since(start)))
	}()

	resp, err = d.run(ctx, route, p)
	if err != nil {
		logger.ErrorContext(ctx, "interaction handler failed", xslog.ErrorGroup(err))
		return Response{}, fmt.Errorf("%w: %w", ErrHandlerFailure, err)
	}
	return resp, nil
}

func (d *Dispatcher) run(ctx context.Context, route Route, p Payload) (Response, error) {
	if route == RouteIgnore {
		return Response{}, nil
	}

	switch p := p.(type) {
	case *BlockActions:
		logger := xslog.FromContext(ctx)
		logger.DebugContext(ctx, "routing block action",
			xslog.ActionID(p.Action.ActionID),
			xslog.BlockID(p.Action.BlockID))

		var h BlockActionFunc
		switch route {
		case RouteOpenTimesheet:
			h = d.handlers.OpenTimesheet
		case RouteToggleHalfDay:
			h = d.handlers.ToggleHalfDay
		case RouteFilterTimesheet:
			h = d.handlers.FilterTimesheet
		case RouteDecideLeave:
			h = d.handlers.DecideLeave
		}
		if h == nil {
			return Response{}, fmt.Errorf("no handler registered for %s", route)
		}
		return Response{}, h(ctx, p)
	case *ViewSubmission:
		xslog.FromContext(ctx).DebugContext(ctx, "routing view submission", xslog.CallbackID(p.View.CallbackID))

		h := d.handlers.SubmitLeave
		if route == RouteSubmitTimesheet {
			h = d.handlers.SubmitTimesheet
		}
		if h == nil {
			return Response{}, fmt.Errorf("no handler registered for %s", route)
		}
		return h(ctx, p)
	}
	return Response{}, fmt.Errorf("%w: %T", ErrUnknownEventType, p)
}
