package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/scheduler"
	"github.com/garrettladley/slackerp/internal/service/attendance"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
	go_json "github.com/goccy/go-json"
)

type Directory interface {
	Sync(ctx context.Context) (directory.SyncReport, error)
	Connect(ctx context.Context, email string) (storage.LinkedIdentity, error)
}

type Attendance interface {
	Force(ctx context.Context) (string, error)
	SendTest(ctx context.Context, channel string) error
}

type Tasks interface {
	Names() []string
	RunNow(ctx context.Context, name string) error
}

// Admin serves the operator API. Routes sit behind middleware.APIKeyAuth.
type Admin struct {
	directory  Directory
	attendance Attendance
	tasks      Tasks
}

func NewAdmin(directory Directory, attendance Attendance, tasks Tasks) *Admin {
	return &Admin{directory: directory, attendance: attendance, tasks: tasks}
}

type connectRequest struct {
	Email string `json:"email"`
}

type channelTestRequest struct {
	Channel string `json:"channel"`
}

type attendanceResponse struct {
	MessageTS string `json:"message_ts"`
}

type tasksResponse struct {
	Tasks []string `json:"tasks"`
}

// HandleSync handles POST /api/directory/sync.
func (h *Admin) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.directory.Sync(ctx)
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.BadGateway(xerrors.WithMessage("directory sync failed"), xerrors.WithCause(err)))
		return
	}

	xslog.FromContext(ctx).InfoContext(ctx, "directory synced",
		xslog.SyncGroup(report.Linked, len(report.Failed), len(report.MissingInChat)))
	xhttp.WriteOK(w, report)
}

// HandleConnect handles POST /api/directory/connect.
func (h *Admin) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req connectRequest
	if err := go_json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("email is required")))
		return
	}

	identity, err := h.directory.Connect(ctx, req.Email)
	switch {
	case errors.Is(err, chat.ErrUserNotFound):
		xerrors.WriteError(ctx, w, xerrors.NotFound(xerrors.WithMessage("no chat account for email")))
		return
	case err != nil:
		xerrors.WriteError(ctx, w, xerrors.BadGateway(xerrors.WithMessage("failed to link account"), xerrors.WithCause(err)))
		return
	}

	xhttp.WriteOK(w, identity)
}

// HandleChannelTest handles POST /api/channel/test. An empty body targets
// the attendance channel.
func (h *Admin) HandleChannelTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req channelTestRequest
	if r.ContentLength != 0 {
		if err := go_json.NewDecoder(r.Body).Decode(&req); err != nil {
			xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("invalid request body")))
			return
		}
	}

	err := h.attendance.SendTest(ctx, req.Channel)
	switch {
	case errors.Is(err, attendance.ErrNoChannel):
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("channel is required")))
		return
	case err != nil:
		xerrors.WriteError(ctx, w, xerrors.BadGateway(xerrors.WithMessage("failed to post test message"), xerrors.WithCause(err)))
		return
	}

	xhttp.WriteNoContent(w)
}

// HandleAttendance handles POST /api/attendance. It posts today's summary
// regardless of the schedule gates.
func (h *Admin) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ts, err := h.attendance.Force(ctx)
	switch {
	case errors.Is(err, attendance.ErrNoChannel):
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("attendance channel is not configured")))
		return
	case err != nil:
		xerrors.WriteError(ctx, w, xerrors.BadGateway(xerrors.WithMessage("failed to post attendance"), xerrors.WithCause(err)))
		return
	}

	xhttp.WriteOK(w, attendanceResponse{MessageTS: ts})
}

// HandleListTasks handles GET /api/tasks.
func (h *Admin) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	xhttp.WriteOK(w, tasksResponse{Tasks: h.tasks.Names()})
}

// HandleRunTask handles POST /api/tasks/{name}/run.
func (h *Admin) HandleRunTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	err := h.tasks.RunNow(ctx, name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownTask):
		xerrors.WriteError(ctx, w, xerrors.NotFound(xerrors.WithMessage("unknown task")))
		return
	case err != nil:
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("task failed"), xerrors.WithCause(err)))
		return
	}

	xslog.FromContext(ctx).InfoContext(ctx, "task run on demand", xslog.Task(name))
	xhttp.WriteNoContent(w)
}
