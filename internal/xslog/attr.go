package xslog

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/garrettladley/slackerp/internal/version"
	"github.com/garrettladley/slackerp/internal/xhttp"
)

const (
	keyError = "error"
)

func Error(err error) slog.Attr {
	return slog.String(keyError, err.Error())
}

func ErrorAny(err any) slog.Attr {
	return slog.Any(keyError, err)
}

func RequestID(requestID string) slog.Attr {
	const requestIDKey = "request_id"
	return slog.String(requestIDKey, requestID)
}

func Stack() slog.Attr {
	const stackKey = "stack"
	return slog.String(stackKey, string(debug.Stack()))
}

func HTTPStatus(status int) slog.Attr {
	const statusKey = "status"
	return slog.Int(statusKey, status)
}

func Duration(duration time.Duration) slog.Attr {
	const durationKey = "duration"
	return slog.Duration(durationKey, duration)
}

func RequestMethod(r *http.Request) slog.Attr {
	const methodKey = "method"
	return slog.String(methodKey, r.Method)
}

func RequestPath(r *http.Request) slog.Attr {
	const pathKey = "path"
	return slog.String(pathKey, r.URL.Path)
}

func IP(ip string) slog.Attr {
	const ipKey = "ip"
	return slog.String(ipKey, ip)
}

func RequestIP(r *http.Request) slog.Attr {
	return IP(xhttp.GetRequestIP(r))
}

func Version() slog.Attr {
	const versionKey = "version"
	return slog.String(versionKey, version.Get())
}

func Reason(reason string) slog.Attr {
	const reasonKey = "reason"
	return slog.String(reasonKey, reason)
}

func ChatUserID(id string) slog.Attr {
	const chatUserIDKey = "chat_user_id"
	return slog.String(chatUserIDKey, id)
}

func ChannelID(id string) slog.Attr {
	const channelIDKey = "channel_id"
	return slog.String(channelIDKey, id)
}

func Email(email string) slog.Attr {
	const emailKey = "email"
	return slog.String(emailKey, email)
}

func EmployeeID(id string) slog.Attr {
	const employeeIDKey = "employee_id"
	return slog.String(employeeIDKey, id)
}

func LeaveID(id string) slog.Attr {
	const leaveIDKey = "leave_id"
	return slog.String(leaveIDKey, id)
}

func InteractionType(t string) slog.Attr {
	const interactionTypeKey = "interaction_type"
	return slog.String(interactionTypeKey, t)
}

func Route(route string) slog.Attr {
	const routeKey = "route"
	return slog.String(routeKey, route)
}

func ActionID(id string) slog.Attr {
	const actionIDKey = "action_id"
	return slog.String(actionIDKey, id)
}

func BlockID(id string) slog.Attr {
	const blockIDKey = "block_id"
	return slog.String(blockIDKey, id)
}

func CallbackID(id string) slog.Attr {
	const callbackIDKey = "callback_id"
	return slog.String(callbackIDKey, id)
}

func JobID(id string) slog.Attr {
	const jobIDKey = "job_id"
	return slog.String(jobIDKey, id)
}

func JobKind(kind string) slog.Attr {
	const jobKindKey = "job_kind"
	return slog.String(jobKindKey, kind)
}

func Attempt(n int) slog.Attr {
	const attemptKey = "attempt"
	return slog.Int(attemptKey, n)
}

func DocType(doctype string) slog.Attr {
	const docTypeKey = "doctype"
	return slog.String(docTypeKey, doctype)
}

func Count(count int) slog.Attr {
	const countKey = "count"
	return slog.Int(countKey, count)
}

func Date(t time.Time) slog.Attr {
	const dateKey = "date"
	return slog.String(dateKey, t.Format(time.DateOnly))
}

func Task(name string) slog.Attr {
	const taskKey = "task"
	return slog.String(taskKey, name)
}

func Command(name string) slog.Attr {
	const commandKey = "command"
	return slog.String(commandKey, name)
}
