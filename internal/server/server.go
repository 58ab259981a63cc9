// Package server assembles the HTTP routes of the connector.
package server

import (
	"log/slog"
	"net/http"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/server/handler"
	servermw "github.com/garrettladley/slackerp/internal/server/middleware"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/service/webhook"
	"github.com/garrettladley/slackerp/internal/storage"
	"github.com/garrettladley/slackerp/internal/xhttp/middleware"
)

type Deps struct {
	Logger     *slog.Logger
	Verifier   *interaction.Verifier
	Dispatcher *interaction.Dispatcher
	Leave      handler.LeaveForms
	Timesheets handler.TimesheetForms
	// Webhook is nil when no ERP webhook secret is configured.
	Webhook     webhook.Service
	Directory   handler.Directory
	Attendance  handler.Attendance
	Tasks       handler.Tasks
	Health      handler.Pinger
	RateLimiter storage.RateLimiter
	AdminAPIKey string
}

// NewHandler returns the root handler with the shared middleware applied.
func NewHandler(d Deps) http.Handler {
	mux := http.NewServeMux()

	interactions := handler.NewInteractions(d.Dispatcher)
	commands := handler.NewCommands(d.Leave, d.Timesheets)

	// Slack callbacks: signed, and Slack retries on its own so no rate limit
	slackMux := http.NewServeMux()
	slackMux.HandleFunc("POST /slack/interactions", interactions.HandleInteraction)
	slackMux.HandleFunc("POST /slack/commands/leave", commands.HandleLeave)
	slackMux.HandleFunc("POST /slack/commands/timesheet", commands.HandleTimesheet)
	mux.Handle("/slack/", middleware.Chain(slackMux,
		servermw.VerifySlack(d.Verifier),
	))

	// Unauthenticated routes - protected by global IP rate limiter
	unauthedMux := http.NewServeMux()
	if d.Webhook != nil {
		unauthedMux.HandleFunc("POST /webhooks/erp", handler.NewWebhook(d.Webhook).HandleWebhook)
	}
	unauthedMux.HandleFunc("GET /health", handler.HandleHealth(d.Health))
	unauthedWrapped := middleware.Chain(unauthedMux,
		servermw.RateLimitWithBackend(d.RateLimiter),
	)
	mux.Handle("/webhooks/", unauthedWrapped)
	mux.Handle("/health", unauthedWrapped)

	mux.Handle("GET /metrics", metrics.NewHandler())

	admin := handler.NewAdmin(d.Directory, d.Attendance, d.Tasks)
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("POST /api/directory/sync", admin.HandleSync)
	adminMux.HandleFunc("POST /api/directory/connect", admin.HandleConnect)
	adminMux.HandleFunc("POST /api/channel/test", admin.HandleChannelTest)
	adminMux.HandleFunc("POST /api/attendance", admin.HandleAttendance)
	adminMux.HandleFunc("GET /api/tasks", admin.HandleListTasks)
	adminMux.HandleFunc("POST /api/tasks/{name}/run", admin.HandleRunTask)
	// sync reports list every unmatched employee and can run large
	mux.Handle("/api/", middleware.Chain(adminMux,
		servermw.RateLimitWithBackend(d.RateLimiter),
		servermw.APIKeyAuth(d.AdminAPIKey),
		middleware.Gzip,
	))

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Logging,
		middleware.Recovery,
		middleware.SecurityHeaders,
	)
}
