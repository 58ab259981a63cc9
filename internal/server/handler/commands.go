package handler

import (
	"context"
	"net/http"

	"github.com/garrettladley/slackerp/internal/xcontext"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

type LeaveForms interface {
	OpenForm(ctx context.Context, chatUserID, triggerID string) error
}

type TimesheetForms interface {
	OpenModal(ctx context.Context, triggerID string) error
}

type Commands struct {
	leave      LeaveForms
	timesheets TimesheetForms
}

func NewCommands(leave LeaveForms, timesheets TimesheetForms) *Commands {
	return &Commands{leave: leave, timesheets: timesheets}
}

// HandleLeave handles POST /slack/commands/leave.
func (h *Commands) HandleLeave(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, cmd slack.SlashCommand) error {
		return h.leave.OpenForm(ctx, cmd.UserID, cmd.TriggerID)
	})
}

// HandleTimesheet handles POST /slack/commands/timesheet.
func (h *Commands) HandleTimesheet(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(ctx context.Context, cmd slack.SlashCommand) error {
		return h.timesheets.OpenModal(ctx, cmd.TriggerID)
	})
}

func (h *Commands) handle(w http.ResponseWriter, r *http.Request, open func(context.Context, slack.SlashCommand) error) {
	ctx := r.Context()

	cmd, err := slack.SlashCommandParse(r)
	if err != nil || cmd.TriggerID == "" {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("malformed command")))
		return
	}

	ctx = xcontext.SetChatUserID(ctx, cmd.UserID)
	ctx = xslog.WithAttrs(ctx, xslog.ChatUserID(cmd.UserID), xslog.ChannelID(cmd.ChannelID))
	logger := xslog.FromContext(ctx)

	if err := open(ctx, cmd); err != nil {
		// Slack shows the response text only to the caller.
		logger.ErrorContext(ctx, "slash command failed", xslog.Command(cmd.Command), xslog.ErrorGroup(err))
		xhttp.WriteOK(w, slack.Msg{
			ResponseType: slack.ResponseTypeEphemeral,
			Text:         "Sorry, something went wrong. Please try again later.",
		})
		return
	}

	logger.InfoContext(ctx, "slash command handled", xslog.Command(cmd.Command))
	xhttp.WriteEmptyOK(w)
}
