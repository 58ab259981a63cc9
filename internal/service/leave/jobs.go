package leave

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/render"
	"github.com/garrettladley/slackerp/internal/service/directory"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

type DecidePayload struct {
	LeaveID    string       `json:"leave_id"`
	Approve    bool         `json:"approve"`
	ChannelID  string       `json:"channel_id"`
	MessageTS  string       `json:"message_ts"`
	Blocks     slack.Blocks `json:"blocks"`
	ChatUserID string       `json:"chat_user_id"`
}

type NotifyPayload struct {
	LeaveID string `json:"leave_id"`
	// RequesterChatID is set when the leave was submitted from chat and
	// receives a confirmation.
	RequesterChatID string `json:"requester_chat_id,omitempty"`
	// Announce sends the approval request and the attendance thread reply.
	Announce bool `json:"announce"`
}

// retryable reports whether an ERP failure may succeed later. Validation
// and permission errors will not.
func retryable(err error) bool {
	var apiErr *frappe.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
}

func decisionText(approve bool) string {
	if approve {
		return "Approved"
	}
	return "Rejected"
}

func (s *Service) handleDecide(ctx context.Context, job jobs.Job) error {
	var p DecidePayload
	if err := job.Decode(&p); err != nil {
		return jobs.Permanent(err)
	}
	logger := xslog.FromContext(ctx).With(xslog.LeaveID(p.LeaveID))

	if _, err := s.leaves.Decide(ctx, p.LeaveID, p.Approve); err != nil {
		if retryable(err) {
			return err
		}
		if p.ChannelID != "" && p.ChatUserID != "" {
			if ephErr := s.chat.PostEphemeral(ctx, p.ChannelID, p.ChatUserID, render.LeaveDecisionFailedText(p.LeaveID, err)); ephErr != nil {
				logger.WarnContext(ctx, "reporting leave decision failure", xslog.Error(ephErr))
			}
		}
		return jobs.Permanent(err)
	}
	logger.InfoContext(ctx, "leave decided", slog.Bool("approved", p.Approve))

	comment := decisionText(p.Approve) + " from Slack"
	if p.ChatUserID != "" {
		comment += " by <@" + p.ChatUserID + ">"
	}
	if err := s.leaves.AddComment(ctx, p.LeaveID, comment); err != nil {
		logger.WarnContext(ctx, "commenting on leave", xslog.Error(err))
	}

	if p.ChannelID == "" || p.MessageTS == "" {
		return nil
	}
	// The decision is stored; retrying would decide twice.
	if err := s.chat.UpdateBlocks(ctx, p.ChannelID, p.MessageTS, render.LeaveDecided(p.Blocks.BlockSet, p.Approve)); err != nil {
		return jobs.Permanent(err)
	}
	return nil
}

func (s *Service) handleNotify(ctx context.Context, job jobs.Job) error {
	var p NotifyPayload
	if err := job.Decode(&p); err != nil {
		return jobs.Permanent(err)
	}
	logger := xslog.FromContext(ctx).With(xslog.LeaveID(p.LeaveID))

	leave, err := s.leaves.Get(ctx, p.LeaveID)
	if errors.Is(err, frappe.ErrNotFound) {
		return jobs.Permanent(err)
	}
	if err != nil {
		return err
	}

	firstAttempt := job.Attempt == 0
	if p.RequesterChatID != "" && firstAttempt {
		if _, err := s.chat.PostText(ctx, p.RequesterChatID, render.LeaveSubmittedText(leave.Name)); err != nil {
			logger.WarnContext(ctx, "confirming leave submission", xslog.Error(err))
		}
	}
	if !p.Announce {
		return nil
	}

	requester := p.RequesterChatID
	if requester == "" {
		requester, err = s.directory.ChatUserForEmployee(ctx, leave.Employee)
		if err != nil && !errors.Is(err, directory.ErrNotLinked) {
			logger.WarnContext(ctx, "resolving requester", xslog.EmployeeID(leave.Employee), xslog.Error(err))
		}
	}
	name := leave.EmployeeName
	if name == "" {
		name = leave.Employee
	}
	mention := render.Mention(requester, name)

	if firstAttempt {
		s.threadToday(ctx, leave, mention)
	}
	return s.requestApproval(ctx, leave, mention)
}

// threadToday replies under today's attendance post when the leave starts
// today and the post already went out.
func (s *Service) threadToday(ctx context.Context, leave frappe.LeaveApplication, mention string) {
	logger := xslog.FromContext(ctx)
	today := frappe.NewDate(s.today())
	if !s.cfg.ThreadUpdates || s.cfg.AttendanceChannel == "" || !leave.FromDate.Equal(today) {
		return
	}

	st, err := s.state.GetAttendance(ctx)
	if err != nil {
		logger.WarnContext(ctx, "reading attendance state", xslog.Error(err))
		return
	}
	if st.LastDate != today.String() || st.LastMessageTS == "" {
		return
	}

	period := "Full Day"
	if leave.IsHalfDay() && leave.HalfDayDate.Equal(today) {
		period = "Half Day"
		if s.cfg.CustomLeaveFields && leave.HalfDayPeriod != "" {
			period = leave.HalfDayPeriod
		}
	}

	if _, err := s.chat.PostBlocks(ctx, s.cfg.AttendanceChannel, render.LeaveToday(mention, period),
		chat.InThread(st.LastMessageTS),
		chat.Broadcast(),
		chat.WithFallbackText(mention+" requested for leave today"),
		chat.WithPurpose("attendance_thread"),
	); err != nil {
		logger.WarnContext(ctx, "posting attendance thread reply", xslog.Error(err))
	}
}

func (s *Service) requestApproval(ctx context.Context, leave frappe.LeaveApplication, mention string) error {
	logger := xslog.FromContext(ctx)
	if leave.LeaveApprover == "" {
		logger.InfoContext(ctx, "leave has no approver, skipping approval request")
		return nil
	}

	approver, err := s.directory.ChatUserForEmail(ctx, leave.LeaveApprover)
	if errors.Is(err, directory.ErrNotLinked) {
		logger.WarnContext(ctx, "approver has no chat account", xslog.Email(leave.LeaveApprover))
		return nil
	}
	if err != nil {
		return err
	}

	submitted := leave.PostingDate.Time
	if submitted.IsZero() {
		submitted = s.today()
	}
	blocks := render.LeaveApproval(render.LeaveRequest{
		ID:          leave.Name,
		Link:        s.link(leave.Name),
		Mention:     mention,
		LeaveType:   leave.LeaveType,
		SubmittedOn: submitted,
		From:        leave.FromDate.Time,
		To:          leave.ToDate.Time,
		Reason:      leave.Description,
	})
	_, err = s.chat.PostBlocks(ctx, approver, blocks,
		chat.WithFallbackText("New leave application "+leave.Name),
		chat.WithPurpose("leave_approval"),
	)
	return err
}
