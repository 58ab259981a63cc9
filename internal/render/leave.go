package render

import (
	"fmt"
	"slices"
	"time"

	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/slack-go/slack"
)

const (
	CallbackApplyLeave = "apply_leave_application"

	BlockStartDate      = "start_date"
	ActionStartDate     = "start_date_picker"
	BlockEndDate        = "end_date"
	ActionEndDate       = "end_date_picker"
	BlockLeaveType      = "leave_type"
	ActionLeaveType     = "leave_type_select"
	BlockReason         = "reason"
	ActionReason        = "reason_input"
	ActionHalfDay       = "half_day_checkbox"
	BlockHalfDayDate    = "half_day_date"
	ActionHalfDayDate   = "half_day_date_picker"
	BlockHalfDayPeriod  = "half_day_period"
	ActionHalfDayPeriod = "half_day_period_select"

	BlockLeaveActions  = "leave_actions_block"
	BlockLeaveFooter   = "footer_block"
	ActionLeaveApprove = "leave_approve"
	ActionLeaveReject  = "leave_reject"

	ValueHalfDay    = "half_day"
	ValueFirstHalf  = "first_half"
	ValueSecondHalf = "second_half"
)

func datePicker(actionID string, initial time.Time) *slack.DatePickerBlockElement {
	e := slack.NewDatePickerBlockElement(actionID)
	e.Placeholder = plain("Select a date")
	if !initial.IsZero() {
		e.InitialDate = initial.Format(time.DateOnly)
	}
	return e
}

func input(blockID, label string, element slack.BlockElement) *slack.InputBlock {
	return &slack.InputBlock{
		Type:    slack.MBTInput,
		BlockID: blockID,
		Label:   plain(label),
		Element: element,
	}
}

// LeaveForm is the "Apply for Leave" modal. employee is carried in the
// private metadata so the submission needs no second lookup.
func LeaveForm(leaveTypes []string, today time.Time, employee string) slack.ModalViewRequest {
	options := make([]*slack.OptionBlockObject, 0, len(leaveTypes))
	for _, lt := range leaveTypes {
		options = append(options, option(lt, lt))
	}
	leaveType := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select leave type"), ActionLeaveType, options...)

	reason := slack.NewPlainTextInputBlockElement(plain("Enter reason for leave"), ActionReason)
	reason.Multiline = true

	halfDay := slack.NewCheckboxGroupsBlockElement(ActionHalfDay, option(ValueHalfDay, "Half Day"))

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackApplyLeave,
		Title:           plain("Apply for Leave"),
		Submit:          plain("Submit"),
		PrivateMetadata: employee,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			input(BlockStartDate, "Start Date", datePicker(ActionStartDate, today)),
			input(BlockEndDate, "End Date", datePicker(ActionEndDate, today)),
			input(BlockLeaveType, "Leave Type", leaveType),
			input(BlockReason, "Reason", reason),
			slack.NewActionBlock(interaction.BlockHalfDayCheckbox, halfDay),
		}},
	}
}

// ToggleHalfDay rebuilds the leave form with or without the half-day
// inputs. The date input is only offered for multi-day leaves.
func ToggleHalfDay(view slack.View, selected, sameDay bool) slack.ModalViewRequest {
	blocks := slices.DeleteFunc(slices.Clone(view.Blocks.BlockSet), func(b slack.Block) bool {
		id := BlockID(b)
		return id == BlockHalfDayDate || id == BlockHalfDayPeriod
	})
	if selected {
		if !sameDay {
			blocks = append(blocks, input(BlockHalfDayDate, "Half Day Date", datePicker(ActionHalfDayDate, time.Time{})))
		}
		period := slack.NewRadioButtonsBlockElement(ActionHalfDayPeriod,
			option(ValueFirstHalf, "First Half"),
			option(ValueSecondHalf, "Second Half"),
		)
		blocks = append(blocks, input(BlockHalfDayPeriod, "Half Day Period", period))
	}
	return rebuild(view, blocks)
}

// rebuild turns an open view back into a request with new blocks.
func rebuild(view slack.View, blocks []slack.Block) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      view.CallbackID,
		Title:           view.Title,
		Submit:          view.Submit,
		Close:           view.Close,
		PrivateMetadata: view.PrivateMetadata,
		Blocks:          slack.Blocks{BlockSet: blocks},
	}
}

type LeaveRequest struct {
	ID          string
	Link        string
	Mention     string
	LeaveType   string
	SubmittedOn time.Time
	From        time.Time
	To          time.Time
	Reason      string
}

// LeaveApproval is the message sent to the approver with Approve/Reject buttons.
func LeaveApproval(r LeaveRequest) []slack.Block {
	link := r.ID
	if r.Link != "" {
		link = fmt.Sprintf("<%s|%s>", r.Link, r.ID)
	}
	reason := r.Reason
	if reason == "" {
		reason = "No reason provided"
	}

	approve := slack.NewButtonBlockElement(ActionLeaveApprove, r.ID, plain("Approve")).WithStyle(slack.StylePrimary)
	reject := slack.NewButtonBlockElement(ActionLeaveReject, r.ID, plain("Reject")).WithStyle(slack.StyleDanger)

	return []slack.Block{
		header(":memo: New Leave Application"),
		section(r.Mention + " has submitted a new leave request."),
		slack.NewContextBlock("", mrkdwn("*Leave ID:* "+link+" ")),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("*Leave Type:*\n:rocket: " + r.LeaveType),
			mrkdwn("*Submitted On:*\n:clock3: " + FormatDate(r.SubmittedOn)),
		}, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("*From:*\n:date: " + FormatDate(r.From)),
			mrkdwn("*To:*\n:date: " + FormatDate(r.To)),
		}, nil),
		section("*Reason:*\n>" + reason),
		slack.NewDividerBlock(),
		slack.NewActionBlock(BlockLeaveActions, approve, reject),
		slack.NewContextBlock(BlockLeaveFooter, mrkdwn("Please review and take action on this leave request.")),
	}
}

// LeaveDecided replaces the approval buttons with the outcome and drops
// the footer.
func LeaveDecided(blocks []slack.Block, approved bool) []slack.Block {
	status := "Rejected :x:"
	if approved {
		status = "Approved :white_check_mark:"
	}
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		switch BlockID(b) {
		case BlockLeaveActions:
			out = append(out, section("*Status:* "+status))
		case BlockLeaveFooter:
		default:
			out = append(out, b)
		}
	}
	return out
}

// LeaveToday is the thread reply under the day's attendance post.
func LeaveToday(mention, period string) []slack.Block {
	return []slack.Block{section(fmt.Sprintf("%s requested for leave today. _(%s)_", mention, period))}
}

func LeaveSubmittedText(id string) string {
	return "Your leave application has been submitted successfully. Application ID: " + id
}

func LeaveDecisionFailedText(id string, err error) string {
	return fmt.Sprintf(":warning: Could not update leave %s: %s", id, StripHTML(err.Error()))
}
