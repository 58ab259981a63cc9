package render

import (
	"time"

	"github.com/garrettladley/slackerp/internal/client/frappe"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/slack-go/slack"
)

const (
	BlockEntryDate    = "entry_date"
	ActionEntryDate   = "date_picker"
	ActionProject     = "project_select"
	ActionTask        = "task_select"
	BlockHours        = "hours_block"
	ActionHours       = "hours_input"
	BlockDescription  = "description"
	ActionDescription = "description_input"

	CallbackTimesheetError = "timesheet_error"
)

func projectOptions(projects []frappe.Project) []*slack.OptionBlockObject {
	out := make([]*slack.OptionBlockObject, 0, len(projects))
	for _, p := range projects {
		name := p.ProjectName
		if name == "" {
			name = p.Name
		}
		out = append(out, option(p.Name, name))
	}
	return out
}

func taskOptions(tasks []frappe.Task) []*slack.OptionBlockObject {
	out := make([]*slack.OptionBlockObject, 0, len(tasks))
	for _, t := range tasks {
		subject := t.Subject
		if subject == "" {
			subject = t.Name
		}
		o := option(t.Name, subject)
		o.Description = slack.NewTextBlockObject(slack.PlainTextType, Truncate(t.Name, OptionTextLimit), false, false)
		out = append(out, o)
	}
	return out
}

// TimesheetForm is the "Timesheet Entry" modal. Project and task selects
// dispatch block actions so each can narrow the other.
func TimesheetForm(projects []frappe.Project, tasks []frappe.Task, today time.Time) slack.ModalViewRequest {
	project := input(interaction.BlockProject, "Project",
		slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Enter project name"), ActionProject, projectOptions(projects)...))
	project.DispatchAction = true

	task := input(interaction.BlockTask, "Task",
		slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Enter task description"), ActionTask, taskOptions(tasks)...))
	task.DispatchAction = true

	description := slack.NewPlainTextInputBlockElement(nil, ActionDescription)
	description.Multiline = true

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: interaction.CallbackTimesheetModal,
		Title:      plain("Timesheet Entry"),
		Close:      plain("Cancel"),
		Submit:     plain("Submit"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			input(BlockEntryDate, "Date", datePicker(ActionEntryDate, today)),
			project,
			task,
			input(BlockHours, "Hours", slack.NewPlainTextInputBlockElement(plain("Enter hours worked"), ActionHours)),
			input(BlockDescription, "Description", description),
		}},
	}
}

func selectIn(blocks []slack.Block, blockID string) *slack.SelectBlockElement {
	for _, b := range blocks {
		in, ok := b.(*slack.InputBlock)
		if !ok || in.BlockID != blockID {
			continue
		}
		if sel, ok := in.Element.(*slack.SelectBlockElement); ok {
			return sel
		}
	}
	return nil
}

// WithTasks replaces the task options of an open timesheet form.
func WithTasks(view slack.View, tasks []frappe.Task) slack.ModalViewRequest {
	blocks := view.Blocks.BlockSet
	if sel := selectIn(blocks, interaction.BlockTask); sel != nil {
		sel.Options = taskOptions(tasks)
		sel.InitialOption = nil
	}
	return rebuild(view, blocks)
}

// WithProject preselects project in an open timesheet form.
func WithProject(view slack.View, project frappe.Project) slack.ModalViewRequest {
	blocks := view.Blocks.BlockSet
	if sel := selectIn(blocks, interaction.BlockProject); sel != nil {
		name := project.ProjectName
		if name == "" {
			name = project.Name
		}
		sel.InitialOption = option(project.Name, name)
	}
	return rebuild(view, blocks)
}

func TimesheetSubmitted() slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:         slack.VTModal,
		Title:        plain("Submitted"),
		Close:        plain("Close"),
		ClearOnClose: true,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			header(":white_check_mark: Timesheet submitted successfully"),
		}},
	}
}

func TimesheetError(detail string) slack.ModalViewRequest {
	return ErrorModal(CallbackTimesheetError, ":warning: Error submitting timesheet", detail)
}

func NoTasks(project string) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: interaction.CallbackTimesheetModal,
		Title:      plain("Error"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			header(":warning: No tasks found for the project"),
			slack.NewDividerBlock(),
			section(codeBlock("No tasks found for the project " + project)),
		}},
	}
}

func TimesheetApprovalText(mention string) string {
	return "Timesheet for " + mention + " is submitted for approval."
}
