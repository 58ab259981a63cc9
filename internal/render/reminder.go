package render

import (
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/slack-go/slack"
)

const ActionOpenTimesheet = "open_timesheet"

// Reminder is the daily timesheet nudge with a button that opens the form.
func Reminder(message string) []slack.Block {
	button := slack.NewButtonBlockElement(ActionOpenTimesheet, "", plain("Fill Timesheet")).WithStyle(slack.StylePrimary)
	return []slack.Block{
		section(message),
		slack.NewActionBlock(interaction.BlockDailyReminderButton, button),
	}
}
