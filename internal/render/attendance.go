package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

type Absence struct {
	Mention string
	// Until is zero when the leave ends today.
	Until time.Time
}

type AbsenceGroup struct {
	Label    string
	Absences []Absence
}

// FormatAbsences renders non-empty groups as numbered mrkdwn lists.
func FormatAbsences(groups []AbsenceGroup) string {
	var b strings.Builder
	for _, g := range groups {
		if len(g.Absences) == 0 {
			continue
		}
		fmt.Fprintf(&b, "*%s*\n", g.Label)
		for i, a := range g.Absences {
			fmt.Fprintf(&b, "  %d. %s", i+1, a.Mention)
			if !a.Until.IsZero() {
				fmt.Fprintf(&b, " _until %s_", FormatDate(a.Until))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func Attendance(title string, groups []AbsenceGroup) []slack.Block {
	count := 0
	for _, g := range groups {
		count += len(g.Absences)
	}
	if count == 0 {
		return []slack.Block{header(":sunny: No " + title)}
	}
	return []slack.Block{
		header(fmt.Sprintf(":palm_tree: %d %s", count, title)),
		section(FormatAbsences(groups)),
	}
}

const TestChannelText = "*This is a test message from ERPNext.*\n_You will see list of people on leave daily_\n"
