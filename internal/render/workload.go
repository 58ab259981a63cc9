package render

import "github.com/slack-go/slack"

const (
	// WorkloadChunkSize is the most table rows sent in one message.
	WorkloadChunkSize = 90

	StandardHours = 8
)

type WorkloadRow struct {
	UserID      string
	Name        string
	ManagerID   string
	ManagerName string
	// Unallocated hours, one per evaluated day.
	Unallocated []float64
}

func (r WorkloadRow) Total() float64 {
	var sum float64
	for _, h := range r.Unallocated {
		sum += h
	}
	return sum
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

func DailyWorkload(rows []WorkloadRow) [][]slack.Block {
	head := []TableCell{TextCell("Engineer"), TextCell("Unallocated Hours"), TextCell("Project Manager")}
	settings := []ColumnSetting{{IsWrapped: true}, {Align: "center"}, {IsWrapped: true}}
	cells := func(r WorkloadRow) []TableCell {
		var h float64
		if len(r.Unallocated) > 0 {
			h = r.Unallocated[0]
		}
		return []TableCell{
			MentionCell(r.UserID, r.Name),
			TextCell(Hours(h) + "h"),
			MentionCell(r.ManagerID, r.ManagerName),
		}
	}
	return workloadMessages(
		rows,
		[]slack.Block{
			header(":chart_with_upwards_trend: Daily Workload Alert"),
			slack.NewDividerBlock(),
			section("The following engineers have less than 8 hours allocated today:"),
		},
		":bulb: _Please ensure all allocations are updated in the PMS system._",
		head, settings, cells,
	)
}

func WeeklyWorkload(rows []WorkloadRow) [][]slack.Block {
	head := []TableCell{TextCell("Engineer")}
	settings := []ColumnSetting{{IsWrapped: true}}
	for _, d := range weekdays {
		head = append(head, TextCell(d))
		settings = append(settings, ColumnSetting{Align: "center"})
	}
	head = append(head, TextCell("Project Manager"))
	settings = append(settings, ColumnSetting{IsWrapped: true})

	cells := func(r WorkloadRow) []TableCell {
		row := []TableCell{MentionCell(r.UserID, r.Name)}
		for i := range weekdays {
			v := "-"
			if i < len(r.Unallocated) && r.Unallocated[i] > 0 {
				v = Hours(r.Unallocated[i]) + "h"
			}
			row = append(row, TextCell(v))
		}
		return append(row, MentionCell(r.ManagerID, r.ManagerName))
	}
	return workloadMessages(
		rows,
		[]slack.Block{
			header(":date: Weekly Workload Alert"),
			slack.NewDividerBlock(),
			section("The following engineers have less than 8 hours allocated this week:"),
		},
		":bulb: _Values shown are unallocated hours per day._",
		head, settings, cells,
	)
}

// workloadMessages splits rows into tables of WorkloadChunkSize. The intro
// goes on the first message and the footer on the last.
func workloadMessages(
	rows []WorkloadRow,
	intro []slack.Block,
	footer string,
	head []TableCell,
	settings []ColumnSetting,
	cells func(WorkloadRow) []TableCell,
) [][]slack.Block {
	if len(rows) == 0 {
		return nil
	}
	var messages [][]slack.Block
	for start := 0; start < len(rows); start += WorkloadChunkSize {
		end := min(start+WorkloadChunkSize, len(rows))

		table := [][]TableCell{head}
		for _, r := range rows[start:end] {
			table = append(table, cells(r))
		}

		var blocks []slack.Block
		if start == 0 {
			blocks = append(blocks, intro...)
		}
		blocks = append(blocks, NewTableBlock(settings, table))
		if end == len(rows) {
			blocks = append(blocks, slack.NewDividerBlock(), slack.NewContextBlock("", mrkdwn(footer)))
		}
		messages = append(messages, blocks)
	}
	return messages
}
