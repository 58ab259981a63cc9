package render

import "github.com/slack-go/slack"

const MBTTable slack.MessageBlockType = "table"

// TableBlock is Slack's table layout block.
type TableBlock struct {
	Type           slack.MessageBlockType `json:"type"`
	BlockID        string                 `json:"block_id,omitempty"`
	ColumnSettings []ColumnSetting        `json:"column_settings,omitempty"`
	Rows           [][]TableCell          `json:"rows"`
}

func (b *TableBlock) BlockType() slack.MessageBlockType { return b.Type }

type ColumnSetting struct {
	Align     string `json:"align,omitempty"`
	IsWrapped bool   `json:"is_wrapped,omitempty"`
}

type TableCell struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	Elements []richSection `json:"elements,omitempty"`
}

type richSection struct {
	Type     string     `json:"type"`
	Elements []richUser `json:"elements"`
}

type richUser struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

func TextCell(text string) TableCell {
	return TableCell{Type: "raw_text", Text: text}
}

// MentionCell mentions userID, or shows fallback as raw text when empty.
func MentionCell(userID, fallback string) TableCell {
	if userID == "" {
		return TextCell(fallback)
	}
	return TableCell{
		Type: "rich_text",
		Elements: []richSection{{
			Type:     "rich_text_section",
			Elements: []richUser{{Type: "user", UserID: userID}},
		}},
	}
}

func NewTableBlock(settings []ColumnSetting, rows [][]TableCell) *TableBlock {
	return &TableBlock{Type: MBTTable, ColumnSettings: settings, Rows: rows}
}
