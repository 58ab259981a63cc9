// Package render builds the Block Kit views and messages posted to Slack.
// Builders are pure: they take domain values and return blocks.
package render

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	// OptionTextLimit is the longest plain_text Slack accepts in a select option.
	OptionTextLimit = 75

	DateLayout = "Jan 02, 2006 (Mon)"
)

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

var htmlTag = regexp.MustCompile(`<.*?>`)

func StripHTML(s string) string { return htmlTag.ReplaceAllString(s, "") }

// Mention renders a user mention, or name when the user has no Slack account.
func Mention(userID, name string) string {
	if userID == "" {
		return name
	}
	return "<@" + userID + ">"
}

// Hours formats h without trailing zeros, e.g. 7.5 -> "7.5", 8 -> "8".
func Hours(h float64) string { return strconv.FormatFloat(h, 'f', -1, 64) }

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func header(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(plain(text))
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(mrkdwn(text), nil, nil)
}

func option(value, text string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value, slack.NewTextBlockObject(slack.PlainTextType, Truncate(text, OptionTextLimit), false, false), nil)
}

func codeBlock(s string) string {
	return "```" + strings.TrimSpace(s) + "```"
}

// BlockID returns the block_id of any block type the connector renders.
func BlockID(b slack.Block) string {
	switch v := b.(type) {
	case *slack.HeaderBlock:
		return v.BlockID
	case *slack.SectionBlock:
		return v.BlockID
	case *slack.ContextBlock:
		return v.BlockID
	case *slack.DividerBlock:
		return v.BlockID
	case *slack.ActionBlock:
		return v.BlockID
	case *slack.InputBlock:
		return v.BlockID
	case *TableBlock:
		return v.BlockID
	default:
		return ""
	}
}
