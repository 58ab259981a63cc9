package interaction

import (
	"fmt"
	"mime"
	"net/url"

	go_json "github.com/goccy/go-json"
	"github.com/slack-go/slack"
)

type Kind string

const (
	KindBlockActions   Kind = "block_actions"
	KindViewSubmission Kind = "view_submission"
)

// Payload is one of *BlockActions or *ViewSubmission.
type Payload interface {
	Kind() Kind
	Actor() User
	payload()
}

type User struct {
	ID       string
	Username string
	TeamID   string
}

// BlockActions is an interactive element fired inside a message or a view.
type BlockActions struct {
	User      User
	TriggerID string
	// Action is the first entry of the actions array; it decides the route.
	Action    slack.BlockAction
	Actions   []slack.BlockAction
	ChannelID string
	MessageTS string
	// Message holds the blocks of the message the action fired from, if any.
	Message slack.Blocks
	// View is set when the action fired inside a modal.
	View *slack.View
}

func (*BlockActions) Kind() Kind    { return KindBlockActions }
func (p *BlockActions) Actor() User { return p.User }
func (*BlockActions) payload()      {}

// StateValue returns the current value of an input in the surrounding view.
func (p *BlockActions) StateValue(blockID, actionID string) (slack.BlockAction, bool) {
	return stateValue(p.View, blockID, actionID)
}

type ViewSubmission struct {
	User      User
	TriggerID string
	View      slack.View
}

func (*ViewSubmission) Kind() Kind    { return KindViewSubmission }
func (p *ViewSubmission) Actor() User { return p.User }
func (*ViewSubmission) payload()      {}

// StateValue returns the submitted element for blockID/actionID.
func (p *ViewSubmission) StateValue(blockID, actionID string) (slack.BlockAction, bool) {
	return stateValue(&p.View, blockID, actionID)
}

func stateValue(view *slack.View, blockID, actionID string) (slack.BlockAction, bool) {
	if view == nil || view.State == nil {
		return slack.BlockAction{}, false
	}
	a, ok := view.State.Values[blockID][actionID]
	return a, ok
}

type rawPayload struct {
	Type string `json:"type"`
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		TeamID   string `json:"team_id"`
	} `json:"user"`
	TriggerID string              `json:"trigger_id"`
	Actions   []slack.BlockAction `json:"actions"`
	Channel   struct {
		ID string `json:"id"`
	} `json:"channel"`
	Container struct {
		MessageTS string `json:"message_ts"`
	} `json:"container"`
	Message *struct {
		TS     string       `json:"ts"`
		Blocks slack.Blocks `json:"blocks"`
	} `json:"message"`
	View *slack.View `json:"view"`
}

// Decode validates data and returns the matching Payload variant.
func Decode(data []byte) (Payload, error) {
	var raw rawPayload
	if err := go_json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	user := User{ID: raw.User.ID, Username: raw.User.Username, TeamID: raw.User.TeamID}

	switch Kind(raw.Type) {
	case KindBlockActions:
		if len(raw.Actions) == 0 || raw.Actions[0].ActionID == "" {
			return nil, fmt.Errorf("%w: block_actions without an action_id", ErrMalformedRequest)
		}
		p := &BlockActions{
			User:      user,
			TriggerID: raw.TriggerID,
			Action:    raw.Actions[0],
			Actions:   raw.Actions,
			ChannelID: raw.Channel.ID,
			MessageTS: raw.Container.MessageTS,
			View:      raw.View,
		}
		if raw.Message != nil {
			p.Message = raw.Message.Blocks
			if p.MessageTS == "" {
				p.MessageTS = raw.Message.TS
			}
		}
		return p, nil
	case KindViewSubmission:
		if raw.View == nil {
			return nil, fmt.Errorf("%w: view_submission without a view", ErrMalformedRequest)
		}
		return &ViewSubmission{User: user, TriggerID: raw.TriggerID, View: *raw.View}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.Type)
	}
}

// ExtractPayload returns the JSON document carried by an interaction
// request: the "payload" form field, or the body itself.
func ExtractPayload(contentType string, body []byte) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/x-www-form-urlencoded" {
		return body, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	payload := form.Get("payload")
	if payload == "" {
		return nil, fmt.Errorf("%w: missing payload field", ErrMalformedRequest)
	}
	return []byte(payload), nil
}
