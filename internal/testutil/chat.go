// Package testutil holds in-memory fakes of the chat and ERP clients
// shared by service tests.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/garrettladley/slackerp/internal/client/chat"
	"github.com/slack-go/slack"
)

type ViewCall struct {
	Method    string
	TriggerID string
	ViewID    string
	Hash      string
	View      slack.ModalViewRequest
}

type Post struct {
	Channel   string
	Blocks    []slack.Block
	Text      string
	ThreadTS  string
	Broadcast bool
	Purpose   string
}

type Update struct {
	Channel string
	TS      string
	Blocks  []slack.Block
}

type Ephemeral struct {
	Channel string
	User    string
	Text    string
}

// Messenger records every call. Errors keyed by method name ("views.open",
// "chat.postMessage", ...) are returned instead of succeeding.
type Messenger struct {
	mu         sync.Mutex
	Users      []chat.User
	Errors     map[string]error
	Views      []ViewCall
	Posts      []Post
	Updates    []Update
	Ephemerals []Ephemeral
	Lookups    []string
	seq        int
}

var _ chat.Messenger = (*Messenger)(nil)

func NewMessenger(users ...chat.User) *Messenger {
	return &Messenger{Users: users, Errors: map[string]error{}}
}

func (m *Messenger) fail(method string) error {
	return m.Errors[method]
}

func (m *Messenger) view(method string, call ViewCall) (*slack.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(method); err != nil {
		return nil, err
	}
	call.Method = method
	m.Views = append(m.Views, call)
	return &slack.View{ID: "V" + strconv.Itoa(len(m.Views)), CallbackID: call.View.CallbackID}, nil
}

func (m *Messenger) OpenView(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error) {
	return m.view("views.open", ViewCall{TriggerID: triggerID, View: view})
}

func (m *Messenger) PushView(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error) {
	return m.view("views.push", ViewCall{TriggerID: triggerID, View: view})
}

func (m *Messenger) UpdateView(_ context.Context, view slack.ModalViewRequest, viewID, hash string) (*slack.View, error) {
	return m.view("views.update", ViewCall{ViewID: viewID, Hash: hash, View: view})
}

func (m *Messenger) nextTS() string {
	m.seq++
	return fmt.Sprintf("1700000000.%06d", m.seq)
}

func (m *Messenger) PostBlocks(_ context.Context, channel string, blocks []slack.Block, opts ...chat.PostOption) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("chat.postMessage"); err != nil {
		return "", err
	}
	settings := chat.ApplyPostOptions(opts...)
	m.Posts = append(m.Posts, Post{
		Channel:   channel,
		Blocks:    blocks,
		Text:      settings.Text,
		ThreadTS:  settings.ThreadTS,
		Broadcast: settings.Broadcast,
		Purpose:   settings.Purpose,
	})
	return m.nextTS(), nil
}

func (m *Messenger) UpdateBlocks(_ context.Context, channel, ts string, blocks []slack.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("chat.update"); err != nil {
		return err
	}
	m.Updates = append(m.Updates, Update{Channel: channel, TS: ts, Blocks: blocks})
	return nil
}

func (m *Messenger) PostText(_ context.Context, channel, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("chat.postMessage"); err != nil {
		return "", err
	}
	m.Posts = append(m.Posts, Post{Channel: channel, Text: text})
	return m.nextTS(), nil
}

func (m *Messenger) PostEphemeral(_ context.Context, channel, user, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("chat.postEphemeral"); err != nil {
		return err
	}
	m.Ephemerals = append(m.Ephemerals, Ephemeral{Channel: channel, User: user, Text: text})
	return nil
}

func (m *Messenger) ListUsers(context.Context) ([]chat.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("users.list"); err != nil {
		return nil, err
	}
	return append([]chat.User(nil), m.Users...), nil
}

func (m *Messenger) LookupByEmail(_ context.Context, email string) (chat.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups = append(m.Lookups, email)
	if err := m.fail("users.lookupByEmail"); err != nil {
		return chat.User{}, err
	}
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return chat.User{}, chat.ErrUserNotFound
}

func (m *Messenger) UserEmail(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == userID {
			return u.Email, nil
		}
	}
	return "", chat.ErrUserNotFound
}

// PostsTo returns the messages sent to channel in order.
func (m *Messenger) PostsTo(channel string) []Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.Posts {
		if p.Channel == channel {
			out = append(out, p)
		}
	}
	return out
}

func (m *Messenger) ViewCalls() []ViewCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ViewCall(nil), m.Views...)
}
