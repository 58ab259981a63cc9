package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/slack-go/slack"
)

var ErrUserNotFound = errors.New("chat: user not found")

// User is a workspace member that can be linked to an employee.
type User struct {
	ID       string
	Username string
	RealName string
	Email    string
}

// Messenger is the subset of the Slack Web API the connector uses.
type Messenger interface {
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error)
	PushView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error)
	// UpdateView replaces an open view. hash guards against concurrent
	// updates and may be empty.
	UpdateView(ctx context.Context, view slack.ModalViewRequest, viewID, hash string) (*slack.View, error)
	PostBlocks(ctx context.Context, channel string, blocks []slack.Block, opts ...PostOption) (string, error)
	UpdateBlocks(ctx context.Context, channel, ts string, blocks []slack.Block) error
	PostText(ctx context.Context, channel, text string) (string, error)
	PostEphemeral(ctx context.Context, channel, user, text string) error
	ListUsers(ctx context.Context) ([]User, error)
	LookupByEmail(ctx context.Context, email string) (User, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}

type Client struct {
	api    *slack.Client
	logger *slog.Logger
}

var _ Messenger = (*Client)(nil)

type Option func(*clientConfig)

type clientConfig struct {
	apiURL string
	logger *slog.Logger
	opts   []xhttp.ClientOption
}

// WithAPIURL points the client at a different Web API root, e.g. a test
// server. A trailing slash is added when missing.
func WithAPIURL(u string) Option {
	return func(cfg *clientConfig) {
		if u != "" && !strings.HasSuffix(u, "/") {
			u += "/"
		}
		cfg.apiURL = u
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

func WithHTTPOptions(opts ...xhttp.ClientOption) Option {
	return func(cfg *clientConfig) { cfg.opts = append(cfg.opts, opts...) }
}

func New(botToken string, opts ...Option) *Client {
	cfg := &clientConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	slackOpts := []slack.Option{slack.OptionHTTPClient(xhttp.NewHTTPClient(cfg.opts...))}
	if cfg.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &Client{
		api:    slack.New(botToken, slackOpts...),
		logger: cfg.logger,
	}
}

func (c *Client) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error) {
	resp, err := c.api.OpenViewContext(ctx, triggerID, view)
	if err != nil {
		return nil, fmt.Errorf("views.open: %w", viewError(resp, err))
	}
	return &resp.View, nil
}

func (c *Client) PushView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.View, error) {
	resp, err := c.api.PushViewContext(ctx, triggerID, view)
	if err != nil {
		return nil, fmt.Errorf("views.push: %w", viewError(resp, err))
	}
	return &resp.View, nil
}

func (c *Client) UpdateView(ctx context.Context, view slack.ModalViewRequest, viewID, hash string) (*slack.View, error) {
	resp, err := c.api.UpdateViewContext(ctx, view, "", hash, viewID)
	if err != nil {
		return nil, fmt.Errorf("views.update: %w", viewError(resp, err))
	}
	return &resp.View, nil
}

// PostSettings is the result of applying PostOptions.
type PostSettings struct {
	ThreadTS  string
	Broadcast bool
	Text      string
	Purpose   string
}

type PostOption func(*PostSettings)

// InThread replies under the message with timestamp ts.
func InThread(ts string) PostOption {
	return func(cfg *PostSettings) { cfg.ThreadTS = ts }
}

// Broadcast also shows a thread reply in the channel.
func Broadcast() PostOption {
	return func(cfg *PostSettings) { cfg.Broadcast = true }
}

// WithFallbackText sets the notification text shown alongside blocks.
func WithFallbackText(text string) PostOption {
	return func(cfg *PostSettings) { cfg.Text = text }
}

// WithPurpose labels the message in the chat_messages_total metric.
func WithPurpose(purpose string) PostOption {
	return func(cfg *PostSettings) { cfg.Purpose = purpose }
}

func ApplyPostOptions(opts ...PostOption) PostSettings {
	cfg := PostSettings{Purpose: "message"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// PostBlocks posts a block message and returns its timestamp.
func (c *Client) PostBlocks(ctx context.Context, channel string, blocks []slack.Block, opts ...PostOption) (string, error) {
	cfg := ApplyPostOptions(opts...)

	msgOpts := []slack.MsgOption{slack.MsgOptionBlocks(blocks...)}
	if cfg.Text != "" {
		msgOpts = append(msgOpts, slack.MsgOptionText(cfg.Text, false))
	}
	if cfg.ThreadTS != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(cfg.ThreadTS))
		if cfg.Broadcast {
			msgOpts = append(msgOpts, slack.MsgOptionBroadcast())
		}
	}

	_, ts, err := c.api.PostMessageContext(ctx, channel, msgOpts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage %s: %w", channel, err)
	}
	metrics.ChatMessage(cfg.Purpose)
	return ts, nil
}

func (c *Client) UpdateBlocks(ctx context.Context, channel, ts string, blocks []slack.Block) error {
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("chat.update %s: %w", channel, err)
	}
	return nil
}

func (c *Client) PostText(ctx context.Context, channel, text string) (string, error) {
	_, ts, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("chat.postMessage %s: %w", channel, err)
	}
	metrics.ChatMessage("text")
	return ts, nil
}

func (c *Client) PostEphemeral(ctx context.Context, channel, user, text string) error {
	if _, err := c.api.PostEphemeralContext(ctx, channel, user, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("chat.postEphemeral %s: %w", channel, err)
	}
	metrics.ChatMessage("ephemeral")
	return nil
}

// ListUsers pages through users.list and keeps human members with an
// email address. Rate-limited pages are retried after the advertised delay.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var (
		users []User
		err   error
	)
	p := c.api.GetUsersPaginated(slack.GetUsersOptionLimit(200))
	for err == nil {
		p, err = p.Next(ctx)
		if err == nil {
			for _, u := range p.Users {
				if member, ok := fromSlack(u); ok {
					users = append(users, member)
				}
			}
			continue
		}

		var rle *slack.RateLimitedError
		if errors.As(err, &rle) {
			c.logger.WarnContext(ctx, "users.list rate limited", xslog.Duration(rle.RetryAfter))
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(rle.RetryAfter):
				err = nil
			}
		}
	}
	if err := p.Failure(err); err != nil {
		return nil, fmt.Errorf("users.list: %w", err)
	}
	return users, nil
}

func (c *Client) LookupByEmail(ctx context.Context, email string) (User, error) {
	u, err := c.api.GetUserByEmailContext(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return User{}, fmt.Errorf("%s: %w", email, ErrUserNotFound)
		}
		return User{}, fmt.Errorf("users.lookupByEmail: %w", err)
	}
	member, ok := fromSlack(*u)
	if !ok {
		return User{}, fmt.Errorf("%s: %w", email, ErrUserNotFound)
	}
	return member, nil
}

func (c *Client) UserEmail(ctx context.Context, userID string) (string, error) {
	u, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s: %w", userID, ErrUserNotFound)
		}
		return "", fmt.Errorf("users.info: %w", err)
	}
	if u.Profile.Email == "" {
		return "", fmt.Errorf("%s has no email: %w", userID, ErrUserNotFound)
	}
	return u.Profile.Email, nil
}

func fromSlack(u slack.User) (User, bool) {
	if u.Deleted || u.IsBot || u.IsAppUser || u.ID == "USLACKBOT" || u.Profile.Email == "" {
		return User{}, false
	}
	name := u.Profile.DisplayName
	if name == "" {
		name = u.Name
	}
	return User{
		ID:       u.ID,
		Username: name,
		RealName: u.RealName,
		Email:    strings.ToLower(u.Profile.Email),
	}, true
}

func isNotFound(err error) bool {
	var serr slack.SlackErrorResponse
	if errors.As(err, &serr) {
		return serr.Err == "users_not_found" || serr.Err == "user_not_found"
	}
	return err.Error() == "users_not_found" || err.Error() == "user_not_found"
}

// viewError surfaces per-field validation messages from views.* responses.
func viewError(resp *slack.ViewResponse, err error) error {
	if resp == nil || len(resp.ResponseMetadata.Messages) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, strings.Join(resp.ResponseMetadata.Messages, "; "))
}
