package frappe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/go-resty/resty/v2"
	go_json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// Client talks to the Frappe REST API (/api/resource and /api/method).
type Client struct {
	Leaves     LeaveService
	Employees  EmployeeService
	Timesheets TimesheetService
	Holidays   HolidayService
	Workload   WorkloadService

	rc     *resty.Client
	logger *slog.Logger
	fields fieldSet
}

// fieldSet records which site-specific custom fields may be requested.
// Frappe rejects list queries that name unknown fields.
type fieldSet struct {
	customLeave bool
	pms         bool
}

func New(baseURL string, tokenSource oauth2.TokenSource, opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL:     baseURL,
		tokenSource: tokenSource,
		logger:      slog.Default(),
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base := cfg.transport
	if base == nil {
		base = http.DefaultTransport
	}
	transport := &frappeTransport{
		base:        xhttp.WrapTransport(base),
		tokenSource: cfg.tokenSource,
	}

	rc := resty.NewWithClient(&http.Client{Transport: transport, Timeout: cfg.timeout}).
		SetBaseURL(cfg.baseURL).
		SetHeader("Accept", xhttp.MIMEApplicationJSON)
	rc.JSONMarshal = go_json.Marshal
	rc.JSONUnmarshal = go_json.Unmarshal

	c := &Client{
		rc:     rc,
		logger: cfg.logger,
		fields: fieldSet{customLeave: cfg.customLeave, pms: cfg.pms},
	}

	c.Leaves = &leaveService{client: c}
	c.Employees = &employeeService{client: c}
	c.Timesheets = &timesheetService{client: c}
	c.Holidays = &holidayService{client: c}
	c.Workload = &workloadService{client: c}

	return c
}

type clientConfig struct {
	baseURL     string
	tokenSource oauth2.TokenSource
	transport   http.RoundTripper
	logger      *slog.Logger
	timeout     time.Duration
	customLeave bool
	pms         bool
}

type Option func(*clientConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) { cfg.timeout = d }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *clientConfig) { cfg.transport = rt }
}

// WithCustomLeaveFields enables the half-day period field and the
// Approve/Reject workflow on Leave Application.
func WithCustomLeaveFields(enabled bool) Option {
	return func(cfg *clientConfig) { cfg.customLeave = enabled }
}

// WithPMS enables the working-hours and billable custom fields.
func WithPMS(enabled bool) Option {
	return func(cfg *clientConfig) { cfg.pms = enabled }
}

type frappeTransport struct {
	base        http.RoundTripper
	tokenSource oauth2.TokenSource
}

var _ http.RoundTripper = (*frappeTransport)(nil)

func (t *frappeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	req = req.Clone(req.Context())
	token.SetAuthHeader(req)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip: %w", err)
	}
	return resp, nil
}

// APIKeyTokenSource authenticates with a Frappe API key pair, sent as
// "Authorization: token <key>:<secret>".
func APIKeyTokenSource(key, secret string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: key + ":" + secret,
		TokenType:   "token",
	})
}

// OAuthTokenSource refreshes bearer tokens against the Frappe OAuth provider.
// tokenURL defaults to the site's get_token endpoint.
func OAuthTokenSource(ctx context.Context, baseURL, clientID, clientSecret, tokenURL, refreshToken string) oauth2.TokenSource {
	if tokenURL == "" {
		tokenURL = baseURL + "/api/method/frappe.integrations.oauth2.get_token"
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
