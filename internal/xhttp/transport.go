package xhttp

import (
	"fmt"
	"net/http"

	"github.com/garrettladley/slackerp/internal/version"
	"github.com/garrettladley/slackerp/internal/xcontext"
)

type outboundTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*outboundTransport)(nil)

func (t *outboundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(UserAgent, version.UserAgent())
	if id := xcontext.RequestIDOrEmpty(req.Context()); id != "" {
		req.Header.Set(XRequestID, id)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform round trip: %w", err)
	}
	return resp, nil
}

// NewTransport returns an http.RoundTripper that tags outbound calls with
// the service user agent and the inbound request id.
func NewTransport() http.RoundTripper {
	return WrapTransport(http.DefaultTransport)
}

func WrapTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &outboundTransport{base: base}
}
