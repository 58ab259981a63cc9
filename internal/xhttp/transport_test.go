package xhttp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garrettladley/slackerp/internal/xcontext"
)

func TestTransportSetsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get(UserAgent)
		gotID = r.Header.Get(XRequestID)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient()
	ctx := xcontext.SetRequestID(t.Context(), "req-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	_ = resp.Body.Close()

	if !strings.HasPrefix(gotUA, "slackerp/") {
		t.Errorf("User-Agent = %q, want slackerp/ prefix", gotUA)
	}
	if gotID != "req-123" {
		t.Errorf("X-Request-ID = %q, want %q", gotID, "req-123")
	}
}
