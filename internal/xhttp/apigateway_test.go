package xhttp

import (
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestAPIGatewayHandler(t *testing.T) {
	t.Parallel()

	var (
		gotMethod, gotPath, gotQuery, gotBody, gotSig, gotIP string
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotPath, gotQuery, gotBody = r.Method, r.URL.Path, r.URL.Query().Get("dry"), string(b)
		gotSig = r.Header.Get("X-Slack-Signature")
		gotIP = GetRequestIP(r)
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body := "payload=%7B%7D"
	resp, err := APIGatewayHandler(h)(t.Context(), events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/slack/interactions",
		Headers:               map[string]string{"x-slack-signature": "v0=abc"},
		QueryStringParameters: map[string]string{"dry": "1"},
		Body:                  base64.StdEncoding.EncodeToString([]byte(body)),
		IsBase64Encoded:       true,
		RequestContext: events.APIGatewayProxyRequestContext{
			Identity: events.APIGatewayRequestIdentity{SourceIP: "198.51.100.7"},
		},
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/slack/interactions" || gotQuery != "1" {
		t.Errorf("request = %s %s dry=%s", gotMethod, gotPath, gotQuery)
	}
	if gotBody != body {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
	if gotSig != "v0=abc" {
		t.Errorf("signature header = %q, want %q", gotSig, "v0=abc")
	}
	if gotIP != "198.51.100.7" {
		t.Errorf("ip = %q, want %q", gotIP, "198.51.100.7")
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if resp.Body != `{"ok":true}` || resp.IsBase64Encoded {
		t.Errorf("Body = %q (base64 %v)", resp.Body, resp.IsBase64Encoded)
	}
	if got := resp.MultiValueHeaders["X-Test"]; len(got) != 1 || got[0] != "yes" {
		t.Errorf("X-Test = %v", got)
	}
}

func TestAPIGatewayHandlerDefaultsToOK(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	resp, err := APIGatewayHandler(h)(t.Context(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health"})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
