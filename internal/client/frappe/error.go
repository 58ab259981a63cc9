package frappe

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	go_json "github.com/goccy/go-json"
)

var ErrNotFound = errors.New("frappe: document not found")

type APIError struct {
	StatusCode int
	ExcType    string
	Message    string
}

func (e *APIError) Error() string {
	if e.ExcType != "" {
		return fmt.Sprintf("frappe api: %d %s: %s", e.StatusCode, e.ExcType, e.Message)
	}
	return fmt.Sprintf("frappe api: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.StatusCode == http.StatusNotFound || e.ExcType == "DoesNotExistError")
}

var tracebackLine = regexp.MustCompile(`(?m)^\w+(\.\w+)*Error: (.*)$`)

func parseAPIError(resp *resty.Response) error {
	body := resp.Body()

	var errResp struct {
		ExcType        string `json:"exc_type"`
		Exception      string `json:"exception"`
		Message        any    `json:"message"`
		ServerMessages string `json:"_server_messages"`
	}
	if err := go_json.Unmarshal(body, &errResp); err != nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	msg := serverMessage(errResp.ServerMessages)
	if msg == "" && errResp.Exception != "" {
		msg = errResp.Exception
		if m := tracebackLine.FindStringSubmatch(msg); m != nil {
			msg = m[2]
		}
	}
	if msg == "" {
		if s, ok := errResp.Message.(string); ok {
			msg = s
		}
	}
	if msg == "" {
		msg = resp.Status()
	}

	return &APIError{
		StatusCode: resp.StatusCode(),
		ExcType:    errResp.ExcType,
		Message:    msg,
	}
}

// serverMessage unpacks the first entry of _server_messages, a JSON
// array of JSON-encoded {"message": ...} objects.
func serverMessage(raw string) string {
	if raw == "" {
		return ""
	}
	var entries []string
	if err := go_json.Unmarshal([]byte(raw), &entries); err != nil || len(entries) == 0 {
		return ""
	}
	var m struct {
		Message string `json:"message"`
	}
	if err := go_json.Unmarshal([]byte(entries[0]), &m); err != nil {
		return entries[0]
	}
	return m.Message
}
