package sheets

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/core"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

// APIError is a sanitized summary of a failed Sheets API call.
//
// Raw response bodies are never kept; they can carry sheet contents.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	Reason     string

	// Snippet is a redacted, truncated hint when no structured reason was returned.
	Snippet string
}

func (e *APIError) Error() string {
	if e == nil {
		return "sheets api error"
	}
	parts := []string{fmt.Sprintf("sheets api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status))}
	if r := strings.TrimSpace(e.Reason); r != "" {
		parts = append(parts, "reason="+r)
	}
	if s := strings.TrimSpace(e.Snippet); s != "" {
		parts = append(parts, "body="+s)
	}
	return strings.Join(parts, " ")
}

// Temporary reports whether retrying the call may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// wrapAPIError converts a googleapi error into an APIError; 429 and 5xx are marked transient.
func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("sheets %s: %s", op, redact.Secrets(err.Error()))
	}

	ae := &APIError{
		Op:         op,
		StatusCode: gerr.Code,
		Status:     fmt.Sprintf("%d %s", gerr.Code, http.StatusText(gerr.Code)),
	}
	for _, item := range gerr.Errors {
		if r := strings.TrimSpace(item.Reason); r != "" {
			ae.Reason = r
			break
		}
	}
	if ae.Reason == "" {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		ae.Snippet = snippet(msg)
	}
	if ae.Temporary() {
		return &core.TransientError{Err: ae}
	}
	return ae
}

func snippet(body string) string {
	const max = 256
	s := redact.Secrets(body)
	s = strings.Join(strings.Fields(s), " ")
	return redact.Truncate(s, max)
}
