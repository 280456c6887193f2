package providers

import (
	"fmt"
	"strings"
)

// HTTPError is a non-2xx answer from a completion backend.
type HTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports a 429 answer.
func (e *HTTPError) IsRateLimited() bool { return e.StatusCode == 429 }

func newHTTPError(provider string, code int, body []byte) *HTTPError {
	return &HTTPError{Provider: provider, StatusCode: code, Message: friendlyHTTPError(code, body)}
}

func friendlyHTTPError(code int, body []byte) string {
	if code == 429 {
		return "rate limit exceeded"
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
