package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/reelx/internal/shared"
)

// StatusError is returned for every non-2xx response. The [Response] is returned alongside it.
//
// It matches the shared sentinels with [errors.Is]:
//   - 401 on a first attempt: [shared.ErrUnauthenticated]
//   - 401 on a replay or on the refresh call: [shared.ErrSessionExpired]
//   - 400, 409 and 422: [shared.ErrValidationRejected]
//   - 403: [shared.ErrAuthFailed]
//   - 404: [shared.ErrNotFound]
//   - 5xx: [shared.ErrServiceUnavailable] and [shared.ErrTransientNetwork]
//
// All of them match [shared.ErrAPIRequest].
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Replayed   bool
	Terminal   bool // no refresh will follow: the call was a replay or the refresh itself
	Response   *Response
}

func newStatusError(d Descriptor, resp *Response) *StatusError {
	return &StatusError{
		Method:     d.Method,
		Path:       d.Path,
		StatusCode: resp.StatusCode,
		Message:    ErrorMessage(resp.Body, resp.StatusCode),
		Response:   resp,
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized && !e.Terminal
	case shared.ErrSessionExpired:
		return e.StatusCode == http.StatusUnauthorized && e.Terminal
	case shared.ErrValidationRejected:
		return e.StatusCode == http.StatusBadRequest ||
			e.StatusCode == http.StatusConflict ||
			e.StatusCode == http.StatusUnprocessableEntity
	case shared.ErrAuthFailed:
		return e.StatusCode == http.StatusForbidden
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrServiceUnavailable, shared.ErrTransientNetwork:
		return e.StatusCode >= 500
	}
	return false
}

// AsStatusError unwraps err to a [*StatusError].
func AsStatusError(err error) (*StatusError, bool) {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}

// ErrorMessage extracts a human-readable message from an error body.
//
// It looks at "detail", "error" and "non_field_errors" in that order and falls back to the status text.
func ErrorMessage(body []byte, status int) string {
	if msg := BodyMessage(body); msg != "" {
		return msg
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

// BodyMessage returns the message carried by a JSON error body, or "" when there is none.
func BodyMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "non_field_errors"} {
		if msg := messageFrom(payload[key]); msg != "" {
			return msg
		}
	}
	return ""
}

func messageFrom(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
