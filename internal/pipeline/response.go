package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/reelx/internal/shared"
)

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && shared.IsSuccess(r.StatusCode)
}

// JSON decodes the body into an arbitrary value, reporting whether the body is valid JSON.
func (r *Response) JSON() (any, bool) {
	var data any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil, false
	}
	return data, true
}

// DecodeJSON decodes the response body into a T.
func DecodeJSON[T any](r *Response) (T, error) {
	var out T
	if r == nil {
		return out, fmt.Errorf("%w: empty response", shared.ErrAPIRequest)
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return out, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return out, nil
}
