package pipeline

import (
	"net/http"
	"net/url"
	"strings"
)

// Descriptor describes one outbound request. Path is relative to the client's base URL.
//
// Descriptors are values; the With* methods return modified copies.
type Descriptor struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewDescriptor creates a [Descriptor] with an empty header set.
func NewDescriptor(method, path string, body []byte) Descriptor {
	return Descriptor{Method: strings.ToUpper(method), Path: path, Header: make(http.Header), Body: body}
}

// WithHeader returns a copy of d with the header key set to value.
func (d Descriptor) WithHeader(key, value string) Descriptor {
	d.Header = d.Header.Clone()
	if d.Header == nil {
		d.Header = make(http.Header)
	}
	d.Header.Set(key, value)
	return d
}

// WithQuery returns a copy of d with the given query parameters.
func (d Descriptor) WithQuery(q url.Values) Descriptor {
	d.Query = url.Values{}
	for k, v := range q {
		d.Query[k] = append([]string(nil), v...)
	}
	return d
}

// ReadOnly reports whether the method is GET, HEAD or OPTIONS.
func (d Descriptor) ReadOnly() bool {
	return isReadOnly(d.Method)
}

func (d Descriptor) String() string {
	return d.Method + " " + d.Path
}

func isReadOnly(method string) bool {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Call pairs a [Descriptor] with its replay budget.
//
// retried starts false and is set once, before the single permitted replay.
type Call struct {
	Descriptor Descriptor
	retried    bool
}

// NewCall creates a [Call] that has not been replayed.
func NewCall(d Descriptor) *Call {
	return &Call{Descriptor: d}
}

// Retried reports whether the call has used its replay.
func (c *Call) Retried() bool { return c.retried }

// markRetried spends the replay budget. It reports false if the budget was already spent.
func (c *Call) markRetried() bool {
	if c.retried {
		return false
	}
	c.retried = true
	return true
}
