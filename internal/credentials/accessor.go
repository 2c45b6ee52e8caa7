package credentials

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	DefaultAccessCookie = "jwt-access-token"
	DefaultCSRFCookie   = "csrftoken"
)

// Pair holds the credentials available for one request. Either field may be empty.
type Pair struct {
	AccessToken string
	CSRFToken   string
}

// Accessor supplies the current credential [Pair].
type Accessor interface {
	Credentials(ctx context.Context) Pair
}

// AccessorFunc adapts a function to [Accessor].
type AccessorFunc func(ctx context.Context) Pair

func (f AccessorFunc) Credentials(ctx context.Context) Pair { return f(ctx) }

// Static is an [Accessor] that always returns the same pair.
type Static Pair

func (s Static) Credentials(context.Context) Pair { return Pair(s) }

// JarAccessor reads the access and CSRF cookies the jar holds for a target URL.
type JarAccessor struct {
	jar          http.CookieJar
	target       *url.URL
	accessCookie string
	csrfCookie   string
}

// NewJarAccessor creates a [JarAccessor] for cookies scoped to baseURL.
//
// Empty cookie names fall back to [DefaultAccessCookie] and [DefaultCSRFCookie].
func NewJarAccessor(jar http.CookieJar, baseURL, accessCookie, csrfCookie string) (*JarAccessor, error) {
	if jar == nil {
		return nil, fmt.Errorf("cookie jar is required")
	}

	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	if accessCookie == "" {
		accessCookie = DefaultAccessCookie
	}
	if csrfCookie == "" {
		csrfCookie = DefaultCSRFCookie
	}

	return &JarAccessor{jar: jar, target: target, accessCookie: accessCookie, csrfCookie: csrfCookie}, nil
}

// Credentials returns the cookies currently held for the target URL.
func (a *JarAccessor) Credentials(context.Context) Pair {
	var pair Pair
	for _, c := range a.jar.Cookies(a.target) {
		switch c.Name {
		case a.accessCookie:
			pair.AccessToken = c.Value
		case a.csrfCookie:
			pair.CSRFToken = c.Value
		}
	}
	return pair
}
