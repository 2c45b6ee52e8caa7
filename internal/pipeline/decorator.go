package pipeline

import (
	"context"
	"net/http"

	"github.com/desertthunder/reelx/internal/credentials"
)

// DefaultCSRFHeader is the anti-forgery header name used when none is configured.
const DefaultCSRFHeader = "X-CSRF-Token"

// Decorator attaches credentials to outbound requests.
type Decorator struct {
	creds      credentials.Accessor
	csrfHeader string
}

// NewDecorator creates a [Decorator]. An empty header name falls back to [DefaultCSRFHeader].
func NewDecorator(creds credentials.Accessor, csrfHeader string) *Decorator {
	if csrfHeader == "" {
		csrfHeader = DefaultCSRFHeader
	}
	if creds == nil {
		creds = credentials.Static{}
	}
	return &Decorator{creds: creds, csrfHeader: csrfHeader}
}

// CSRFHeader returns the anti-forgery header name.
func (d *Decorator) CSRFHeader() string { return d.csrfHeader }

// Decorate sets Authorization when an access token is available and attaches the anti-forgery header.
//
// Missing credentials are not an error; the request goes out unauthenticated.
func (d *Decorator) Decorate(ctx context.Context, req *http.Request) {
	pair := d.creds.Credentials(ctx)
	if pair.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	d.attachCSRF(req, pair)
}

// DecorateRefresh attaches only the anti-forgery header. The refresh call authenticates with its cookie.
func (d *Decorator) DecorateRefresh(ctx context.Context, req *http.Request) {
	d.attachCSRF(req, d.creds.Credentials(ctx))
}

// attachCSRF sets the header for state-changing methods when it is absent and a token exists.
func (d *Decorator) attachCSRF(req *http.Request, pair credentials.Pair) {
	if isReadOnly(req.Method) || req.Header.Get(d.csrfHeader) != "" || pair.CSRFToken == "" {
		return
	}
	req.Header.Set(d.csrfHeader, pair.CSRFToken)
}
