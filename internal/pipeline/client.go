package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/reelx/internal/credentials"
	"github.com/desertthunder/reelx/internal/shared"
)

// Options configures a [Client].
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client // should carry the cookie jar the Credentials accessor reads from
	Credentials credentials.Accessor
	CSRFHeader  string
	RefreshPath string
	LogoutPath  string
	LoginRoute  string
	Navigator   Navigator
	Coalesce    bool
	RateLimit   float64 // requests per second, 0 disables
	Timeout     time.Duration
	Logger      *log.Logger
}

// Client sends decorated requests to the backend through a refresh [Coordinator].
type Client struct {
	baseURL     string
	refreshPath string
	httpClient  *http.Client
	decorator   *Decorator
	coordinator *Coordinator
	limiter     *rate.Limiter
	logger      *log.Logger
}

// NewClient creates a [Client] for the API at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: api base URL is required", shared.ErrMissingConfig)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid api base URL: %v", shared.ErrInvalidConfig, err)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = DefaultRefreshPath
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		refreshPath: opts.RefreshPath,
		httpClient:  opts.HTTPClient,
		decorator:   NewDecorator(opts.Credentials, opts.CSRFHeader),
		logger:      opts.Logger,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	c.coordinator = NewCoordinator(c, CoordinatorOpts{
		LogoutPath: opts.LogoutPath,
		LoginRoute: opts.LoginRoute,
		Navigator:  opts.Navigator,
		Coalesce:   opts.Coalesce,
		Timeout:    opts.Timeout,
		Logger:     opts.Logger,
	})

	return c, nil
}

// OnExpired registers the session notified when a refresh fails.
func (c *Client) OnExpired(e Expirer) { c.coordinator.SetExpirer(e) }

// SetNavigator replaces the navigation effect run after a failed refresh.
func (c *Client) SetNavigator(n Navigator) { c.coordinator.SetNavigator(n) }

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends d as a new [Call].
func (c *Client) Do(ctx context.Context, d Descriptor) (*Response, error) {
	return c.coordinator.Do(ctx, NewCall(d))
}

// Get performs a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, NewDescriptor(http.MethodGet, path, nil).WithQuery(query))
}

// Post performs a POST request with body encoded as JSON. A nil body sends an empty request body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.withBody(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.withBody(ctx, http.MethodPut, path, body)
}

// Patch performs a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.withBody(ctx, http.MethodPatch, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, NewDescriptor(http.MethodDelete, path, nil))
}

func (c *Client) withBody(ctx context.Context, method, path string, body any) (*Response, error) {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: failed to encode request body: %v", shared.ErrInvalidInput, err)
		}
	}
	return c.Do(ctx, NewDescriptor(method, path, data))
}

// Send implements [Transport]: it decorates d and transmits it once.
func (c *Client) Send(ctx context.Context, d Descriptor) (*Response, error) {
	req, err := c.newRequest(ctx, d)
	if err != nil {
		return nil, err
	}
	c.decorator.Decorate(ctx, req)
	return c.roundTrip(ctx, req, d)
}

// Refresh implements [Transport]: an empty POST to the refresh endpoint with only the anti-forgery header.
func (c *Client) Refresh(ctx context.Context) (*Response, error) {
	d := NewDescriptor(http.MethodPost, c.refreshPath, nil)
	req, err := c.newRequest(ctx, d)
	if err != nil {
		return nil, err
	}
	c.decorator.DecorateRefresh(ctx, req)
	return c.roundTrip(ctx, req, d)
}

func (c *Client) newRequest(ctx context.Context, d Descriptor) (*http.Request, error) {
	target := c.baseURL + d.Path
	if len(d.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + d.Query.Encode()
	}

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrInvalidInput, err)
	}

	for k, values := range d.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if d.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", shared.GenerateID())

	return req, nil
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, d Descriptor) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(d, err)
		}
	}

	requestID := req.Header.Get("X-Request-ID")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(d, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(d, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	}

	c.logger.Debug("api request", "request", d.String(), "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	if !out.OK() {
		return out, newStatusError(d, out)
	}
	return out, nil
}

// transportError classifies failures that produced no response.
func transportError(d Descriptor, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %w", shared.ErrCancelled, d.String(), err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrTransientNetwork, d.String(), err)
}
