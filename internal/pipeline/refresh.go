package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/reelx/internal/shared"
)

const (
	DefaultRefreshPath = "/auth/token/refresh/"
	DefaultLogoutPath  = "/auth/logout/"
	DefaultLoginRoute  = "/login"
)

// Transport sends descriptors and refresh calls.
type Transport interface {
	// Send transmits a decorated descriptor. Non-2xx responses come back with a [*StatusError].
	Send(ctx context.Context, d Descriptor) (*Response, error)
	// Refresh asks the server to rotate the access credential. It is never itself refreshed.
	Refresh(ctx context.Context) (*Response, error)
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	LogoutPath string
	LoginRoute string
	Navigator  Navigator
	Coalesce   bool
	Timeout    time.Duration
	Logger     *log.Logger
}

// Coordinator recovers a single 401 per call by refreshing the session and replaying the call.
type Coordinator struct {
	transport  Transport
	logoutPath string
	loginRoute string
	coalesce   bool
	timeout    time.Duration
	logger     *log.Logger

	group singleflight.Group

	mu        sync.RWMutex
	navigator Navigator
	expirer   Expirer
}

// NewCoordinator creates a [Coordinator] over transport.
func NewCoordinator(transport Transport, opts CoordinatorOpts) *Coordinator {
	if opts.LogoutPath == "" {
		opts.LogoutPath = DefaultLogoutPath
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = DefaultLoginRoute
	}
	if opts.Navigator == nil {
		opts.Navigator = noopNavigator{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Coordinator{
		transport:  transport,
		logoutPath: opts.LogoutPath,
		loginRoute: opts.LoginRoute,
		coalesce:   opts.Coalesce,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		navigator:  opts.Navigator,
	}
}

// SetExpirer registers the session notified when a refresh fails.
func (c *Coordinator) SetExpirer(e Expirer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expirer = e
}

// SetNavigator replaces the navigation effect.
func (c *Coordinator) SetNavigator(n Navigator) {
	if n == nil {
		n = noopNavigator{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigator = n
}

// Do sends call and recovers a first 401 with one refresh and one replay.
//
// A 401 on the logout endpoint, a 401 on a call that was already replayed, and every other status
// pass through unmodified. When the refresh fails the refresh error is returned wrapped in
// [shared.ErrSessionExpired], not the original 401.
func (c *Coordinator) Do(ctx context.Context, call *Call) (*Response, error) {
	resp, err := c.transport.Send(ctx, call.Descriptor)
	if !c.shouldRefresh(call, resp) {
		return resp, err
	}

	call.markRetried()
	c.logger.Debug("access token rejected, refreshing", "request", call.Descriptor.String())

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("replaying request", "request", call.Descriptor.String())
	resp, err = c.transport.Send(ctx, call.Descriptor)
	if serr, ok := AsStatusError(err); ok {
		serr.Replayed = true
		serr.Terminal = true
	}
	return resp, err
}

func (c *Coordinator) shouldRefresh(call *Call, resp *Response) bool {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	if call.Retried() {
		return false
	}
	return !strings.Contains(call.Descriptor.Path, c.logoutPath)
}

// refresh runs one refresh call, or joins the one already in flight when coalescing.
func (c *Coordinator) refresh(ctx context.Context) error {
	if !c.coalesce {
		return c.doRefresh(ctx)
	}

	// The shared call outlives any single waiter; each waiter stops waiting on its own context.
	ch := c.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.doRefresh(rctx)
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight refresh")
		}
		return res.Err
	}
}

func (c *Coordinator) doRefresh(ctx context.Context) error {
	_, err := c.transport.Refresh(ctx)
	if err == nil {
		c.logger.Info("session refreshed")
		return nil
	}

	if errors.Is(err, shared.ErrCancelled) {
		return err
	}

	if serr, ok := AsStatusError(err); ok {
		serr.Terminal = true
	}
	c.logger.Warn("session refresh failed", "error", err)

	c.mu.RLock()
	expirer, navigator := c.expirer, c.navigator
	c.mu.RUnlock()

	if expirer != nil {
		expirer.Expire()
	}
	navigator.Navigate(c.loginRoute)

	return fmt.Errorf("%w: %w", shared.ErrSessionExpired, err)
}
