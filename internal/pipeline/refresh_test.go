package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/shared"
	tu "github.com/desertthunder/reelx/internal/testing"
)

// fakeTransport answers sends and refreshes from test-supplied functions and counts calls.
type fakeTransport struct {
	mu        sync.Mutex
	sends     []Descriptor
	refreshes atomic.Int32
	send      func(attempt int, d Descriptor) (*Response, error)
	refresh   func(ctx context.Context) (*Response, error)
}

func (f *fakeTransport) Send(ctx context.Context, d Descriptor) (*Response, error) {
	f.mu.Lock()
	f.sends = append(f.sends, d)
	attempt := 0
	for _, s := range f.sends {
		if s.Path == d.Path {
			attempt++
		}
	}
	f.mu.Unlock()
	return f.send(attempt, d)
}

func (f *fakeTransport) Refresh(ctx context.Context) (*Response, error) {
	f.refreshes.Add(1)
	if f.refresh == nil {
		return &Response{StatusCode: http.StatusOK}, nil
	}
	return f.refresh(ctx)
}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func respond(d Descriptor, status int, body string) (*Response, error) {
	resp := &Response{StatusCode: status, Body: []byte(body)}
	if !resp.OK() {
		return resp, newStatusError(d, resp)
	}
	return resp, nil
}

type recordingSession struct {
	expired atomic.Int32
}

func (r *recordingSession) Expire() { r.expired.Add(1) }

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes once and replays a first 401", func(t *testing.T) {
		ft := &fakeTransport{send: func(attempt int, d Descriptor) (*Response, error) {
			if attempt == 1 {
				return respond(d, http.StatusUnauthorized, `{"detail":"token expired"}`)
			}
			return respond(d, http.StatusOK, `{"ok":true}`)
		}}
		c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})

		call := NewCall(NewDescriptor(http.MethodGet, "/students/", nil))
		resp, err := c.Do(ctx, call)
		if err != nil {
			t.Fatalf("expected replay to succeed, got %v", err)
		}
		if string(resp.Body) != `{"ok":true}` {
			t.Errorf("expected replay body, got %s", resp.Body)
		}
		if ft.refreshes.Load() != 1 {
			t.Errorf("expected exactly one refresh, got %d", ft.refreshes.Load())
		}
		if ft.sendCount() != 2 {
			t.Errorf("expected original send plus one replay, got %d", ft.sendCount())
		}
		if !call.Retried() {
			t.Error("expected call to be marked retried")
		}
	})

	t.Run("never replays a second 401", func(t *testing.T) {
		ft := &fakeTransport{send: func(_ int, d Descriptor) (*Response, error) {
			return respond(d, http.StatusUnauthorized, `{"detail":"nope"}`)
		}}
		session := &recordingSession{}
		c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})
		c.SetExpirer(session)

		resp, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, "/students/", nil)))
		if ft.refreshes.Load() != 1 {
			t.Errorf("expected one refresh, got %d", ft.refreshes.Load())
		}
		if ft.sendCount() != 2 {
			t.Errorf("expected two sends, got %d", ft.sendCount())
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected replayed 401 response to be returned")
		}
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired for 401 after replay, got %v", err)
		}
		if errors.Is(err, shared.ErrUnauthenticated) {
			t.Error("replayed 401 should not be recoverable")
		}
		if session.expired.Load() != 0 {
			t.Error("replay result should be returned without expiring the session")
		}
	})

	t.Run("already retried call passes through", func(t *testing.T) {
		ft := &fakeTransport{send: func(_ int, d Descriptor) (*Response, error) {
			return respond(d, http.StatusUnauthorized, "")
		}}
		c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})

		call := NewCall(NewDescriptor(http.MethodGet, "/students/", nil))
		call.markRetried()

		_, err := c.Do(ctx, call)
		if ft.refreshes.Load() != 0 {
			t.Errorf("expected no refresh, got %d", ft.refreshes.Load())
		}
		if !errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected unmodified 401 error, got %v", err)
		}
	})

	t.Run("401 on logout never triggers refresh", func(t *testing.T) {
		ft := &fakeTransport{send: func(_ int, d Descriptor) (*Response, error) {
			return respond(d, http.StatusUnauthorized, "")
		}}
		c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})

		_, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodPost, "/auth/logout/", nil)))
		if ft.refreshes.Load() != 0 {
			t.Errorf("expected no refresh on logout, got %d", ft.refreshes.Load())
		}
		if ft.sendCount() != 1 {
			t.Errorf("expected a single send, got %d", ft.sendCount())
		}
		if serr, ok := AsStatusError(err); !ok || serr.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 status error, got %v", err)
		}
	})

	t.Run("other statuses pass through", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError} {
			ft := &fakeTransport{send: func(_ int, d Descriptor) (*Response, error) {
				return respond(d, status, "")
			}}
			c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})

			resp, _ := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, "/students/", nil)))
			if resp.StatusCode != status {
				t.Errorf("expected status %d, got %d", status, resp.StatusCode)
			}
			if ft.refreshes.Load() != 0 || ft.sendCount() != 1 {
				t.Errorf("status %d: expected no refresh and one send", status)
			}
		}
	})

	t.Run("refresh failure expires session and navigates to login", func(t *testing.T) {
		refreshErr := &StatusError{Method: http.MethodPost, Path: DefaultRefreshPath, StatusCode: http.StatusUnauthorized}
		ft := &fakeTransport{
			send: func(_ int, d Descriptor) (*Response, error) {
				return respond(d, http.StatusUnauthorized, "")
			},
			refresh: func(context.Context) (*Response, error) {
				return &Response{StatusCode: http.StatusUnauthorized}, refreshErr
			},
		}
		session := &recordingSession{}
		nav := &tu.Navigations{}
		c := NewCoordinator(ft, CoordinatorOpts{Navigator: nav, Logger: quietLogger()})
		c.SetExpirer(session)

		resp, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, "/students/", nil)))
		if resp != nil {
			t.Error("expected no response when refresh fails")
		}
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected ErrSessionExpired, got %v", err)
		}
		if errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected an expired session not to read as recoverable, got %v", err)
		}

		var serr *StatusError
		if !errors.As(err, &serr) || serr != refreshErr {
			t.Errorf("expected the refresh error to be surfaced, got %v", err)
		}
		if session.expired.Load() != 1 {
			t.Errorf("expected session to be expired once, got %d", session.expired.Load())
		}
		if routes := nav.Routes(); len(routes) != 1 || routes[0] != "/login" {
			t.Errorf("expected navigation to /login, got %v", routes)
		}
		if ft.sendCount() != 1 {
			t.Errorf("expected no replay after failed refresh, got %d sends", ft.sendCount())
		}
	})

	t.Run("concurrent 401s share one refresh when coalescing", func(t *testing.T) {
		const n = 8
		release := make(chan struct{})
		var rejected atomic.Int32

		ft := &fakeTransport{
			send: func(attempt int, d Descriptor) (*Response, error) {
				if attempt == 1 {
					rejected.Add(1)
					return respond(d, http.StatusUnauthorized, "")
				}
				return respond(d, http.StatusOK, d.Path)
			},
			refresh: func(context.Context) (*Response, error) {
				<-release
				return &Response{StatusCode: http.StatusOK}, nil
			},
		}
		c := NewCoordinator(ft, CoordinatorOpts{Coalesce: true, Logger: quietLogger()})

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				path := "/students/" + string(rune('a'+i)) + "/"
				resp, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, path, nil)))
				if err == nil && string(resp.Body) != path {
					err = errors.New("replay returned another call's result")
				}
				errs <- err
			}()
		}

		tu.Eventually(t, 2*time.Second, func() bool { return rejected.Load() == n })
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("expected every call to succeed after refresh, got %v", err)
			}
		}
		if got := ft.refreshes.Load(); got != 1 {
			t.Errorf("expected a single shared refresh, got %d", got)
		}
		if got := ft.sendCount(); got != 2*n {
			t.Errorf("expected %d sends, got %d", 2*n, got)
		}
	})

	t.Run("concurrent 401s each refresh without coalescing", func(t *testing.T) {
		const n = 4
		ft := &fakeTransport{send: func(attempt int, d Descriptor) (*Response, error) {
			if attempt == 1 {
				return respond(d, http.StatusUnauthorized, "")
			}
			return respond(d, http.StatusOK, "")
		}}
		c := NewCoordinator(ft, CoordinatorOpts{Logger: quietLogger()})

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				path := "/students/" + string(rune('a'+i)) + "/"
				if _, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, path, nil))); err != nil {
					t.Errorf("expected success, got %v", err)
				}
			}()
		}
		wg.Wait()

		if got := ft.refreshes.Load(); got != n {
			t.Errorf("expected %d refreshes, got %d", n, got)
		}
	})

	t.Run("coalesced refresh failure expires session once", func(t *testing.T) {
		const n = 4
		release := make(chan struct{})
		var rejected atomic.Int32

		ft := &fakeTransport{
			send: func(_ int, d Descriptor) (*Response, error) {
				rejected.Add(1)
				return respond(d, http.StatusUnauthorized, "")
			},
			refresh: func(context.Context) (*Response, error) {
				<-release
				return nil, errors.New("refresh rejected")
			},
		}
		session := &recordingSession{}
		nav := &tu.Navigations{}
		c := NewCoordinator(ft, CoordinatorOpts{Coalesce: true, Navigator: nav, Logger: quietLogger()})
		c.SetExpirer(session)

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				path := "/students/" + string(rune('a'+i)) + "/"
				if _, err := c.Do(ctx, NewCall(NewDescriptor(http.MethodGet, path, nil))); !errors.Is(err, shared.ErrSessionExpired) {
					t.Errorf("expected ErrSessionExpired, got %v", err)
				}
			}()
		}

		tu.Eventually(t, 2*time.Second, func() bool { return rejected.Load() == n })
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if ft.refreshes.Load() != 1 {
			t.Errorf("expected one refresh, got %d", ft.refreshes.Load())
		}
		if session.expired.Load() != 1 {
			t.Errorf("expected one expiry, got %d", session.expired.Load())
		}
		if len(nav.Routes()) != 1 {
			t.Errorf("expected one navigation, got %v", nav.Routes())
		}
	})

	t.Run("waiter stops on its own cancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		ft := &fakeTransport{
			send: func(_ int, d Descriptor) (*Response, error) {
				return respond(d, http.StatusUnauthorized, "")
			},
			refresh: func(context.Context) (*Response, error) {
				<-release
				return &Response{StatusCode: http.StatusOK}, nil
			},
		}
		session := &recordingSession{}
		c := NewCoordinator(ft, CoordinatorOpts{Coalesce: true, Logger: quietLogger()})
		c.SetExpirer(session)

		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, err := c.Do(cctx, NewCall(NewDescriptor(http.MethodGet, "/students/", nil)))
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
		if session.expired.Load() != 0 {
			t.Error("cancellation must not expire the session")
		}
	})
}

