package credentials

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// CookieStore persists cookies per host.
type CookieStore interface {
	SaveCookies(host string, cookies []*http.Cookie) error
	LoadCookies(host string) ([]*http.Cookie, error)
	ClearCookies(host string) error
}

// PersistentJar is an [http.CookieJar] that writes every cookie it accepts through to a [CookieStore].
//
// With a nil store it behaves like a plain in-memory jar.
type PersistentJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  CookieStore
	logger *log.Logger
}

// NewPersistentJar creates a jar and restores the stored cookies for each of the given URLs.
func NewPersistentJar(store CookieStore, logger *log.Logger, restore ...*url.URL) (*PersistentJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	p := &PersistentJar{jar: jar, store: store, logger: logger}
	if store == nil {
		return p, nil
	}

	for _, u := range restore {
		cookies, err := store.LoadCookies(u.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies for %s: %w", u.Host, err)
		}
		jar.SetCookies(u, cookies)
		logger.Debug("restored cookies", "host", u.Host, "count", len(cookies))
	}

	return p, nil
}

// SetCookies stores cookies in memory and persists them.
//
// Persistence failures are logged; the in-memory jar is still updated.
func (p *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jar.SetCookies(u, cookies)
	if p.store == nil || len(cookies) == 0 {
		return
	}

	now := time.Now()
	persisted := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		persisted = append(persisted, normalizeExpiry(c, now))
	}

	if err := p.store.SaveCookies(u.Host, persisted); err != nil {
		p.logger.Warn("failed to persist cookies", "host", u.Host, "error", err)
	}
}

// Cookies returns the cookies to send in a request for u.
func (p *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jar.Cookies(u)
}

// Clear drops every cookie held in memory and removes the stored cookies for u's host.
func (p *PersistentJar) Clear(u *url.URL) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jar = jar
	if p.store == nil {
		return nil
	}
	return p.store.ClearCookies(u.Host)
}

// normalizeExpiry converts Max-Age into an absolute expiry so restored cookies expire on time.
// Deletions (Max-Age < 0) are given an expiry in the past.
func normalizeExpiry(c *http.Cookie, now time.Time) *http.Cookie {
	out := *c
	switch {
	case c.MaxAge < 0:
		out.Expires = time.Unix(1, 0)
	case c.MaxAge > 0:
		out.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	out.MaxAge = 0
	return &out
}
