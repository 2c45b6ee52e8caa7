package repositories

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/reelx/internal/credentials"
)

var _ credentials.CookieStore = (*CookieRepository)(nil)

// CookieRepository implements credentials.CookieStore on the cookies table.
//
// Cookies are keyed by (host, name, path). An expiry in the past deletes the stored cookie,
// which is how a server-side logout reaches the local store.
type CookieRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCookieRepository creates a new CookieRepository with the given database connection
func NewCookieRepository(db *sql.DB) *CookieRepository {
	return &CookieRepository{db: db, now: time.Now}
}

// SaveCookies upserts cookies for host in a single transaction.
func (r *CookieRepository) SaveCookies(host string, cookies []*http.Cookie) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	for _, c := range cookies {
		path := cookiePath(c)
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			if _, err := tx.Exec(`DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, c.Name, path); err != nil {
				return fmt.Errorf("failed to delete cookie %s: %w", c.Name, err)
			}
			continue
		}

		var expires any
		if !c.Expires.IsZero() {
			expires = c.Expires.UTC()
		}

		query := `
			INSERT INTO cookies (host, name, path, value, domain, expires_at, secure, http_only, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (host, name, path) DO UPDATE SET
				value = excluded.value,
				domain = excluded.domain,
				expires_at = excluded.expires_at,
				secure = excluded.secure,
				http_only = excluded.http_only,
				updated_at = excluded.updated_at
		`
		if _, err := tx.Exec(query, host, c.Name, path, c.Value, c.Domain, expires, c.Secure, c.HttpOnly, now.UTC()); err != nil {
			return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cookies: %w", err)
	}
	return nil
}

// LoadCookies returns the unexpired cookies stored for host. Expired rows are removed.
func (r *CookieRepository) LoadCookies(host string) ([]*http.Cookie, error) {
	query := `
		SELECT name, path, value, domain, expires_at, secure, http_only
		FROM cookies
		WHERE host = ?
		ORDER BY name, path
	`

	rows, err := r.db.Query(query, host)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	now := r.now()
	var (
		cookies []*http.Cookie
		expired []*http.Cookie
	)
	for rows.Next() {
		var (
			c       http.Cookie
			expires sql.NullTime
		)
		if err := rows.Scan(&c.Name, &c.Path, &c.Value, &c.Domain, &expires, &c.Secure, &c.HttpOnly); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expires.Valid {
			c.Expires = expires.Time
			if !c.Expires.After(now) {
				expired = append(expired, &c)
				continue
			}
		}
		cookies = append(cookies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, c := range expired {
		if _, err := r.db.Exec(`DELETE FROM cookies WHERE host = ? AND name = ? AND path = ?`, host, c.Name, c.Path); err != nil {
			return nil, fmt.Errorf("failed to prune cookie %s: %w", c.Name, err)
		}
	}

	return cookies, nil
}

// ClearCookies removes every cookie stored for host.
func (r *CookieRepository) ClearCookies(host string) error {
	if _, err := r.db.Exec(`DELETE FROM cookies WHERE host = ?`, host); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

// Hosts lists the hosts that have stored cookies.
func (r *CookieRepository) Hosts() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT host FROM cookies ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookie hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return hosts, nil
}

func cookiePath(c *http.Cookie) string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}
