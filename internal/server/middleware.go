package server

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/shared"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs every request with its status, duration and the client's X-Request-ID.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := log.InfoLevel
			if rec.status >= 500 {
				level = log.ErrorLevel
			}
			logger.Log(level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed", time.Since(start),
				"request_id", r.Header.Get("X-Request-ID"))
		})
	}
}

// Recover turns a handler panic into a 500 response.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panic", "path", r.URL.Path, "panic", v)
					writeJSON(w, http.StatusInternalServerError, detail("A server error occurred."))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CSRF rejects unsafe requests whose header does not match the csrf cookie.
//
// Paths in exempt are matched exactly against the request path.
func CSRF(header, cookie string, exempt ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || slices.Contains(exempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			c, err := r.Cookie(cookie)
			if err != nil || c.Value == "" {
				writeJSON(w, http.StatusForbidden, detail("CSRF Failed: CSRF cookie not set."))
				return
			}
			sent := r.Header.Get(header)
			if sent == "" {
				writeJSON(w, http.StatusForbidden, detail("CSRF Failed: CSRF token missing."))
				return
			}
			if subtle.ConstantTimeCompare([]byte(sent), []byte(c.Value)) != 1 {
				writeJSON(w, http.StatusForbidden, detail("CSRF Failed: CSRF token incorrect."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnsureCSRFCookie sets the csrf cookie on responses to clients that do not have one yet.
func EnsureCSRFCookie(cookie string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(cookie); err != nil || c.Value == "" {
				http.SetCookie(w, &http.Cookie{
					Name:     cookie,
					Value:    shared.GenerateID(),
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}
