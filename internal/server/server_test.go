package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// testBackend is a running DevServer plus a cookie-aware client.
type testBackend struct {
	t      *testing.T
	dev    *DevServer
	srv    *httptest.Server
	client *http.Client
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	dev, err := NewDevServer(DevOpts{Secret: []byte("test-secret"), PasswordCost: bcrypt.MinCost, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("failed to create dev server: %v", err)
	}
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testBackend{t: t, dev: dev, srv: srv, client: &http.Client{Jar: jar}}
}

// withFreshJar returns a second client against the same server.
func (b *testBackend) withFreshJar() *testBackend {
	jar, _ := cookiejar.New(nil)
	return &testBackend{t: b.t, dev: b.dev, srv: b.srv, client: &http.Client{Jar: jar}}
}

func (b *testBackend) url(path string) string {
	return b.srv.URL + DefaultPrefix + path
}

func (b *testBackend) cookie(name string) string {
	u, _ := url.Parse(b.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *testBackend) do(method, path string, body any, header http.Header) (*http.Response, map[string]any) {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, b.url(path), r)
	if err != nil {
		b.t.Fatalf("failed to build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// csrf returns a header carrying the current csrf cookie.
func (b *testBackend) csrf() http.Header {
	return http.Header{DefaultCSRFHeader: {b.cookie(DefaultCSRFCookie)}}
}

func (b *testBackend) register(username string) {
	b.t.Helper()
	resp, body := b.do(http.MethodPost, "/auth/registration/", map[string]string{
		"username": username, "email": username + "@example.com", "password1": "password123", "password2": "password123",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		b.t.Fatalf("registration failed: %d %v", resp.StatusCode, body)
	}
}

func TestAuthEndpoints(t *testing.T) {
	t.Run("User requires credentials", func(t *testing.T) {
		b := newTestBackend(t)
		resp, body := b.do(http.MethodGet, "/auth/user/", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		if body["detail"] != "Authentication credentials were not provided." {
			t.Errorf("unexpected detail %v", body["detail"])
		}
		if b.cookie(DefaultCSRFCookie) == "" {
			t.Error("expected csrf cookie to be handed out")
		}
	})

	t.Run("Register sets cookies and identifies the user", func(t *testing.T) {
		b := newTestBackend(t)
		b.register("ada")

		if b.cookie(DefaultAccessCookie) == "" || b.cookie(DefaultRefreshCookie) == "" {
			t.Fatal("expected token cookies after registration")
		}

		resp, body := b.do(http.MethodGet, "/auth/user/", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body["username"] != "ada" || body["pk"] != float64(1) {
			t.Errorf("unexpected user %v", body)
		}
	})

	t.Run("Registration validation", func(t *testing.T) {
		b := newTestBackend(t)
		b.register("ada")

		resp, body := b.do(http.MethodPost, "/auth/registration/", map[string]string{
			"username": "ada", "email": "bad", "password1": "short", "password2": "other",
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		for _, field := range []string{"username", "email", "password1", "non_field_errors"} {
			if _, ok := body[field]; !ok {
				t.Errorf("expected error for %s, got %v", field, body)
			}
		}
	})

	t.Run("Login", func(t *testing.T) {
		b := newTestBackend(t)
		b.dev.Accounts().Add("grace", "grace@example.com", "password123")

		resp, body := b.do(http.MethodPost, "/auth/login/", map[string]string{"username": "grace", "password": "wrong"}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		if errs, _ := body["non_field_errors"].([]any); len(errs) != 1 {
			t.Errorf("expected non_field_errors, got %v", body)
		}

		resp, _ = b.do(http.MethodPost, "/auth/login/", map[string]string{"email": "grace@example.com", "password": "password123"}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected login by email to succeed, got %d", resp.StatusCode)
		}
	})

	t.Run("Bearer header is accepted", func(t *testing.T) {
		b := newTestBackend(t)
		b.dev.Accounts().Add("grace", "", "password123")
		token, _, err := b.dev.Tokens().Issue("grace", AccessToken)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		resp, _ := b.do(http.MethodGet, "/auth/user/", nil, http.Header{"Authorization": {"Bearer " + token}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		refresh, _, _ := b.dev.Tokens().Issue("grace", RefreshToken)
		resp, body := b.do(http.MethodGet, "/auth/user/", nil, http.Header{"Authorization": {"Bearer " + refresh}})
		if resp.StatusCode != http.StatusUnauthorized || body["code"] != "token_not_valid" {
			t.Errorf("expected refresh token to be rejected as access, got %d %v", resp.StatusCode, body)
		}
	})

	t.Run("Refresh rotates the access cookie", func(t *testing.T) {
		b := newTestBackend(t)
		b.register("ada")
		before := b.cookie(DefaultAccessCookie)

		resp, body := b.do(http.MethodPost, "/auth/token/refresh/", nil, b.csrf())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
		}
		if b.cookie(DefaultAccessCookie) == before {
			t.Error("expected a new access token")
		}
	})

	t.Run("Refresh without cookie", func(t *testing.T) {
		b := newTestBackend(t)
		b.do(http.MethodGet, "/health/", nil, nil)
		resp, _ := b.do(http.MethodPost, "/auth/token/refresh/", nil, b.csrf())
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})

	t.Run("Logout expires token cookies", func(t *testing.T) {
		b := newTestBackend(t)
		b.register("ada")

		resp, _ := b.do(http.MethodPost, "/auth/logout/", nil, b.csrf())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if b.cookie(DefaultAccessCookie) != "" || b.cookie(DefaultRefreshCookie) != "" {
			t.Error("expected token cookies to be removed")
		}
	})
}

func TestCSRF(t *testing.T) {
	b := newTestBackend(t)
	b.register("ada")

	t.Run("Missing header", func(t *testing.T) {
		resp, body := b.do(http.MethodPost, "/students/", map[string]string{"name": "x"}, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
		if !strings.Contains(body["detail"].(string), "CSRF token missing") {
			t.Errorf("unexpected detail %v", body["detail"])
		}
	})

	t.Run("Wrong header", func(t *testing.T) {
		resp, _ := b.do(http.MethodPost, "/students/", map[string]string{"name": "x"}, http.Header{DefaultCSRFHeader: {"nope"}})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("Safe methods pass", func(t *testing.T) {
		resp, _ := b.do(http.MethodGet, "/students/", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})
}

func TestStudentEndpoints(t *testing.T) {
	b := newTestBackend(t)
	b.register("ada")

	create := func(name, id, branch string) (*http.Response, map[string]any) {
		return b.do(http.MethodPost, "/students/", map[string]string{"name": name, "student_id": id, "branch": branch}, b.csrf())
	}

	for i, branch := range []string{"CSE", "ECE", "CSE", "ME", "CSE", "IT", "CSE", "EEE", "CSE", "CE", "CSE", "CSE"} {
		if resp, body := create("Student "+string(rune('A'+i)), "S"+string(rune('A'+i)), branch); resp.StatusCode != http.StatusCreated {
			t.Fatalf("failed to create student: %d %v", resp.StatusCode, body)
		}
	}

	t.Run("Create validation", func(t *testing.T) {
		resp, body := create("Ada", "SA", "CSE")
		if resp.StatusCode != http.StatusBadRequest || body["student_id"] == nil {
			t.Errorf("expected duplicate student_id error, got %d %v", resp.StatusCode, body)
		}
		resp, body = create("Ada", "X1", "LAW")
		if resp.StatusCode != http.StatusBadRequest || body["detail"] == nil {
			t.Errorf("expected branch error, got %d %v", resp.StatusCode, body)
		}
	})

	t.Run("List paginates newest first", func(t *testing.T) {
		resp, body := b.do(http.MethodGet, "/students/?page=1&page_size=10", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if body["count"] != float64(12) {
			t.Errorf("expected count 12, got %v", body["count"])
		}
		results := body["results"].([]any)
		if len(results) != 10 {
			t.Fatalf("expected 10 results, got %d", len(results))
		}
		if results[0].(map[string]any)["student_id"] != "SL" {
			t.Errorf("expected newest student first, got %v", results[0])
		}

		_, body = b.do(http.MethodGet, "/students/?page=2&page_size=10", nil, nil)
		if len(body["results"].([]any)) != 2 {
			t.Errorf("expected 2 results on page 2, got %v", body["results"])
		}
	})

	t.Run("List filters", func(t *testing.T) {
		_, body := b.do(http.MethodGet, "/students/?branch=CSE", nil, nil)
		if body["count"] != float64(7) {
			t.Errorf("expected 7 CSE students, got %v", body["count"])
		}
		_, body = b.do(http.MethodGet, "/students/?search=student%20c", nil, nil)
		if body["count"] != float64(1) {
			t.Errorf("expected 1 search match, got %v", body["count"])
		}
	})

	t.Run("Invalid page", func(t *testing.T) {
		resp, body := b.do(http.MethodGet, "/students/?page=3&page_size=10", nil, nil)
		if resp.StatusCode != http.StatusNotFound || body["detail"] != "Invalid page." {
			t.Errorf("expected invalid page, got %d %v", resp.StatusCode, body)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		resp, _ := b.do(http.MethodDelete, "/students/1/", nil, b.csrf())
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
		resp, _ = b.do(http.MethodDelete, "/students/1/", nil, b.csrf())
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", resp.StatusCode)
		}
	})

	t.Run("Students are per user", func(t *testing.T) {
		other := b.withFreshJar()
		other.register("grace")

		_, body := other.do(http.MethodGet, "/students/", nil, nil)
		if body["count"] != float64(0) {
			t.Errorf("expected no students for another user, got %v", body["count"])
		}
	})
}

func TestPredictEndpoints(t *testing.T) {
	b := newTestBackend(t)

	t.Run("Predict is public and deterministic", func(t *testing.T) {
		resp, first := b.do(http.MethodGet, "/predict/?ticker=aapl", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		_, second := b.do(http.MethodGet, "/predict/?ticker=AAPL", nil, nil)
		if first["ticker"] != "AAPL" || first["predicted_price"] != second["predicted_price"] {
			t.Errorf("expected stable prediction, got %v and %v", first, second)
		}
	})

	t.Run("Predict errors", func(t *testing.T) {
		resp, body := b.do(http.MethodGet, "/predict/", nil, nil)
		if resp.StatusCode != http.StatusBadRequest || body["error"] != "Ticker symbol is required" {
			t.Errorf("unexpected response %d %v", resp.StatusCode, body)
		}
		_, body = b.do(http.MethodGet, "/predict/?ticker=12$", nil, nil)
		if body["error"] != "Invalid ticker symbol" {
			t.Errorf("unexpected response %v", body)
		}
	})

	t.Run("Predict stock requires auth", func(t *testing.T) {
		resp, _ := b.do(http.MethodPost, "/predict-stock/", map[string]string{"ticker": "MSFT"}, b.csrf())
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}

		b.register("ada")
		resp, body := b.do(http.MethodPost, "/predict-stock/", map[string]string{"ticker": "MSFT"}, b.csrf())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
		}
		if len(body["plots"].(map[string]any)) != 4 {
			t.Errorf("expected 4 plots, got %v", body["plots"])
		}
	})
}

func TestRouter(t *testing.T) {
	t.Run("Method filtering", func(t *testing.T) {
		b := newTestBackend(t)
		resp, _ := b.do(http.MethodPost, "/health/", nil, b.csrf())
		if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected POST /health/ to be rejected, got %d", resp.StatusCode)
		}
	})

	t.Run("Middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter("/v1/")
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first,second, got %v", order)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := Recover(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestAccounts(t *testing.T) {
	t.Run("stores bcrypt hashes", func(t *testing.T) {
		accounts := NewAccounts(bcrypt.MinCost)
		if _, err := accounts.Add("ada", "ada@example.com", "password123"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		acc := accounts.byName["ada"]
		if bytes.Contains(acc.password, []byte("password123")) {
			t.Error("expected the password not to be stored in plain text")
		}
		if cost, err := bcrypt.Cost(acc.password); err != nil || cost != bcrypt.MinCost {
			t.Errorf("expected bcrypt hash at cost %d, got %d (%v)", bcrypt.MinCost, cost, err)
		}
	})

	t.Run("checks credentials by username or email", func(t *testing.T) {
		accounts := NewAccounts(bcrypt.MinCost)
		accounts.Add("ada", "ada@example.com", "password123")

		if _, ok := accounts.Check("ada", "", "password123"); !ok {
			t.Error("expected username login to succeed")
		}
		if _, ok := accounts.Check("", "ADA@example.com", "password123"); !ok {
			t.Error("expected email login to succeed")
		}
		if _, ok := accounts.Check("ada", "", "password124"); ok {
			t.Error("expected wrong password to fail")
		}
		if _, ok := accounts.Check("grace", "", "password123"); ok {
			t.Error("expected unknown user to fail")
		}
	})

	t.Run("rejects taken usernames and emails", func(t *testing.T) {
		accounts := NewAccounts(bcrypt.MinCost)
		accounts.Add("ada", "ada@example.com", "password123")

		if _, err := accounts.Add("ADA", "", "password123"); !errors.Is(err, ErrAccountExists) {
			t.Errorf("expected ErrAccountExists for username, got %v", err)
		}
		if _, err := accounts.Add("grace", "ada@example.com", "password123"); !errors.Is(err, ErrAccountExists) {
			t.Errorf("expected ErrAccountExists for email, got %v", err)
		}
	})

	t.Run("rejects passwords bcrypt cannot hash", func(t *testing.T) {
		accounts := NewAccounts(bcrypt.MinCost)
		_, err := accounts.Add("ada", "", strings.Repeat("x", 73))
		if err == nil || errors.Is(err, ErrAccountExists) {
			t.Errorf("expected hashing error, got %v", err)
		}
		if accounts.Exists("ada") {
			t.Error("expected no account to be created")
		}
	})

	t.Run("out of range cost uses the default", func(t *testing.T) {
		if accounts := NewAccounts(0); accounts.cost != bcrypt.DefaultCost {
			t.Errorf("expected default cost, got %d", accounts.cost)
		}
	})
}
