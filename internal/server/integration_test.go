package server_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/reelx/internal/credentials"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/pipeline"
	"github.com/desertthunder/reelx/internal/server"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
	tu "github.com/desertthunder/reelx/internal/testing"
)

type stack struct {
	srv     *httptest.Server
	jar     *credentials.PersistentJar
	client  *pipeline.Client
	session *session.Session
	backend *services.BackendService
	nav     *tu.Navigations
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := log.New(io.Discard)

	dev, err := server.NewDevServer(server.DevOpts{Secret: []byte("integration"), PasswordCost: bcrypt.MinCost, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create dev server: %v", err)
	}
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(srv.Close)

	jar, err := credentials.NewPersistentJar(nil, logger)
	if err != nil {
		t.Fatalf("failed to create jar: %v", err)
	}
	base := srv.URL + server.DefaultPrefix
	accessor, err := credentials.NewJarAccessor(jar, base, "", "")
	if err != nil {
		t.Fatalf("failed to create accessor: %v", err)
	}

	nav := &tu.Navigations{}
	client, err := pipeline.NewClient(pipeline.Options{
		BaseURL:     base,
		HTTPClient:  &http.Client{Jar: jar, Timeout: 5 * time.Second},
		Credentials: accessor,
		Navigator:   nav,
		Coalesce:    true,
		Timeout:     5 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	sess := session.New(client, session.Opts{Navigator: nav, Logger: logger})
	client.OnExpired(sess)

	return &stack{
		srv:     srv,
		jar:     jar,
		client:  client,
		session: sess,
		backend: services.NewBackendService(client),
		nav:     nav,
	}
}

// corrupt overwrites a cookie the server issued with a value it will reject.
func (s *stack) corrupt(t *testing.T, name string) {
	t.Helper()
	u, _ := url.Parse(s.srv.URL)
	s.jar.SetCookies(u, []*http.Cookie{{Name: name, Value: "not-a-token", Path: "/"}})
}

func TestClientAgainstDevServer(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)

	state := st.session.Check(ctx)
	if state.Authenticated || !state.CheckComplete {
		t.Fatalf("expected completed unauthenticated check, got %+v", state)
	}
	if _, err := st.session.Guard(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	t.Run("Registration rejected by the server", func(t *testing.T) {
		err := st.session.Register(ctx, session.RegistrationRequest{
			Username: "ada", Email: "not-an-email", Password1: "password123", Password2: "password123",
		})
		var verr *session.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if verr.Field("email") == "" {
			t.Errorf("expected email field error, got %v", verr)
		}
	})

	if err := st.session.Register(ctx, session.RegistrationRequest{
		Username: "ada", Email: "ada@example.com", Password1: "password123", Password2: "password123",
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if !st.session.Authenticated() {
		t.Fatal("expected session to be authenticated after registration")
	}

	t.Run("Students paginate", func(t *testing.T) {
		for i := range 12 {
			branch := models.Branches[i%len(models.Branches)]
			_, err := st.backend.CreateStudent(ctx, models.StudentInput{
				Name: fmt.Sprintf("Student %02d", i), StudentID: fmt.Sprintf("S%03d", i), Branch: branch,
			})
			if err != nil {
				t.Fatalf("failed to create student %d: %v", i, err)
			}
		}

		page, err := st.backend.ListStudents(ctx, services.StudentQuery{Page: 2})
		if err != nil {
			t.Fatalf("failed to list students: %v", err)
		}
		if page.TotalCount != 12 || page.TotalPages != 2 || len(page.Items) != 2 {
			t.Errorf("unexpected page %+v", page)
		}

		_, err = st.backend.ListStudents(ctx, services.StudentQuery{Page: 5})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for an invalid page, got %v", err)
		}
	})

	t.Run("Duplicate student is reported", func(t *testing.T) {
		_, err := st.backend.CreateStudent(ctx, models.StudentInput{Name: "Again", StudentID: "S000", Branch: "cse"})
		if !errors.Is(err, shared.ErrValidationRejected) {
			t.Fatalf("expected duplicate student to be rejected, got %v", err)
		}
		if msg := services.UserMessage(err, services.MsgCreateFailed); msg != services.MsgCreateFailed {
			t.Errorf("expected fallback message for a field error, got %q", msg)
		}
	})

	t.Run("Prediction", func(t *testing.T) {
		p, err := st.backend.Predict(ctx, "msft")
		if err != nil {
			t.Fatalf("predict failed: %v", err)
		}
		if p.Ticker != "MSFT" || p.PredictedPrice <= 0 {
			t.Errorf("unexpected prediction %+v", p)
		}

		stock, err := st.backend.PredictStock(ctx, "MSFT")
		if err != nil {
			t.Fatalf("predict stock failed: %v", err)
		}
		if len(stock.Plots) != 4 {
			t.Errorf("expected 4 plots, got %v", stock.Plots)
		}
	})

	t.Run("Rejected access token is refreshed", func(t *testing.T) {
		st.corrupt(t, server.DefaultAccessCookie)
		before := len(st.nav.Routes())

		page, err := st.backend.ListStudents(ctx, services.StudentQuery{Page: 1})
		if err != nil {
			t.Fatalf("expected refresh and replay to succeed, got %v", err)
		}
		if len(page.Items) != 10 {
			t.Errorf("expected 10 students, got %d", len(page.Items))
		}
		if len(st.nav.Routes()) != before {
			t.Errorf("expected no navigation, got %v", st.nav.Routes()[before:])
		}
	})

	t.Run("Failed refresh expires the session", func(t *testing.T) {
		st.corrupt(t, server.DefaultAccessCookie)
		st.corrupt(t, server.DefaultRefreshCookie)
		before := len(st.nav.Routes())

		_, err := st.backend.ListStudents(ctx, services.StudentQuery{Page: 1})
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if errors.Is(err, shared.ErrUnauthenticated) {
			t.Errorf("expected a terminal error, got %v", err)
		}
		if st.session.Authenticated() {
			t.Error("expected session to be expired")
		}
		routes := st.nav.Routes()[before:]
		if len(routes) != 1 || routes[0] != pipeline.DefaultLoginRoute {
			t.Errorf("expected one navigation to the login route, got %v", routes)
		}
	})

	t.Run("Login and logout", func(t *testing.T) {
		err := st.session.Login(ctx, session.LoginRequest{Username: "ada", Password: "wrong-password"})
		if !errors.Is(err, shared.ErrValidationRejected) {
			t.Fatalf("expected rejected login, got %v", err)
		}

		if err := st.session.Login(ctx, session.LoginRequest{Email: "ada@example.com", Password: "password123"}); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if state := st.session.Check(ctx); !state.Authenticated || state.User == nil || state.User.Username != "ada" {
			t.Fatalf("expected check to identify ada, got %+v", state)
		}

		if err := st.session.Logout(ctx); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if state := st.session.Check(ctx); state.Authenticated {
			t.Error("expected check to fail after logout")
		}
	})
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	ctx := context.Background()
	st := newStack(t)
	st.session.Check(ctx)

	if err := st.session.Register(ctx, session.RegistrationRequest{
		Username: "grace", Email: "grace@example.com", Password1: "password123", Password2: "password123",
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	st.corrupt(t, server.DefaultAccessCookie)

	errs := make(chan error, 5)
	for range 5 {
		go func() {
			_, err := st.backend.ListStudents(ctx, services.StudentQuery{})
			errs <- err
		}()
	}
	for range 5 {
		if err := <-errs; err != nil {
			t.Errorf("expected request to succeed after refresh, got %v", err)
		}
	}
	if !st.session.Authenticated() {
		t.Error("expected session to stay authenticated")
	}
}
