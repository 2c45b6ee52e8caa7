package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Default cookie and header names match the client defaults.
const (
	DefaultPrefix        = "/api"
	DefaultAccessCookie  = "jwt-access-token"
	DefaultRefreshCookie = "jwt-refresh-token"
	DefaultCSRFCookie    = "csrftoken"
	DefaultCSRFHeader    = "X-CSRF-Token"
)

// DevOpts configures a [DevServer].
type DevOpts struct {
	Prefix        string
	Secret        []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessCookie  string
	RefreshCookie string
	CSRFCookie    string
	CSRFHeader    string
	PasswordCost  int // bcrypt cost, defaults to bcrypt.DefaultCost
	Logger        *log.Logger
}

// DevServer is an in-memory stand-in for the application backend.
//
// It speaks the same contract the client relies on: JWT access and refresh cookies, a csrf cookie
// echoed in a header on unsafe methods, paginated students and ticker predictions.
type DevServer struct {
	router   Router
	accounts *Accounts
	tokens   *TokenIssuer
	students *StudentsHandler
	logger   *log.Logger
}

// NewDevServer builds the router and handlers.
func NewDevServer(opts DevOpts) (*DevServer, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.AccessCookie == "" {
		opts.AccessCookie = DefaultAccessCookie
	}
	if opts.RefreshCookie == "" {
		opts.RefreshCookie = DefaultRefreshCookie
	}
	if opts.CSRFCookie == "" {
		opts.CSRFCookie = DefaultCSRFCookie
	}
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = DefaultCSRFHeader
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	tokens, err := NewTokenIssuer(opts.Secret, opts.AccessTTL, opts.RefreshTTL)
	if err != nil {
		return nil, err
	}

	accounts := NewAccounts(opts.PasswordCost)
	auth := &Authenticator{accounts: accounts, tokens: tokens, accessCookie: opts.AccessCookie}
	students := NewStudentsHandler(auth)

	router := NewBasicRouter(opts.Prefix)
	router.Use(
		Recover(opts.Logger),
		Logging(opts.Logger),
		EnsureCSRFCookie(opts.CSRFCookie),
		CSRF(opts.CSRFHeader, opts.CSRFCookie, opts.Prefix+"/auth/login/", opts.Prefix+"/auth/registration/"),
	)
	router.Handler(&AuthHandler{
		auth:          auth,
		accounts:      accounts,
		tokens:        tokens,
		accessCookie:  opts.AccessCookie,
		refreshCookie: opts.RefreshCookie,
		logger:        opts.Logger,
	})
	router.Handler(students)
	router.Handler(NewPredictHandler(auth))
	router.Handle(http.MethodGet, "/health/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	return &DevServer{
		router:   router,
		accounts: accounts,
		tokens:   tokens,
		students: students,
		logger:   opts.Logger,
	}, nil
}

// Handler returns the root handler.
func (s *DevServer) Handler() http.Handler { return s.router }

// Accounts returns the user store, for seeding.
func (s *DevServer) Accounts() *Accounts { return s.accounts }

// Tokens returns the token issuer.
func (s *DevServer) Tokens() *TokenIssuer { return s.tokens }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *DevServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *DevServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("development backend listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		s.logger.Info("development backend stopped")
		return nil
	}
}
