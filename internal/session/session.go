// Package session tracks whether the backend considers this client logged in.
//
// A [Session] starts unknown. [Session.Check] asks the backend who the current user is and marks the
// check complete whatever the outcome; consumers that gate on authentication call [Session.Wait] or
// [Session.Guard] so they never act on the pre-check state.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/pipeline"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	UserPath     = "/auth/user/"
	LoginPath    = "/auth/login/"
	RegisterPath = "/auth/registration/"
	LogoutPath   = "/auth/logout/"
)

// Requester is the subset of [pipeline.Client] the session uses.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*pipeline.Response, error)
	Post(ctx context.Context, path string, body any) (*pipeline.Response, error)
}

// State is a snapshot of the session.
type State struct {
	Authenticated bool
	CheckComplete bool
	User          *models.User
}

// LoginRequest holds login credentials. Either Username or Email identifies the account.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// RegistrationRequest holds sign-up fields. Password2 must repeat Password1.
type RegistrationRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Session is the process-wide authentication state.
type Session struct {
	api        Requester
	navigator  pipeline.Navigator
	loginRoute string
	logger     *log.Logger

	mu    sync.RWMutex
	state State

	checked   chan struct{}
	checkOnce sync.Once
	changes   []chan State
}

// Opts configures a [Session].
type Opts struct {
	Navigator  pipeline.Navigator
	LoginRoute string
	Logger     *log.Logger
}

// New creates a [Session] whose check has not run.
func New(api Requester, opts Opts) *Session {
	if opts.Navigator == nil {
		opts.Navigator = pipeline.NavigatorFunc(func(string) {})
	}
	if opts.LoginRoute == "" {
		opts.LoginRoute = pipeline.DefaultLoginRoute
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Session{
		api:        api,
		navigator:  opts.Navigator,
		loginRoute: opts.LoginRoute,
		logger:     opts.Logger,
		checked:    make(chan struct{}),
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether the session is authenticated.
func (s *Session) Authenticated() bool {
	return s.State().Authenticated
}

// Changes returns a channel that receives the state after every transition.
// The channel holds the latest state only; stale values are replaced.
func (s *Session) Changes() <-chan State {
	ch := make(chan State, 1)
	s.mu.Lock()
	s.changes = append(s.changes, ch)
	s.mu.Unlock()
	return ch
}

// Check asks the backend for the current user. Any 2xx means authenticated; any failure,
// including a network error, means unauthenticated. The check is marked complete either way, and the
// returned state is taken after that.
func (s *Session) Check(ctx context.Context) (state State) {
	defer func() {
		s.completeCheck()
		state = s.State()
	}()

	resp, err := s.api.Get(ctx, UserPath, nil)
	if err != nil || !resp.OK() {
		s.logger.Debug("session check failed", "error", err)
		s.set(false, nil)
		return
	}

	user, err := pipeline.DecodeJSON[models.User](resp)
	if err != nil {
		s.logger.Warn("could not decode current user", "error", err)
		s.set(true, nil)
		return
	}

	s.set(true, &user)
	return
}

// Wait blocks until the startup check has completed.
func (s *Session) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.checked:
		return s.State(), nil
	case <-ctx.Done():
		return State{}, fmt.Errorf("%w: waiting for session check: %w", shared.ErrCancelled, ctx.Err())
	}
}

// Guard waits for the check and fails with [shared.ErrNotAuthenticated] when the session is not
// authenticated, navigating to the login route.
func (s *Session) Guard(ctx context.Context) (State, error) {
	state, err := s.Wait(ctx)
	if err != nil {
		return state, err
	}
	if !state.Authenticated {
		s.navigator.Navigate(s.loginRoute)
		return state, shared.ErrNotAuthenticated
	}
	return state, nil
}

// Login posts credentials and marks the session authenticated on success.
// Rejected credentials return a [*ValidationError].
func (s *Session) Login(ctx context.Context, req LoginRequest) error {
	if req.Password == "" || (req.Username == "" && req.Email == "") {
		return NewValidationError(map[string][]string{"non_field_errors": {"Username or email and password are required."}})
	}

	resp, err := s.api.Post(ctx, LoginPath, req)
	if err != nil {
		return asValidationError(err)
	}

	s.authenticated(resp)
	s.logger.Info("logged in", "user", firstNonEmpty(req.Username, req.Email))
	return nil
}

// Register creates an account and marks the session authenticated on success.
//
// Mismatched passwords are rejected locally with a field error on password2.
func (s *Session) Register(ctx context.Context, req RegistrationRequest) error {
	if req.Password1 != req.Password2 {
		return NewValidationError(map[string][]string{"password2": {"Passwords do not match."}})
	}

	resp, err := s.api.Post(ctx, RegisterPath, req)
	if err != nil {
		return asValidationError(err)
	}

	s.authenticated(resp)
	s.logger.Info("registered", "user", req.Username)
	return nil
}

// Logout notifies the backend and marks the session unauthenticated whatever the outcome.
//
// A 401 from the logout endpoint means the session was already gone and is not reported.
// Other failures are returned after the local state has been cleared.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.api.Post(ctx, LogoutPath, nil)

	s.set(false, nil)
	s.navigator.Navigate(s.loginRoute)
	s.logger.Info("logged out")

	if serr, ok := pipeline.AsStatusError(err); ok && serr.StatusCode == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Expire marks the session unauthenticated after a failed refresh.
func (s *Session) Expire() {
	s.logger.Info("session expired")
	s.set(false, nil)
}

// authenticated records a successful login or registration. A user in the body is kept when present.
func (s *Session) authenticated(resp *pipeline.Response) {
	var user *models.User
	if body, err := pipeline.DecodeJSON[struct {
		User *models.User `json:"user"`
	}](resp); err == nil {
		user = body.User
	}
	s.set(true, user)
}

func (s *Session) set(authenticated bool, user *models.User) {
	s.mu.Lock()
	s.state.Authenticated = authenticated
	s.state.User = user
	state := s.state
	subscribers := append([]chan State(nil), s.changes...)
	s.mu.Unlock()

	for _, ch := range subscribers {
		publish(ch, state)
	}
}

func (s *Session) completeCheck() {
	s.checkOnce.Do(func() {
		s.mu.Lock()
		s.state.CheckComplete = true
		state := s.state
		subscribers := append([]chan State(nil), s.changes...)
		s.mu.Unlock()

		close(s.checked)
		for _, ch := range subscribers {
			publish(ch, state)
		}
	})
}

// publish replaces any unread state in ch with state.
func publish(ch chan State, state State) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}

// ValidationError carries field-level messages from a rejected form submission.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates a [ValidationError] from field messages.
func NewValidationError(fields map[string][]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if msgs := e.Fields["non_field_errors"]; len(msgs) > 0 {
		return msgs[0]
	}
	if msgs := e.Fields["detail"]; len(msgs) > 0 {
		return msgs[0]
	}

	parts := make([]string, 0, len(e.Fields))
	for _, field := range sortedKeys(e.Fields) {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], " "))
	}
	if len(parts) == 0 {
		return shared.ErrValidationRejected.Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidationRejected
}

// Field returns the first message for a field, or an empty string.
func (e *ValidationError) Field(name string) string {
	if msgs := e.Fields[name]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// asValidationError turns a rejected 4xx into a [*ValidationError]; other errors pass through.
func asValidationError(err error) error {
	serr, ok := pipeline.AsStatusError(err)
	if !ok || !errors.Is(serr, shared.ErrValidationRejected) || serr.Response == nil {
		return err
	}
	return NewValidationError(parseFields(serr.Response.Body, serr.Message))
}
