package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/reelx/internal/models"
)

// ErrAccountExists is returned by [Accounts.Add] when the username or email is taken.
var ErrAccountExists = errors.New("account already exists")

type account struct {
	user     models.User
	password []byte // bcrypt hash
}

// Accounts is the in-memory user store of the development backend.
type Accounts struct {
	mu     sync.RWMutex
	byName map[string]*account
	nextPK int
	cost   int
}

// NewAccounts creates an empty store hashing passwords at the given bcrypt cost.
// A cost outside bcrypt's range falls back to [bcrypt.DefaultCost].
func NewAccounts(cost int) *Accounts {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{byName: map[string]*account{}, nextPK: 1, cost: cost}
}

// Add registers a user. It fails with [ErrAccountExists] when the username or email is taken.
func (a *Accounts) Add(username, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byName[strings.ToLower(username)]; ok {
		return models.User{}, ErrAccountExists
	}
	if email != "" && a.byEmailLocked(email) != nil {
		return models.User{}, ErrAccountExists
	}

	acc := &account{
		user:     models.User{ID: a.nextPK, Username: username, Email: email},
		password: hash,
	}
	a.nextPK++
	a.byName[strings.ToLower(username)] = acc
	return acc.user, nil
}

// Exists reports whether username is registered.
func (a *Accounts) Exists(username string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.byName[strings.ToLower(username)]
	return ok
}

// EmailTaken reports whether email belongs to a registered user.
func (a *Accounts) EmailTaken(email string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.byEmailLocked(email) != nil
}

// Check verifies credentials, identifying the account by username or, when empty, by email.
func (a *Accounts) Check(username, email, password string) (models.User, bool) {
	a.mu.RLock()
	acc := a.byName[strings.ToLower(username)]
	if username == "" {
		acc = a.byEmailLocked(email)
	}
	a.mu.RUnlock()
	if acc == nil {
		return models.User{}, false
	}

	if err := bcrypt.CompareHashAndPassword(acc.password, []byte(password)); err != nil {
		return models.User{}, false
	}
	return acc.user, true
}

// User looks up a user by username.
func (a *Accounts) User(username string) (models.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.byName[strings.ToLower(username)]
	if !ok {
		return models.User{}, false
	}
	return acc.user, true
}

func (a *Accounts) byEmailLocked(email string) *account {
	if email == "" {
		return nil
	}
	for _, acc := range a.byName {
		if strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

// Authenticator resolves the user behind a request from its bearer token or access cookie.
type Authenticator struct {
	accounts     *Accounts
	tokens       *TokenIssuer
	accessCookie string
}

// Authenticate writes a 401 and reports false when the request carries no valid access token.
func (a *Authenticator) Authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	raw := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	} else if c, err := r.Cookie(a.accessCookie); err == nil {
		raw = c.Value
	}

	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, detail("Authentication credentials were not provided."))
		return models.User{}, false
	}

	username, err := a.tokens.Verify(raw, AccessToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Given token not valid for any token type",
			"code":   "token_not_valid",
		})
		return models.User{}, false
	}

	user, ok := a.accounts.User(username)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detail("User not found"))
		return models.User{}, false
	}
	return user, true
}
