package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reelx/internal/models"
)

// AuthHandler serves the login, registration, logout, user and token refresh endpoints.
type AuthHandler struct {
	auth          *Authenticator
	accounts      *Accounts
	tokens        *TokenIssuer
	accessCookie  string
	refreshCookie string
	logger        *log.Logger
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{
		"/auth/login/",
		"/auth/registration/",
		"/auth/logout/",
		"/auth/user/",
		"/auth/token/refresh/",
	}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path[strings.Index(r.URL.Path, "/auth/"):]

	switch {
	case path == "/auth/user/" && r.Method == http.MethodGet:
		h.user(w, r)
	case path == "/auth/login/" && r.Method == http.MethodPost:
		h.login(w, r)
	case path == "/auth/registration/" && r.Method == http.MethodPost:
		h.register(w, r)
	case path == "/auth/logout/" && r.Method == http.MethodPost:
		h.logout(w, r)
	case path == "/auth/token/refresh/" && r.Method == http.MethodPost:
		h.refresh(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, detail("Method \""+r.Method+"\" not allowed."))
	}
}

func (h *AuthHandler) user(w http.ResponseWriter, r *http.Request) {
	user, ok := h.auth.Authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error."))
		return
	}

	errs := fieldErrors{}
	if body.Password == "" {
		errs.add("password", "This field is required.")
	}
	if body.Username == "" && body.Email == "" {
		errs.add("non_field_errors", `Must include "username" and "password".`)
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	user, ok := h.accounts.Check(body.Username, body.Email, body.Password)
	if !ok {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"non_field_errors": {"Unable to log in with provided credentials."}})
		return
	}

	if !h.issueSession(w, user) {
		return
	}
	h.logger.Info("user logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password1 string `json:"password1"`
		Password2 string `json:"password2"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error."))
		return
	}

	errs := fieldErrors{}
	switch {
	case strings.TrimSpace(body.Username) == "":
		errs.add("username", "This field is required.")
	case h.accounts.Exists(body.Username):
		errs.add("username", "A user with that username already exists.")
	}
	switch {
	case strings.TrimSpace(body.Email) == "":
		errs.add("email", "This field is required.")
	case !strings.Contains(body.Email, "@"):
		errs.add("email", "Enter a valid email address.")
	case h.accounts.EmailTaken(body.Email):
		errs.add("email", "A user is already registered with this e-mail address.")
	}
	if len(body.Password1) < 8 {
		errs.add("password1", "This password is too short. It must contain at least 8 characters.")
	}
	if body.Password1 != body.Password2 {
		errs.add("non_field_errors", "The two password fields didn't match.")
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	user, err := h.accounts.Add(strings.TrimSpace(body.Username), strings.TrimSpace(body.Email), body.Password1)
	switch {
	case errors.Is(err, ErrAccountExists):
		writeJSON(w, http.StatusBadRequest, fieldErrors{"username": {"A user with that username already exists."}})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, fieldErrors{"password1": {"This password is too long."}})
		return
	}

	if !h.issueSession(w, user) {
		return
	}
	h.logger.Info("user registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (h *AuthHandler) logout(w http.ResponseWriter, _ *http.Request) {
	for _, name := range []string{h.accessCookie, h.refreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	writeJSON(w, http.StatusOK, detail("Successfully logged out."))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.refreshCookie)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusUnauthorized, detail("No valid refresh token found."))
		return
	}

	username, err := h.tokens.Verify(c.Value, RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	if _, ok := h.accounts.User(username); !ok {
		writeJSON(w, http.StatusUnauthorized, detail("User not found"))
		return
	}

	access, expires, err := h.tokens.Issue(username, AccessToken)
	if err != nil {
		h.logger.Error("failed to issue access token", "error", err)
		writeJSON(w, http.StatusInternalServerError, detail("A server error occurred."))
		return
	}
	h.setTokenCookie(w, h.accessCookie, access, h.tokens.AccessTTL())
	writeJSON(w, http.StatusOK, map[string]any{"access_expiration": expires.UTC().Format(time.RFC3339)})
}

// issueSession sets the access and refresh cookies for user. It writes a 500 and reports false on failure.
func (h *AuthHandler) issueSession(w http.ResponseWriter, user models.User) bool {
	access, _, err := h.tokens.Issue(user.Username, AccessToken)
	if err == nil {
		var refresh string
		if refresh, _, err = h.tokens.Issue(user.Username, RefreshToken); err == nil {
			h.setTokenCookie(w, h.accessCookie, access, h.tokens.AccessTTL())
			h.setTokenCookie(w, h.refreshCookie, refresh, h.tokens.RefreshTTL())
			return true
		}
	}

	h.logger.Error("failed to issue tokens", "username", user.Username, "error", err)
	writeJSON(w, http.StatusInternalServerError, detail("A server error occurred."))
	return false
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
