package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// AuthLogin logs in with a username or email and stores the session cookies.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.api(ctx); err != nil {
		return err
	}
	sess := r.session

	req := session.LoginRequest{
		Username: strings.TrimSpace(cmd.String("username")),
		Email:    strings.TrimSpace(cmd.String("email")),
		Password: cmd.String("password"),
	}
	if req.Username == "" && req.Email == "" {
		return fmt.Errorf("%w: --username or --email is required", shared.ErrMissingArgument)
	}

	if err := sess.Login(ctx, req); err != nil {
		return r.authError("login failed", err)
	}
	return r.writePlain("✓ Logged in as %s\n", r.displayUser(sess, req.Username, req.Email))
}

// AuthRegister creates an account; the backend logs the new user in.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.api(ctx); err != nil {
		return err
	}
	sess := r.session

	confirm := cmd.String("confirm")
	if confirm == "" {
		confirm = cmd.String("password")
	}
	req := session.RegistrationRequest{
		Username:  strings.TrimSpace(cmd.String("username")),
		Email:     strings.TrimSpace(cmd.String("email")),
		Password1: cmd.String("password"),
		Password2: confirm,
	}

	if err := sess.Register(ctx, req); err != nil {
		return r.authError("registration failed", err)
	}
	return r.writePlain("✓ Registered and logged in as %s\n", r.displayUser(sess, req.Username, req.Email))
}

// AuthLogout ends the session on the backend and clears the stored cookies.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.authSession(ctx)
	if err != nil {
		return err
	}

	logoutErr := sess.Logout(ctx)

	base, _ := url.Parse(r.config.API.BaseURL)
	if err := r.jar.Clear(base); err != nil {
		r.logger.Warn("failed to clear stored cookies", "error", err)
	}

	if logoutErr != nil {
		r.logger.Warn("backend logout failed, local session cleared", "error", logoutErr)
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus asks the backend for the current user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.authSession(ctx)
	if err != nil {
		return err
	}
	state := sess.State()

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"authenticated": state.Authenticated,
			"user":          state.User,
			"api":           r.config.API.BaseURL,
		}, cmd.Bool("pretty"))
	}

	r.writePlain("API: %s\n", r.config.API.BaseURL)
	if !state.Authenticated {
		return r.writePlain("Authentication: ✗ Not authenticated\n")
	}
	r.writePlain("Authentication: ✓ Authenticated\n")
	if state.User != nil {
		r.writePlain("User: %s (%s)\n", state.User.DisplayName(), state.User.Email)
	}
	return nil
}

// AuthImport stores cookies from a browser request and checks that they authenticate.
func (r *Runner) AuthImport(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var req *shared.CurlRequest
	var err error
	if curlFile != "" {
		req, err = shared.ParseCurlFile(curlFile)
	} else {
		req, err = shared.ParseCurlCommand(curlCmd)
	}
	if err != nil {
		return fmt.Errorf("failed to parse cURL command: %w", err)
	}

	cookies, err := req.Cookies()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return fmt.Errorf("%w: the cURL command carries no cookies", shared.ErrInvalidInput)
	}

	if _, err := r.api(ctx); err != nil {
		return err
	}
	base, _ := url.Parse(r.config.API.BaseURL)
	if host := req.Host(); host != "" && host != base.Host {
		r.logger.Warn("cURL host differs from api.base_url, storing cookies for the API host", "curl_host", host, "api_host", base.Host)
	}
	for _, c := range cookies {
		c.Path = "/"
	}
	r.jar.SetCookies(base, cookies)
	r.logger.Info("imported cookies", "count", len(cookies), "host", base.Host)

	state := r.session.Check(ctx)
	if !state.Authenticated {
		return fmt.Errorf("%w: imported cookies were not accepted", shared.ErrAuthFailed)
	}
	return r.writePlain("✓ Imported %d cookies, logged in as %s\n", len(cookies), r.displayUser(r.session, "", ""))
}

// authError adds the backend's field messages to a rejected login or registration.
func (r *Runner) authError(action string, err error) error {
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%w: %s: %s", shared.ErrAuthFailed, action, verr.Error())
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (r *Runner) displayUser(sess *session.Session, fallback ...string) string {
	if st := sess.State(); st.User != nil {
		return st.User.DisplayName()
	}
	for _, f := range fallback {
		if f != "" {
			return f
		}
	}
	return "unknown user"
}
