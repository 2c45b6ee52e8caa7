package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/server"
	"github.com/desertthunder/reelx/internal/shared"
)

// Serve runs the development backend until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		cfg.Port = port
	}

	dev, err := server.NewDevServer(server.DevOpts{
		Secret:       []byte(cfg.Secret),
		AccessTTL:    time.Duration(cfg.AccessTTLSeconds) * time.Second,
		AccessCookie: r.config.API.AccessCookie,
		CSRFCookie:   r.config.API.CSRFCookie,
		CSRFHeader:   r.config.API.CSRFHeader,
		Logger:       shared.WithLogger(r.logger, "component", "server"),
	})
	if err != nil {
		return err
	}

	for _, entry := range cmd.StringSlice("user") {
		username, password, ok := strings.Cut(entry, ":")
		if !ok || username == "" || password == "" {
			return fmt.Errorf("%w: --user must be username:password, got %q", shared.ErrInvalidArgument, entry)
		}
		if _, err := dev.Accounts().Add(username, "", password); err != nil {
			return fmt.Errorf("%w: user %q: %v", shared.ErrInvalidArgument, username, err)
		}
		r.logger.Info("seeded user", "username", username)
	}

	r.writePlain("Development backend on http://%s%s/\n", cfg.Addr(), server.DefaultPrefix)
	return dev.ListenAndServe(ctx, cfg.Addr())
}
