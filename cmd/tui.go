package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/fetch"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/ui"
)

// TUI launches the interactive terminal UI for movie search.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	provider, err := r.movieProvider()
	if err != nil {
		return err
	}
	if _, err := r.api(ctx); err != nil {
		return err
	}
	go r.session.Check(ctx)

	search := fetch.NewMovieSearch(provider, fetch.Options{
		Debounce: r.config.Search.Debounce(),
		PageSize: r.config.Search.PageSize,
		Logger:   shared.WithLogger(fileLogger, "component", "search"),
	})
	defer search.Close()

	trending := fetch.NewTrending(provider, r.config.Search.TrendingWindow, r.config.Search.TrendingLimit, fetch.Options{
		Logger: shared.WithLogger(fileLogger, "component", "trending"),
	})
	defer trending.Close()

	model := ui.NewModel(ctx, r.session, search, trending)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
