package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/fetch"
	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// MoviesSearch looks up a title through the search controller and prints one page of results.
func (r *Runner) MoviesSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: query is required", shared.ErrMissingArgument)
	}
	page := int(cmd.Int("page"))

	provider, err := r.movieProvider()
	if err != nil {
		return err
	}

	search := fetch.NewMovieSearch(provider, fetch.Options{
		PageSize: r.config.Search.PageSize,
		Logger:   shared.WithLogger(r.logger, "component", "search"),
	})
	defer search.Close()

	if err := search.Submit(query); err != nil {
		return err
	}
	state, err := search.Await(ctx)
	if err != nil {
		return err
	}
	if page > 1 && state.Status == fetch.Success {
		if err := search.SetPage(page); err != nil {
			return err
		}
		if state, err = search.Await(ctx); err != nil {
			return err
		}
	}
	if state.Status == fetch.Error {
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, state.Err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(models.Page[models.Movie]{
			Items: state.Items, Page: state.Page, TotalPages: state.TotalPages, TotalCount: state.TotalCount,
		}, cmd.Bool("pretty"))
	}

	if len(state.Items) == 0 {
		return r.writePlain("No movies found for \"%s\".\n", query)
	}
	r.writePlain("%s\n", formatter.MoviesTable(state.Items))
	return r.writePlain("%s\n", formatter.PageSummary(state.Page, state.TotalPages, state.TotalCount))
}

// MoviesTrending prints the top trending movies for a window.
func (r *Runner) MoviesTrending(ctx context.Context, cmd *cli.Command) error {
	window := cmd.String("window")
	if window == "" {
		window = r.config.Search.TrendingWindow
	}
	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.config.Search.TrendingLimit
	}

	provider, err := r.movieProvider()
	if err != nil {
		return err
	}

	trending := fetch.NewTrending(provider, window, limit, fetch.Options{
		Logger: shared.WithLogger(r.logger, "component", "trending"),
	})
	defer trending.Close()

	state, err := trending.Await(ctx)
	if err != nil {
		return err
	}
	if state.Status == fetch.Error {
		return fmt.Errorf("trending lookup failed: %s", state.Err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(state.Items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Trending (%s)", state.Query))
	if len(state.Items) == 0 {
		return r.writePlain("Nothing trending right now.\n")
	}
	return r.writePlain("%s\n", formatter.MoviesTable(state.Items))
}

// MoviesOpen opens a movie's TMDB page in the default browser.
func (r *Runner) MoviesOpen(ctx context.Context, cmd *cli.Command) error {
	id, err := positiveArg(cmd, "id")
	if err != nil {
		return err
	}

	url := models.Movie{ID: id}.PageURL()
	if err := shared.OpenBrowser(url); err != nil {
		r.writePlain("Open this URL in your browser:\n%s\n", url)
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return r.writePlain("✓ Opened %s\n", url)
}
