package fetch

import (
	"context"
	"strings"

	"github.com/desertthunder/reelx/internal/models"
)

// MovieSource looks up movies by free text and by trending window.
type MovieSource interface {
	SearchMovies(ctx context.Context, query string, page int) (models.Page[models.Movie], error)
	TrendingMovies(ctx context.Context, window string, page int) (models.Page[models.Movie], error)
}

// NewMovieSearch creates a debounced free-text search controller.
func NewMovieSearch(src MovieSource, opts Options) *Controller[models.Movie] {
	return New(func(ctx context.Context, query string, page, _ int) (models.Page[models.Movie], error) {
		return src.SearchMovies(ctx, query, page)
	}, opts)
}

// NewTrending creates a controller for the top limit trending movies in window and starts the lookup.
//
// The trending list is a single page; limit <= 0 keeps the whole first page. A blank window means "day".
func NewTrending(src MovieSource, window string, limit int, opts Options) *Controller[models.Movie] {
	opts.Debounce = 0
	c := New(func(ctx context.Context, window string, _, _ int) (models.Page[models.Movie], error) {
		page, err := src.TrendingMovies(ctx, window, 1)
		if err != nil {
			return page, err
		}
		if limit > 0 && len(page.Items) > limit {
			page.Items = page.Items[:limit]
		}
		page.Page = 1
		page.TotalPages = 1
		page.TotalCount = len(page.Items)
		return page, nil
	}, opts)

	if window = strings.TrimSpace(window); window == "" {
		window = "day"
	}
	if err := c.Submit(window); err != nil {
		c.logger.Warn("trending lookup not started", "window", window, "error", err)
	}
	return c
}
