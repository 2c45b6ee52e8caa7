package services

import (
	"context"

	"github.com/desertthunder/reelx/internal/models"
)

// MovieProvider looks up movies from a remote catalogue.
type MovieProvider interface {
	// SearchMovies returns one page of movies whose title matches query.
	SearchMovies(ctx context.Context, query string, page int) (models.Page[models.Movie], error)

	// TrendingMovies returns one page of movies trending in window ("day" or "week").
	TrendingMovies(ctx context.Context, window string, page int) (models.Page[models.Movie], error)

	// Movie retrieves a single movie by ID.
	Movie(ctx context.Context, id int) (*models.Movie, error)

	// ImageBaseURL returns the base URL that poster paths are relative to.
	ImageBaseURL() string

	// Name returns the name of the provider (e.g., "TMDB")
	Name() string
}

// Backend is the authenticated application API.
type Backend interface {
	ListStudents(ctx context.Context, q StudentQuery) (models.Page[models.Student], error)
	CreateStudent(ctx context.Context, in models.StudentInput) (*models.Student, error)
	DeleteStudent(ctx context.Context, id int) error
	Predict(ctx context.Context, ticker string) (*models.Prediction, error)
	PredictStock(ctx context.Context, ticker string) (*models.StockPrediction, error)
}

var (
	_ MovieProvider = (*TMDBService)(nil)
	_ Backend       = (*BackendService)(nil)
)
