// The Movie Database (TMDB) implementation of [MovieProvider]
//
// TMDB response types based on https://developer.themoviedb.org/reference
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p/w500"
	tmdbCacheSize    = 128
)

// TMDBPaginatedMovies represents a paginated movie list (search, trending).
type TMDBPaginatedMovies struct {
	Page         int            `json:"page"`
	Results      []models.Movie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// TMDBError represents the TMDB error body.
type TMDBError struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// TMDBOpts configures a [TMDBService].
type TMDBOpts struct {
	BaseURL      string
	ImageBaseURL string
	AccessToken  string
	Language     string
	CacheSize    int
	HTTPClient   *http.Client // base client; the bearer transport wraps its Transport
}

// TMDBService implements [MovieProvider] for The Movie Database API.
//
// Requests authenticate with the v4 read access token through an [oauth2.Transport]; successful
// pages are kept in an LRU cache keyed by request URL.
type TMDBService struct {
	baseURL      string
	imageBaseURL string
	language     string
	token        string
	httpClient   *http.Client
	cache        *lru.Cache[string, models.Page[models.Movie]]
}

// NewTMDBService creates a TMDB client. A missing access token is reported when a lookup runs,
// matching how the lookups surface errors to the user.
func NewTMDBService(opts TMDBOpts) (*TMDBService, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = tmdbBaseURL
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = tmdbImageBaseURL
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = tmdbCacheSize
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}

	cache, err := lru.New[string, models.Page[models.Movie]](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tmdb cache: %w", err)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
	client := &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: base.Transport},
		Timeout:   base.Timeout,
	}

	return &TMDBService{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		imageBaseURL: opts.ImageBaseURL,
		language:     opts.Language,
		token:        opts.AccessToken,
		httpClient:   client,
		cache:        cache,
	}, nil
}

func (s *TMDBService) Name() string {
	return "TMDB"
}

// ImageBaseURL returns the base URL poster paths are joined onto.
func (s *TMDBService) ImageBaseURL() string {
	return s.imageBaseURL
}

// SearchMovies searches movies by title.
//
// Calls GET /search/movie?query=&page=.
func (s *TMDBService) SearchMovies(ctx context.Context, query string, page int) (models.Page[models.Movie], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Page[models.Movie]{}, fmt.Errorf("%w: search query is empty", shared.ErrInvalidInput)
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", "false")
	params.Set("language", s.language)

	return s.moviePage(ctx, "/search/movie", params)
}

// TrendingMovies lists trending movies for a time window ("day" or "week").
//
// Calls GET /trending/movie/{window}?language=&page=.
func (s *TMDBService) TrendingMovies(ctx context.Context, window string, page int) (models.Page[models.Movie], error) {
	switch window {
	case "":
		window = "day"
	case "day", "week":
	default:
		return models.Page[models.Movie]{}, fmt.Errorf("%w: trending window must be day or week, got %q", shared.ErrInvalidArgument, window)
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("language", s.language)
	params.Set("page", strconv.Itoa(page))

	return s.moviePage(ctx, "/trending/movie/"+window, params)
}

// Movie retrieves a single movie by ID.
func (s *TMDBService) Movie(ctx context.Context, id int) (*models.Movie, error) {
	params := url.Values{}
	params.Set("language", s.language)

	var movie models.Movie
	if err := s.doRequest(ctx, fmt.Sprintf("/movie/%d", id), params, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (s *TMDBService) moviePage(ctx context.Context, endpoint string, params url.Values) (models.Page[models.Movie], error) {
	key := endpoint + "?" + params.Encode()
	if page, ok := s.cache.Get(key); ok {
		return page, nil
	}

	var response TMDBPaginatedMovies
	if err := s.doRequest(ctx, endpoint, params, &response); err != nil {
		return models.Page[models.Movie]{}, err
	}

	page := models.Page[models.Movie]{
		Items:      response.Results,
		Page:       response.Page,
		TotalPages: response.TotalPages,
		TotalCount: response.TotalResults,
	}
	if page.Items == nil {
		page.Items = []models.Movie{}
	}

	s.cache.Add(key, page)
	return page, nil
}

// doRequest performs an authenticated GET request to the TMDB API.
func (s *TMDBService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if s.token == "" {
		return fmt.Errorf("%w: TMDB access token is missing", shared.ErrMissingCredentials)
	}

	apiURL := s.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", shared.ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("%w: %v", shared.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if !shared.IsSuccess(resp.StatusCode) {
		var errResp TMDBError
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.StatusMessage != "" {
			return fmt.Errorf("%w: TMDB API error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.StatusMessage)
		}
		return fmt.Errorf("%w: TMDB API error: %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
