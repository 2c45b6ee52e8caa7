package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

func newTMDBServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /search/movie", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(TMDBError{StatusCode: 7, StatusMessage: "Invalid API key: You must be granted a valid key."})
			return
		}
		q := r.URL.Query()
		if q.Get("query") == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(TMDBPaginatedMovies{
			Page:         2,
			TotalPages:   3,
			TotalResults: 41,
			Results:      []models.Movie{{ID: 272, Title: "Batman Begins: " + q.Get("query") + " p" + q.Get("page"), ReleaseDate: "2005-06-10"}},
		})
	})

	mux.HandleFunc("GET /trending/movie/{window}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("language") != "en-US" {
			t.Errorf("expected language en-US, got %q", r.URL.Query().Get("language"))
		}
		json.NewEncoder(w).Encode(TMDBPaginatedMovies{
			Page:       1,
			TotalPages: 500,
			Results:    []models.Movie{{ID: 1, Title: r.PathValue("window")}, {ID: 2}, {ID: 3}},
		})
	})

	mux.HandleFunc("GET /movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.PathValue("id") != "272" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(TMDBError{StatusCode: 34, StatusMessage: "The resource you requested could not be found."})
			return
		}
		json.NewEncoder(w).Encode(models.Movie{ID: 272, Title: "Batman Begins", VoteAverage: 7.7})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestTMDB(t *testing.T, baseURL, token string) *TMDBService {
	t.Helper()
	svc, err := NewTMDBService(TMDBOpts{BaseURL: baseURL, AccessToken: token})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestTMDBService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			svc := newTestTMDB(t, "", "token")
			if svc.baseURL != tmdbBaseURL {
				t.Errorf("expected base URL %s, got %s", tmdbBaseURL, svc.baseURL)
			}
			if svc.ImageBaseURL() != tmdbImageBaseURL {
				t.Errorf("expected image base URL %s, got %s", tmdbImageBaseURL, svc.ImageBaseURL())
			}
			if svc.language != "en-US" {
				t.Errorf("expected language en-US, got %s", svc.language)
			}
			if svc.Name() != "TMDB" {
				t.Errorf("expected name TMDB, got %s", svc.Name())
			}
		})

		t.Run("Trims trailing slash", func(t *testing.T) {
			svc := newTestTMDB(t, "http://example.com/3/", "token")
			if svc.baseURL != "http://example.com/3" {
				t.Errorf("expected trimmed base URL, got %s", svc.baseURL)
			}
		})
	})

	t.Run("SearchMovies", func(t *testing.T) {
		t.Run("Sends bearer token and maps the page", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "test-token")

			page, err := svc.SearchMovies(ctx, "  batman ", 2)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Page != 2 || page.TotalPages != 3 || page.TotalCount != 41 {
				t.Errorf("unexpected page metadata: %+v", page)
			}
			if len(page.Items) != 1 || page.Items[0].Title != "Batman Begins: batman p2" {
				t.Errorf("unexpected items: %+v", page.Items)
			}
		})

		t.Run("Caches pages by request", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "test-token")

			for range 3 {
				if _, err := svc.SearchMovies(ctx, "batman", 1); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			}
			if _, err := svc.SearchMovies(ctx, "batman", 2); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if hits.Load() != 2 {
				t.Errorf("expected 2 upstream requests, got %d", hits.Load())
			}
		})

		t.Run("Empty query", func(t *testing.T) {
			svc := newTestTMDB(t, "http://unused", "test-token")
			if _, err := svc.SearchMovies(ctx, "   ", 1); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Missing token", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "")

			_, err := svc.SearchMovies(ctx, "batman", 1)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
			if hits.Load() != 0 {
				t.Error("expected no request without a token")
			}
		})

		t.Run("Rejected token", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "wrong")

			_, err := svc.SearchMovies(ctx, "batman", 1)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Server error is not cached", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "test-token")

			for range 2 {
				if _, err := svc.SearchMovies(ctx, "boom", 1); !errors.Is(err, shared.ErrAPIRequest) {
					t.Fatalf("expected ErrAPIRequest, got %v", err)
				}
			}
			if hits.Load() != 2 {
				t.Errorf("expected failures to be retried upstream, got %d requests", hits.Load())
			}
		})

		t.Run("Cancelled context", func(t *testing.T) {
			var hits atomic.Int32
			srv := newTMDBServer(t, &hits)
			svc := newTestTMDB(t, srv.URL, "test-token")

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			if _, err := svc.SearchMovies(cctx, "batman", 1); !errors.Is(err, shared.ErrCancelled) {
				t.Errorf("expected ErrCancelled, got %v", err)
			}
		})
	})

	t.Run("TrendingMovies", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTMDBServer(t, &hits)
		svc := newTestTMDB(t, srv.URL, "test-token")

		t.Run("Defaults to day", func(t *testing.T) {
			page, err := svc.TrendingMovies(ctx, "", 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(page.Items) != 3 || page.Items[0].Title != "day" {
				t.Errorf("unexpected items: %+v", page.Items)
			}
		})

		t.Run("Week", func(t *testing.T) {
			page, err := svc.TrendingMovies(ctx, "week", 1)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Items[0].Title != "week" {
				t.Errorf("expected week window, got %s", page.Items[0].Title)
			}
		})

		t.Run("Invalid window", func(t *testing.T) {
			if _, err := svc.TrendingMovies(ctx, "month", 1); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("Movie", func(t *testing.T) {
		var hits atomic.Int32
		srv := newTMDBServer(t, &hits)
		svc := newTestTMDB(t, srv.URL, "test-token")

		movie, err := svc.Movie(ctx, 272)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if movie.Title != "Batman Begins" || movie.Rating() != models.RatingHigh {
			t.Errorf("unexpected movie: %+v", movie)
		}

		if _, err := svc.Movie(ctx, 1); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for unknown movie, got %v", err)
		}
	})
}
