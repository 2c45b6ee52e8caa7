package models

import (
	"fmt"
	"strings"
)

// RatingBand buckets a vote average for display.
type RatingBand string

const (
	RatingHigh RatingBand = "high"
	RatingMid  RatingBand = "mid"
	RatingLow  RatingBand = "low"
)

// Movie represents a movie from The Movie Database
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	Popularity  float64 `json:"popularity"`
}

// Year returns the release year, or "N/A" when the release date is unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return "N/A"
	}
	return m.ReleaseDate[:4]
}

// Rating returns the [RatingBand] for the movie's vote average.
func (m Movie) Rating() RatingBand {
	switch {
	case m.VoteAverage >= 7:
		return RatingHigh
	case m.VoteAverage >= 5:
		return RatingMid
	default:
		return RatingLow
	}
}

// PosterURL joins the poster path onto imageBase. Empty when the movie has no poster.
func (m Movie) PosterURL(imageBase string) string {
	if m.PosterPath == "" {
		return ""
	}
	return strings.TrimRight(imageBase, "/") + "/" + strings.TrimLeft(m.PosterPath, "/")
}

// PageURL returns the movie's page on themoviedb.org.
func (m Movie) PageURL() string {
	return fmt.Sprintf("https://www.themoviedb.org/movie/%d", m.ID)
}
