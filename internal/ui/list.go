package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/reelx/internal/models"
)

var _ list.Item = movieItem{}

// movieItem wraps [models.Movie] to implement [list.Item].
type movieItem struct {
	movie models.Movie
}

func (i movieItem) FilterValue() string { return i.movie.Title }
func (i movieItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.movie.Title, i.movie.Year())
}
func (i movieItem) Description() string {
	desc := styles.rating(i.movie, fmt.Sprintf("★ %.1f", i.movie.VoteAverage))
	if i.movie.Overview != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.movie.Overview)
	}
	return desc
}

func movieItems(movies []models.Movie) []list.Item {
	items := make([]list.Item, len(movies))
	for i, m := range movies {
		items[i] = movieItem{movie: m}
	}
	return items
}
