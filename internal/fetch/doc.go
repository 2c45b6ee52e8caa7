// Package fetch implements a debounced, cancellable, paginated lookup controller.
//
// A [Controller] owns the [State] of one data source. Query changes are debounced; every request
// it issues cancels the one before it, and results are committed only when they belong to the most
// recently issued request. [NewMovieSearch] and [NewTrending] instantiate it for free-text movie
// search and the fixed trending list.
package fetch
