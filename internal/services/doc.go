// Package services implements typed clients for the remote APIs reelx talks to.
//
// # Movie Provider
//
// [TMDBService] implements [MovieProvider] for The Movie Database. Requests carry the v4 read access
// token as a bearer token through an [oauth2.Transport]; pages are cached in an LRU keyed by request
// URL so paging back and forth does not refetch.
//
// # Backend
//
// [BackendService] implements [Backend] on top of the request pipeline. It never touches cookies or
// tokens itself: the pipeline decorates each call with the session credentials and replays it once
// after a refresh.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrMissingCredentials] : TMDB access token not configured
//   - [shared.ErrAPIRequest] : non-2xx response
//   - [shared.ErrInvalidInput] : input rejected before any request
//   - [shared.ErrCancelled] : context cancelled mid-request
//
// [UserMessage] turns an error into the text shown to the user, preferring the backend's own
// "detail" or "error" field.
package services
