// Package pipeline sends requests to the backend API.
//
// Every request is described by an immutable [Descriptor] and sent as a [Call], which carries the
// one-replay budget for that descriptor. Before transmission the [Decorator] attaches the bearer
// credential and, for state-changing methods, the anti-forgery header. When a call comes back 401
// the [Coordinator] performs one silent refresh and replays the original descriptor; when the
// refresh itself fails it expires the session and navigates to the login route.
//
// Concurrent 401s can share a single refresh call (see [Options.Coalesce]).
package pipeline
