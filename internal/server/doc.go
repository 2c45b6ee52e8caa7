// Package server provides HTTP routing, middleware and a development backend for the reelx client.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and mounts every route under a prefix.
//
// # Development Backend
//
// [DevServer] is an in-memory implementation of the backend contract the client depends on:
//   - /auth/login/, /auth/registration/ : set HS256 access and refresh JWTs as HttpOnly cookies
//   - /auth/user/ : the current user, from the bearer header or the access cookie
//   - /auth/token/refresh/ : a new access cookie from the refresh cookie
//   - /auth/logout/ : expires both token cookies
//   - /students/ : paginated, searchable, per-user student records
//   - /predict/, /predict-stock/ : deterministic stand-in predictions
//
// Unsafe methods must echo the csrf cookie in the configured header ([CSRF]); login and registration
// are exempt because a fresh client has no cookie yet. [EnsureCSRFCookie] hands one out on first contact.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
