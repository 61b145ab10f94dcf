// Package server provides the HTTP API and the CLI's OAuth callback handler.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering, and accepts
// route-only middleware for endpoints that need an authenticated caller.
//
// # API
//
//	GET  /auth/login           → {authRedirect}, sets the spotify_auth_state cookie
//	GET  /auth/callback        → {access_token, refresh_token} or 400 {error}
//	POST /auth/refresh_token   → {access_token, refresh_token} or 500 {error: "refresh_failure"}
//	GET  /api/playlists        → the caller's playlists
//	POST /api/playlists/export → ZIP archive holding export.json
//	POST /api/import           → import summary, or 400 {errorType, reason} for a rejected file
//
// The /api routes resolve the caller with GET /me using the token from the JSON body, the
// x-spotify-token header, or a bearer Authorization header.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the CLI login flow. It validates the state parameter (CSRF protection),
// exchanges the authorization code for tokens, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
package server
