// Package services talks to Spotify: the Accounts service for authorization and the Web API
// for playlists.
//
// # Authorization
//
// [AuthService] wraps an [oauth2.Config] for the authorization code flow. [AuthService.Callback]
// checks the callback's code and state before any network I/O and maps upstream failures to
// [shared.ErrInvalidToken] and [shared.ErrRefreshFailure].
//
// # Web API
//
// [SpotifyClient] implements [PlaylistService] for a single user. It is built from a token source,
// so a static token (server requests) and an auto-refreshing one (the CLI) look the same to callers.
// Requests can be throttled with a [rate.Limiter].
//
// # Pagination
//
// [FetchAll] follows `next` cursors sequentially and stops on a page cap or a repeated cursor.
//
// # Error Handling
//
// Every failed call returns one of two typed errors:
//   - [*APIError] : the upstream answered with a non-2xx status; Message carries its explanation
//   - [*TransportError] : no usable response (network, context, decoding)
//
// Both unwrap to shared sentinels where one applies, so callers can use [errors.Is].
package services
