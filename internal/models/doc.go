// Package models defines the data model for the spm playlist export/import engine.
//
// The package contains three categories of types:
//
// 1. Spotify Web API resources, decoded from and re-encoded to the upstream wire format
//   - [User] : a Spotify account, as returned by `GET /me` or embedded as a playlist owner
//   - [Playlist] : playlist metadata without its track listing
//   - [PlaylistTrackItem] / [Track] : a playlist entry and the track it points at
//   - [Page] : one page of a cursor-paginated collection
//
// 2. Engine documents
//   - [PlaylistRef] : the (id, owner) pair that selects a playlist for export
//   - [HydratedPlaylist] : an entry of an export document, with tracks only when owned
//   - [ImportError] / [ImportSummary] : the outcome of an import run
//   - [AuthSession] : the token pair produced by the authorization code flow
//
// 3. Persistent records
//   - [Run] / [RunError] : export and import history stored in sqlite
package models
