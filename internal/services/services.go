package services

import (
	"context"

	"github.com/desertthunder/spm/internal/models"
)

// PlaylistService is the slice of the Spotify Web API that export and import drive.
//
// Implementations act on behalf of exactly one authenticated user.
type PlaylistService interface {
	// Me returns the authenticated user's profile.
	Me(ctx context.Context) (*models.User, error)

	// UserPlaylists returns every playlist in the authenticated user's library.
	UserPlaylists(ctx context.Context) ([]models.SimplePlaylist, error)

	// Playlist returns playlist metadata without the track listing.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks returns the playlist's full track listing, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) (*models.TrackPage, error)

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, playlist models.NewPlaylist) (*models.Playlist, error)

	// AddTracks appends at most [MaxTracksPerRequest] track URIs to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// FollowPlaylist follows a playlist privately.
	FollowPlaylist(ctx context.Context, playlistID string) error
}

var _ PlaylistService = (*SpotifyClient)(nil)
