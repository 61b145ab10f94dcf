package models

import "encoding/json"

// PlaylistRef selects a playlist for export.
type PlaylistRef struct {
	ID      string `json:"id" validate:"required"`
	OwnerID string `json:"ownerId" validate:"required"`
}

// APIErrorBody is the `error` object Spotify returns on failed requests.
type APIErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// HydratedPlaylist is one entry of an export document.
//
// Tracks is set only for playlists the exporting user owns; a nil Tracks means the track
// listing was not fetched, which is distinct from an owned playlist with no tracks.
// Error is set when the playlist could not be hydrated; such entries carry only the ID.
type HydratedPlaylist struct {
	Playlist
	Tracks *TrackPage    `json:"tracks,omitempty"`
	Error  *APIErrorBody `json:"error,omitempty"`
}

// MarshalJSON writes error records as `{id, error}` and everything else in the upstream shape.
func (p HydratedPlaylist) MarshalJSON() ([]byte, error) {
	if p.Failed() {
		return json.Marshal(struct {
			ID    string        `json:"id"`
			Error *APIErrorBody `json:"error"`
		}{p.ID, p.Error})
	}
	type plain HydratedPlaylist
	return json.Marshal(plain(p))
}

// Owned reports whether the entry carries a track listing.
func (p HydratedPlaylist) Owned() bool {
	return p.Tracks != nil
}

// Failed reports whether the entry is an error record.
func (p HydratedPlaylist) Failed() bool {
	return p.Error != nil
}

// NewFailedPlaylist builds an error record for a playlist that could not be hydrated.
func NewFailedPlaylist(id string, status int, message string) HydratedPlaylist {
	return HydratedPlaylist{
		Playlist: Playlist{ID: id},
		Error:    &APIErrorBody{Status: status, Message: message},
	}
}

// SplitFailed partitions entries into hydrated playlists and error records, keeping order.
func SplitFailed(playlists []HydratedPlaylist) (ok, failed []HydratedPlaylist) {
	for _, p := range playlists {
		if p.Failed() {
			failed = append(failed, p)
		} else {
			ok = append(ok, p)
		}
	}
	return ok, failed
}
