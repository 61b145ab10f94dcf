package models

import (
	"encoding/json"
	"fmt"
)

// ImportErrorType tags the variant of an [ImportError].
type ImportErrorType string

const (
	NotCreated    ImportErrorType = "not_created"
	TrackNotAdded ImportErrorType = "track_not_added"
	NotFollowed   ImportErrorType = "not_followed"
	UnknownError  ImportErrorType = "unknown"
)

// Unknown is the placeholder identity used by summary records.
const Unknown = "unknown"

// ImportError is a per-item diagnostic produced by an import run.
//
// Which fields are meaningful depends on Type: track fields only for [TrackNotAdded],
// playlist fields for everything except [UnknownError].
type ImportError struct {
	Type         ImportErrorType
	PlaylistHref string
	PlaylistName string
	TrackHref    string
	TrackName    string
	TrackArtists []string
	Reason       string
}

type playlistErrorJSON struct {
	ErrorType    ImportErrorType `json:"errorType"`
	PlaylistHref string          `json:"playlistHref"`
	PlaylistName string          `json:"playlistName"`
	Reason       string          `json:"reason"`
}

type trackErrorJSON struct {
	ErrorType    ImportErrorType `json:"errorType"`
	PlaylistHref string          `json:"playlistHref"`
	PlaylistName string          `json:"playlistName"`
	TrackHref    string          `json:"trackHref"`
	TrackName    string          `json:"trackName"`
	TrackArtists []string        `json:"trackArtists"`
	Reason       string          `json:"reason"`
}

type unknownErrorJSON struct {
	ErrorType ImportErrorType `json:"errorType"`
	Reason    string          `json:"reason"`
}

// MarshalJSON writes only the keys that belong to the error's variant.
func (e ImportError) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case NotCreated, NotFollowed:
		return json.Marshal(playlistErrorJSON{e.Type, e.PlaylistHref, e.PlaylistName, e.Reason})
	case TrackNotAdded:
		artists := e.TrackArtists
		if artists == nil {
			artists = []string{}
		}
		return json.Marshal(trackErrorJSON{e.Type, e.PlaylistHref, e.PlaylistName, e.TrackHref, e.TrackName, artists, e.Reason})
	case UnknownError:
		return json.Marshal(unknownErrorJSON{e.Type, e.Reason})
	default:
		return nil, fmt.Errorf("unknown import error type %q", e.Type)
	}
}

// UnmarshalJSON reads any variant.
func (e *ImportError) UnmarshalJSON(data []byte) error {
	var raw trackErrorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ImportError{
		Type:         raw.ErrorType,
		PlaylistHref: raw.PlaylistHref,
		PlaylistName: raw.PlaylistName,
		TrackHref:    raw.TrackHref,
		TrackName:    raw.TrackName,
		TrackArtists: raw.TrackArtists,
		Reason:       raw.Reason,
	}
	return nil
}

// Error implements error so records can be logged and wrapped.
func (e ImportError) Error() string {
	switch e.Type {
	case TrackNotAdded:
		return fmt.Sprintf("%s: %s (%s): %s", e.Type, e.TrackName, e.PlaylistName, e.Reason)
	case UnknownError:
		return fmt.Sprintf("%s: %s", e.Type, e.Reason)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Type, e.PlaylistName, e.Reason)
	}
}

// NewNotCreated reports a playlist that could not be created.
func NewNotCreated(p Playlist, reason string) ImportError {
	return ImportError{Type: NotCreated, PlaylistHref: p.Href, PlaylistName: p.Name, Reason: reason}
}

// NewNotFollowed reports a playlist that could not be followed.
func NewNotFollowed(p Playlist, reason string) ImportError {
	return ImportError{Type: NotFollowed, PlaylistHref: p.Href, PlaylistName: p.Name, Reason: reason}
}

// NewTrackNotAdded reports a single track that could not be added to its new playlist.
func NewTrackNotAdded(p Playlist, item PlaylistTrackItem, reason string) ImportError {
	e := ImportError{Type: TrackNotAdded, PlaylistHref: p.Href, PlaylistName: p.Name, TrackArtists: []string{}, Reason: reason}
	if item.Track != nil {
		e.TrackHref = item.Track.Href
		e.TrackName = item.Track.Name
		e.TrackArtists = item.Track.ArtistNames()
	}
	return e
}

// NewUnknown reports a failure that could not be attributed to an item.
func NewUnknown(reason string) ImportError {
	return ImportError{Type: UnknownError, Reason: reason}
}

// NewPlaylistShortfall is the trailing record added when fewer playlists were imported than found.
func NewPlaylistShortfall(imported, found int) ImportError {
	return ImportError{
		Type:         NotCreated,
		PlaylistHref: Unknown,
		PlaylistName: Unknown,
		Reason:       fmt.Sprintf("Only %d of %d playlists were imported.", imported, found),
	}
}

// NewTrackShortfall is the trailing record added when fewer tracks were imported than found.
func NewTrackShortfall(imported, found int) ImportError {
	return ImportError{
		Type:         TrackNotAdded,
		PlaylistHref: Unknown,
		PlaylistName: Unknown,
		TrackHref:    Unknown,
		TrackName:    Unknown,
		TrackArtists: []string{},
		Reason:       fmt.Sprintf("Only %d of %d tracks were imported.", imported, found),
	}
}

// ImportSummary is the result of an import run. Errors is nil for a clean import.
type ImportSummary struct {
	PlaylistsCount int           `json:"playlistsCount"`
	TracksCount    int           `json:"tracksCount"`
	Errors         []ImportError `json:"errors"`
}

// Clean reports whether the import produced no diagnostics.
func (s ImportSummary) Clean() bool {
	return len(s.Errors) == 0
}

// CountByType tallies errors per variant.
func (s ImportSummary) CountByType() map[ImportErrorType]int {
	counts := make(map[ImportErrorType]int)
	for _, e := range s.Errors {
		counts[e.Type]++
	}
	return counts
}
