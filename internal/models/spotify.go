package models

// ExternalURLs holds known external URLs for a Spotify object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Followers describes the follower count of a user or playlist.
type Followers struct {
	Href  *string `json:"href"`
	Total int     `json:"total"`
}

// Image is cover art or a profile picture.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// User is a Spotify account. Playlist owners use the same shape without the private fields.
type User struct {
	ID           string       `json:"id"`
	DisplayName  *string      `json:"display_name"`
	Email        string       `json:"email,omitempty"`
	Country      string       `json:"country,omitempty"`
	Product      string       `json:"product,omitempty"`
	Href         string       `json:"href"`
	URI          string       `json:"uri"`
	Type         string       `json:"type,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	Followers    *Followers   `json:"followers,omitempty"`
	Images       []Image      `json:"images,omitempty"`
}

// Name returns the display name, falling back to the user ID.
func (u User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.ID
}

// Artist is a simplified artist object.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Href         string       `json:"href"`
	URI          string       `json:"uri"`
	Type         string       `json:"type,omitempty"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Album is a simplified album object.
type Album struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	AlbumType            string       `json:"album_type"`
	Artists              []Artist     `json:"artists"`
	Href                 string       `json:"href"`
	URI                  string       `json:"uri"`
	Images               []Image      `json:"images"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	TotalTracks          int          `json:"total_tracks"`
	Type                 string       `json:"type,omitempty"`
	ExternalURLs         ExternalURLs `json:"external_urls"`
}

// ExternalIDs holds industry identifiers for a track.
type ExternalIDs struct {
	ISRC string `json:"isrc,omitempty"`
	EAN  string `json:"ean,omitempty"`
	UPC  string `json:"upc,omitempty"`
}

// Track is a full track object.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Album        Album        `json:"album"`
	Artists      []Artist     `json:"artists"`
	DiscNumber   int          `json:"disc_number"`
	DurationMs   int          `json:"duration_ms"`
	Explicit     bool         `json:"explicit"`
	ExternalIDs  ExternalIDs  `json:"external_ids"`
	ExternalURLs ExternalURLs `json:"external_urls"`
	Href         string       `json:"href"`
	IsLocal      bool         `json:"is_local"`
	Popularity   int          `json:"popularity"`
	PreviewURL   *string      `json:"preview_url"`
	TrackNumber  int          `json:"track_number"`
	Type         string       `json:"type,omitempty"`
	URI          string       `json:"uri"`
}

// ArtistNames returns the names of the track's artists in credit order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// PlaylistTrackItem is one entry of a playlist's track collection.
//
// Track is nil when the upstream no longer serves the referenced item.
type PlaylistTrackItem struct {
	AddedAt string `json:"added_at"`
	AddedBy *User  `json:"added_by"`
	IsLocal bool   `json:"is_local"`
	Track   *Track `json:"track"`
}

// Page is one page of a cursor-paginated Spotify collection.
type Page[T any] struct {
	Href     string  `json:"href"`
	Items    []T     `json:"items"`
	Limit    int     `json:"limit"`
	Next     *string `json:"next"`
	Offset   int     `json:"offset"`
	Previous *string `json:"previous"`
	Total    int     `json:"total"`
}

// TrackPage is a page (or an accumulated listing) of playlist entries.
type TrackPage = Page[PlaylistTrackItem]

// Playlist is playlist metadata as returned with `fields=(!tracks)`.
type Playlist struct {
	ID            string       `json:"id" validate:"required"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Collaborative bool         `json:"collaborative"`
	Public        *bool        `json:"public"`
	Owner         User         `json:"owner"`
	Href          string       `json:"href"`
	URI           string       `json:"uri"`
	SnapshotID    string       `json:"snapshot_id"`
	Images        []Image      `json:"images"`
	Followers     Followers    `json:"followers"`
	ExternalURLs  ExternalURLs `json:"external_urls"`
	Type          string       `json:"type,omitempty"`
}

// DescriptionText returns the description or an empty string.
func (p Playlist) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// TrackCount references a playlist's track collection without its items.
type TrackCount struct {
	Href  string `json:"href"`
	Total int    `json:"total"`
}

// SimplePlaylist is an entry of the current user's playlist listing.
type SimplePlaylist struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Collaborative bool         `json:"collaborative"`
	Public        *bool        `json:"public"`
	Owner         User         `json:"owner"`
	Href          string       `json:"href"`
	URI           string       `json:"uri"`
	SnapshotID    string       `json:"snapshot_id"`
	Tracks        TrackCount   `json:"tracks"`
	ExternalURLs  ExternalURLs `json:"external_urls"`
}

// Ref returns the export selector for this playlist.
func (p SimplePlaylist) Ref() PlaylistRef {
	return PlaylistRef{ID: p.ID, OwnerID: p.Owner.ID}
}

// NewPlaylist is the body of `POST /users/{id}/playlists`.
type NewPlaylist struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Public        bool   `json:"public"`
	Collaborative bool   `json:"collaborative"`
}
