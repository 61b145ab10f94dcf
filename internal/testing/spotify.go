package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/spm/internal/models"
)

const (
	// FakeAccessToken is the bearer token [FakeSpotify] accepts by default.
	FakeAccessToken = "fake-access-token"
	// FakeRefreshToken is issued by the fake token endpoint.
	FakeRefreshToken = "fake-refresh-token"
	// FakeCode is the only authorization code the fake token endpoint accepts.
	FakeCode = "fake-code"
	// FakeClientID and FakeClientSecret are the credentials the fake token endpoint expects.
	FakeClientID     = "fake-client-id"
	FakeClientSecret = "fake-client-secret"
	// RefreshedAccessToken is returned for refresh_token grants.
	RefreshedAccessToken = "refreshed-access-token"
)

// Failure makes a fake endpoint answer with Status and a Spotify error body carrying Message.
// A Raw body replaces the JSON error body.
type Failure struct {
	Status  int
	Message string
	Raw     string
}

// FakePlaylist is a playlist served by [FakeSpotify].
type FakePlaylist struct {
	models.Playlist
	Items []models.PlaylistTrackItem
}

// AddCall records one add-tracks request.
type AddCall struct {
	PlaylistID string
	URIs       []string
}

// TokenRequest records one call to the token endpoint.
type TokenRequest struct {
	Form      url.Values
	BasicUser string
	BasicPass string
}

// FakeSpotify serves the subset of the Spotify Accounts service and Web API used by spm.
//
// The Web API lives under /v1 and the token endpoint at /api/token. All fields guarded by the
// mutex are safe to read after the code under test returns.
type FakeSpotify struct {
	Server *httptest.Server
	UserID string

	// AccessToken is the bearer the Web API accepts. Requests with any other token get a 401.
	AccessToken string

	mu        sync.Mutex
	playlists map[string]*FakePlaylist
	order     []string
	created   []models.NewPlaylist
	newIDs    map[string]string
	adds      []AddCall
	follows   []string
	tokens    []TokenRequest
	requests  []string

	metadataFailures map[string]Failure
	tracksFailures   map[string]Failure
	createFailures   map[string]Failure
	addFailures      map[string]map[int]Failure
	followFailures   map[string]Failure
	tokenFailure     *Failure
	omitRefresh      bool
}

// NewFakeSpotify starts a fake for userID and closes it when the test ends.
func NewFakeSpotify(t *testing.T, userID string) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		UserID:           userID,
		AccessToken:      FakeAccessToken,
		playlists:        make(map[string]*FakePlaylist),
		newIDs:           make(map[string]string),
		metadataFailures: make(map[string]Failure),
		tracksFailures:   make(map[string]Failure),
		createFailures:   make(map[string]Failure),
		addFailures:      make(map[string]map[int]Failure),
		followFailures:   make(map[string]Failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/me", f.authorized(f.handleMe))
	mux.HandleFunc("GET /v1/me/playlists", f.authorized(f.handleUserPlaylists))
	mux.HandleFunc("GET /v1/playlists/{id}", f.authorized(f.handlePlaylist))
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.authorized(f.handleTracks))
	mux.HandleFunc("POST /v1/users/{user}/playlists", f.authorized(f.handleCreate))
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", f.authorized(f.handleAdd))
	mux.HandleFunc("PUT /v1/playlists/{id}/followers", f.authorized(f.handleFollow))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the fake's root URL.
func (f *FakeSpotify) URL() string { return f.Server.URL }

// APIURL is the Web API base URL.
func (f *FakeSpotify) APIURL() string { return f.Server.URL + "/v1" }

// TokenURL is the token endpoint.
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/api/token" }

// AuthorizeURL is the authorize endpoint. The fake never serves it.
func (f *FakeSpotify) AuthorizeURL() string { return f.Server.URL + "/authorize" }

// AddPlaylist registers a playlist with n generated tracks.
func (f *FakeSpotify) AddPlaylist(id, name, ownerID string, n int) *FakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()

	desc := "about " + name
	p := &FakePlaylist{
		Playlist: models.Playlist{
			ID:          id,
			Name:        name,
			Description: &desc,
			Owner:       models.User{ID: ownerID, Href: f.Server.URL + "/v1/users/" + ownerID, Type: "user"},
			Href:        f.Server.URL + "/v1/playlists/" + id,
			URI:         "spotify:playlist:" + id,
			SnapshotID:  "snap-" + id,
			Type:        "playlist",
		},
		Items: MakeTracks(id, n),
	}
	f.playlists[id] = p
	f.order = append(f.order, id)
	return p
}

// FailMetadata makes `GET /playlists/{id}` fail.
func (f *FakeSpotify) FailMetadata(id string, fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataFailures[id] = fail
}

// FailTracks makes `GET /playlists/{id}/tracks` fail.
func (f *FakeSpotify) FailTracks(id string, fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracksFailures[id] = fail
}

// FailCreate makes creating a playlist with this name fail.
func (f *FakeSpotify) FailCreate(name string, fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFailures[name] = fail
}

// FailAdd makes the chunk-th (zero-based) add-tracks request to the playlist created with this name fail.
func (f *FakeSpotify) FailAdd(name string, chunk int, fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addFailures[name] == nil {
		f.addFailures[name] = make(map[int]Failure)
	}
	f.addFailures[name][chunk] = fail
}

// FailFollow makes following the playlist fail.
func (f *FakeSpotify) FailFollow(id string, fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followFailures[id] = fail
}

// FailToken makes every token request fail.
func (f *FakeSpotify) FailToken(fail Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenFailure = &fail
}

// OmitRefreshToken makes code exchanges answer without a refresh token.
func (f *FakeSpotify) OmitRefreshToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitRefresh = true
}

// Created returns the bodies of successful create requests in arrival order.
func (f *FakeSpotify) Created() []models.NewPlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.NewPlaylist(nil), f.created...)
}

// Adds returns every add-tracks request in arrival order, failed ones included.
func (f *FakeSpotify) Adds() []AddCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AddCall(nil), f.adds...)
}

// AddsFor returns the add-tracks requests for the playlist created with name.
func (f *FakeSpotify) AddsFor(name string) []AddCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newIDs[name]
	var calls []AddCall
	for _, c := range f.adds {
		if c.PlaylistID == id {
			calls = append(calls, c)
		}
	}
	return calls
}

// Follows returns the IDs of follow requests in arrival order, failed ones included.
func (f *FakeSpotify) Follows() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.follows...)
}

// TokenRequests returns every token endpoint request.
func (f *FakeSpotify) TokenRequests() []TokenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenRequest(nil), f.tokens...)
}

// Requests returns "METHOD path" for every Web API request.
func (f *FakeSpotify) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeSpotify) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		token := f.AccessToken
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+token {
			writeFailure(w, Failure{Status: http.StatusUnauthorized, Message: "Invalid access token"})
			return
		}
		next(w, r)
	}
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, pass, _ := r.BasicAuth()

	f.mu.Lock()
	f.tokens = append(f.tokens, TokenRequest{Form: r.PostForm, BasicUser: user, BasicPass: pass})
	failure := f.tokenFailure
	omitRefresh := f.omitRefresh
	f.mu.Unlock()

	if failure != nil {
		writeRaw(w, failure.Status, failure.Raw, fmt.Sprintf(`{"error":"invalid_grant","error_description":%q}`, failure.Message))
		return
	}
	if user != FakeClientID || pass != FakeClientSecret {
		writeRaw(w, http.StatusBadRequest, "", `{"error":"invalid_client","error_description":"Invalid client"}`)
		return
	}

	resp := map[string]any{"token_type": "Bearer", "expires_in": 3600, "scope": "playlist-read-private"}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != FakeCode {
			writeRaw(w, http.StatusBadRequest, "", `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)
			return
		}
		resp["access_token"] = FakeAccessToken
		if !omitRefresh {
			resp["refresh_token"] = FakeRefreshToken
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "" {
			writeRaw(w, http.StatusBadRequest, "", `{"error":"invalid_request","error_description":"refresh_token must be supplied"}`)
			return
		}
		resp["access_token"] = RefreshedAccessToken
	default:
		writeRaw(w, http.StatusBadRequest, "", `{"error":"unsupported_grant_type"}`)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) handleMe(w http.ResponseWriter, r *http.Request) {
	name := "Test " + f.UserID
	writeJSON(w, http.StatusOK, models.User{ID: f.UserID, DisplayName: &name, Href: f.Server.URL + "/v1/users/" + f.UserID, Type: "user"})
}

func (f *FakeSpotify) handleUserPlaylists(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	var all []models.SimplePlaylist
	for _, id := range f.order {
		p := f.playlists[id]
		all = append(all, models.SimplePlaylist{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Owner:       p.Owner,
			Href:        p.Href,
			URI:         p.URI,
			SnapshotID:  p.SnapshotID,
			Tracks:      models.TrackCount{Href: p.Href + "/tracks", Total: len(p.Items)},
		})
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(r, f.Server.URL+r.URL.Path, all))
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	p, ok := f.playlists[id]
	failure, failed := f.metadataFailures[id]
	f.mu.Unlock()

	switch {
	case failed:
		writeFailure(w, failure)
	case !ok:
		writeFailure(w, Failure{Status: http.StatusNotFound, Message: "Not found."})
	case r.URL.Query().Get("fields") != "(!tracks)":
		writeFailure(w, Failure{Status: http.StatusBadRequest, Message: "expected fields=(!tracks)"})
	default:
		writeJSON(w, http.StatusOK, p.Playlist)
	}
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	p, ok := f.playlists[id]
	failure, failed := f.tracksFailures[id]
	var items []models.PlaylistTrackItem
	if ok {
		items = append(items, p.Items...)
	}
	f.mu.Unlock()

	switch {
	case failed:
		writeFailure(w, failure)
	case !ok:
		writeFailure(w, Failure{Status: http.StatusNotFound, Message: "Not found."})
	default:
		writeJSON(w, http.StatusOK, paginate(r, f.Server.URL+r.URL.Path, items))
	}
}

func (f *FakeSpotify) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body models.NewPlaylist
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, Failure{Status: http.StatusBadRequest, Message: "Error parsing JSON."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if r.PathValue("user") != f.UserID {
		writeFailure(w, Failure{Status: http.StatusForbidden, Message: "You cannot create a playlist for another user"})
		return
	}
	if failure, ok := f.createFailures[body.Name]; ok {
		writeFailure(w, failure)
		return
	}

	id := "new-" + strconv.Itoa(len(f.created)+1)
	f.created = append(f.created, body)
	f.newIDs[body.Name] = id

	desc := body.Description
	writeJSON(w, http.StatusCreated, models.Playlist{
		ID:          id,
		Name:        body.Name,
		Description: &desc,
		Owner:       models.User{ID: f.UserID},
		Href:        f.Server.URL + "/v1/playlists/" + id,
	})
}

func (f *FakeSpotify) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, Failure{Status: http.StatusBadRequest, Message: "Error parsing JSON."})
		return
	}
	if len(body.URIs) > 100 {
		writeFailure(w, Failure{Status: http.StatusBadRequest, Message: "You can add a maximum of 100 tracks per request."})
		return
	}

	id := r.PathValue("id")

	f.mu.Lock()
	defer f.mu.Unlock()

	chunk := 0
	for _, c := range f.adds {
		if c.PlaylistID == id {
			chunk++
		}
	}
	f.adds = append(f.adds, AddCall{PlaylistID: id, URIs: body.URIs})

	for name, newID := range f.newIDs {
		if newID != id {
			continue
		}
		if failure, ok := f.addFailures[name][chunk]; ok {
			writeFailure(w, failure)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"snapshot_id": "snap-" + id + "-" + strconv.Itoa(chunk)})
}

func (f *FakeSpotify) handleFollow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.follows = append(f.follows, id)
	failure, failed := f.followFailures[id]
	f.mu.Unlock()

	switch {
	case failed:
		writeFailure(w, failure)
	case string(body) != `{"public":false}`:
		writeFailure(w, Failure{Status: http.StatusBadRequest, Message: "expected a private follow"})
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// MakeTracks generates n playlist entries with distinct URIs prefixed by prefix.
func MakeTracks(prefix string, n int) []models.PlaylistTrackItem {
	items := make([]models.PlaylistTrackItem, 0, n)
	for i := range n {
		id := fmt.Sprintf("%s-t%d", prefix, i)
		items = append(items, models.PlaylistTrackItem{
			AddedAt: "2024-01-01T00:00:00Z",
			Track: &models.Track{
				ID:      id,
				Name:    "Track " + id,
				Href:    "https://api.spotify.com/v1/tracks/" + id,
				URI:     "spotify:track:" + id,
				Artists: []models.Artist{{ID: "a-" + id, Name: "Artist " + id}},
			},
		})
	}
	return items
}

// URIs returns the track URIs of items in order.
func URIs(items []models.PlaylistTrackItem) []string {
	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.Track.URI)
	}
	return uris
}

func paginate[T any](r *http.Request, base string, all []T) models.Page[T] {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	page := models.Page[T]{Href: base, Items: []T{}, Limit: limit, Offset: offset, Total: len(all)}
	for i := offset; i < offset+limit && i < len(all); i++ {
		page.Items = append(page.Items, all[i])
	}
	if offset+limit < len(all) {
		next := fmt.Sprintf("%s?offset=%d&limit=%d", base, offset+limit, limit)
		page.Next = &next
	}
	return page
}

func writeFailure(w http.ResponseWriter, fail Failure) {
	body, _ := json.Marshal(map[string]any{"error": map[string]any{"status": fail.Status, "message": fail.Message}})
	writeRaw(w, fail.Status, fail.Raw, string(body))
}

func writeRaw(w http.ResponseWriter, status int, raw, fallback string) {
	body := fallback
	if raw != "" {
		body = raw
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
