// Spotify Web API client
//
// Response types are defined in [models] and follow https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// MaxTracksPerRequest is the upstream limit on URIs per add-tracks request.
	MaxTracksPerRequest = 100

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 1 << 20
)

// SpotifyClient calls the Spotify Web API as a single user.
//
// Each client is built from that user's token; nothing is shared between clients except
// what the caller passes in through options.
type SpotifyClient struct {
	baseURL string
	host    string
	client  *http.Client
	limiter *rate.Limiter
	pager   PagerOpts
	logger  *log.Logger
}

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pager      PagerOpts
	logger     *log.Logger
}

// ClientOption configures a [SpotifyClient].
type ClientOption func(*clientOptions)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the base client the bearer transport wraps.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithLimiter throttles requests. A limiter may be shared between clients.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(o *clientOptions) { o.limiter = l }
}

// WithRateLimit throttles requests to rps per second. Zero disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(o *clientOptions) {
		if rps > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPager sets pagination options for list endpoints.
func WithPager(p PagerOpts) ClientOption {
	return func(o *clientOptions) { o.pager = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// NewSpotifyClient creates a client that authenticates every request with ts.
func NewSpotifyClient(ctx context.Context, ts oauth2.TokenSource, opts ...ClientOption) *SpotifyClient {
	o := clientOptions{baseURL: spotifyBaseURL, logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	host := ""
	if u, err := url.Parse(o.baseURL); err == nil {
		host = u.Host
	}

	return &SpotifyClient{
		baseURL: o.baseURL,
		host:    host,
		client:  oauth2.NewClient(ctx, ts),
		limiter: o.limiter,
		pager:   o.pager,
		logger:  o.logger,
	}
}

// NewSpotifyClientFromToken creates a client for a bare access token.
func NewSpotifyClientFromToken(ctx context.Context, accessToken string, opts ...ClientOption) *SpotifyClient {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return NewSpotifyClient(ctx, ts, opts...)
}

// resolve turns an endpoint path into an absolute URL. Absolute URLs must target the API host.
func (s *SpotifyClient) resolve(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return s.baseURL + endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if u.Host != s.host {
		return "", fmt.Errorf("%w: refusing to follow URL on host %q", shared.ErrInvalidArgument, u.Host)
	}
	return endpoint, nil
}

// doRequest performs an authenticated request, encoding body as JSON and decoding the response into result.
//
// Non-2xx responses become [*APIError]; everything else that fails becomes [*TransportError].
func (s *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	op := method + " " + endpoint

	apiURL, err := s.resolve(endpoint)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("spotify request", "method", method, "url", apiURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(resp.StatusCode, data)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// Me retrieves the current authenticated user's profile.
func (s *SpotifyClient) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves every playlist in the current user's library.
func (s *SpotifyClient) UserPlaylists(ctx context.Context) ([]models.SimplePlaylist, error) {
	page, err := FetchAll(ctx, pageFetcher[models.SimplePlaylist](s), s.baseURL+"/me/playlists", s.pager)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Playlist retrieves playlist metadata, excluding the track listing.
func (s *SpotifyClient) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?%s", url.PathEscape(playlistID), url.Values{"fields": {"(!tracks)"}}.Encode())

	var playlist models.Playlist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracksPage retrieves one page of a playlist's tracks from an absolute page URL.
func (s *SpotifyClient) PlaylistTracksPage(ctx context.Context, pageURL string) (*models.TrackPage, error) {
	return pageFetcher[models.PlaylistTrackItem](s)(ctx, pageURL)
}

// PlaylistTracks retrieves every track in a playlist.
func (s *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) (*models.TrackPage, error) {
	seed := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlistID))
	return FetchAll[models.PlaylistTrackItem](ctx, s.PlaylistTracksPage, seed, s.pager)
}

// CreatePlaylist creates a playlist owned by userID.
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, userID string, playlist models.NewPlaylist) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))

	var created models.Playlist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, playlist, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// AddTracks appends uris to the end of a playlist.
func (s *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs", shared.ErrInvalidArgument)
	}
	if len(uris) > MaxTracksPerRequest {
		return fmt.Errorf("%w: %d URIs, limit is %d", shared.ErrTooManyTracks, len(uris), MaxTracksPerRequest)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := struct {
		URIs []string `json:"uris"`
	}{uris}
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// FollowPlaylist follows a playlist without adding it to the user's public profile.
func (s *SpotifyClient) FollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	body := struct {
		Public bool `json:"public"`
	}{false}
	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

func pageFetcher[T any](s *SpotifyClient) PageFunc[T] {
	return func(ctx context.Context, pageURL string) (*models.Page[T], error) {
		var page models.Page[T]
		if err := s.doRequest(ctx, http.MethodGet, pageURL, nil, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}
}
