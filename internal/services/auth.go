package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// DefaultScopes are requested on login: profile, private playlist read, private playlist write.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-modify-private",
}

// AuthService runs the Spotify authorization code flow: building the authorize URL,
// exchanging the callback code for tokens, and refreshing access tokens.
//
// Token requests authenticate with HTTP Basic using the client ID and secret.
type AuthService struct {
	config *oauth2.Config
	client *http.Client
	logger *log.Logger
}

// AuthOption configures an [AuthService].
type AuthOption func(*AuthService)

// WithAuthEndpoint overrides the Accounts service URLs.
func WithAuthEndpoint(authURL, tokenURL string) AuthOption {
	return func(s *AuthService) {
		s.config.Endpoint.AuthURL = authURL
		s.config.Endpoint.TokenURL = tokenURL
	}
}

// WithTokenClient sets the HTTP client used for token requests.
func WithTokenClient(c *http.Client) AuthOption {
	return func(s *AuthService) { s.client = c }
}

// WithAuthLogger sets the logger for upstream failures.
func WithAuthLogger(l *log.Logger) AuthOption {
	return func(s *AuthService) { s.logger = l }
}

// WithScopes replaces [DefaultScopes].
func WithScopes(scopes ...string) AuthOption {
	return func(s *AuthService) { s.config.Scopes = scopes }
}

// NewAuthService creates an AuthService from the configured Spotify application credentials.
func NewAuthService(creds shared.SpotifyConfig, opts ...AuthOption) (*AuthService, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: spotify redirect_uri is required", shared.ErrMissingCredentials)
	}

	s := &AuthService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       DefaultScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RedirectURI returns the registered callback URL.
func (s *AuthService) RedirectURI() string {
	return s.config.RedirectURL
}

// AuthURL builds the authorize URL for state. The same state always yields the same URL.
func (s *AuthService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Login starts an authorization attempt with a fresh random state.
func (s *AuthService) Login() (*models.LoginRedirect, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}
	return &models.LoginRedirect{AuthRedirect: s.AuthURL(state), State: state}, nil
}

// Callback validates the callback parameters against the stored state and exchanges the code.
//
// The token endpoint is only contacted once both checks pass.
func (s *AuthService) Callback(ctx context.Context, code, state, storedState string) (*models.AuthSession, error) {
	if code == "" {
		return nil, shared.ErrMissingCode
	}
	if state == "" || state != storedState {
		return nil, shared.ErrStateMismatch
	}
	return s.Exchange(ctx, code, "")
}

// Exchange trades an authorization code for an access and refresh token.
//
// An empty redirectURI uses the configured one. Any upstream failure, malformed response, or
// response without a refresh token is reported as [shared.ErrInvalidToken].
func (s *AuthService) Exchange(ctx context.Context, code, redirectURI string) (*models.AuthSession, error) {
	if code == "" {
		return nil, shared.ErrMissingCode
	}

	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	token, err := s.config.Exchange(s.clientContext(ctx), code, opts...)
	if err != nil {
		s.logger.Warn("failed to get access and refresh tokens", "error", describeTokenError(err))
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: response has no refresh token", shared.ErrInvalidToken)
	}

	return sessionFromToken(token), nil
}

// Refresh obtains a new access token. The returned session carries the rotated refresh token
// when the upstream sent one, and the original otherwise.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", shared.ErrRefreshFailure)
	}

	token, err := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		s.logger.Warn("failed to refresh access token", "error", describeTokenError(err))
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailure, err)
	}

	return sessionFromToken(token), nil
}

// TokenSource returns a source that refreshes token when it expires.
func (s *AuthService) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return s.config.TokenSource(s.clientContext(ctx), token)
}

// NotifyingTokenSource wraps [AuthService.TokenSource] and calls onRefresh whenever the access
// token differs from the one handed out last, so rotated tokens can be persisted.
func (s *AuthService) NotifyingTokenSource(ctx context.Context, token *oauth2.Token, onRefresh func(*oauth2.Token)) oauth2.TokenSource {
	ts := &refreshableTokenSource{source: s.TokenSource(ctx, token), callback: onRefresh}
	if token != nil {
		ts.last = token.AccessToken
	}
	return ts
}

// refreshableTokenSource reports token changes from an underlying source.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

func (s *AuthService) clientContext(ctx context.Context) context.Context {
	if s.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

func sessionFromToken(token *oauth2.Token) *models.AuthSession {
	return &models.AuthSession{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
}

// SessionToken converts a session to an [oauth2.Token].
func SessionToken(session *models.AuthSession) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       session.ExpiresAt,
	}
}

// describeTokenError prefers the upstream's error code and description over the raw body.
func describeTokenError(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if apiErr := newAPIError(re.Response.StatusCode, re.Body); apiErr.Message != "" {
			return apiErr.Error()
		}
		return fmt.Sprintf("status %d %s", re.Response.StatusCode, re.ErrorCode)
	}
	return err.Error()
}
