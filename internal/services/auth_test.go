package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/shared"
	tu "github.com/desertthunder/spm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestAuth(t *testing.T, fake *tu.FakeSpotify) *AuthService {
	t.Helper()
	auth, err := NewAuthService(shared.SpotifyConfig{
		ClientID:     tu.FakeClientID,
		ClientSecret: tu.FakeClientSecret,
		RedirectURI:  "http://127.0.0.1:3000/callback",
	}, WithAuthEndpoint(fake.AuthorizeURL(), fake.TokenURL()), WithTokenClient(fake.Server.Client()))
	require.NoError(t, err)
	return auth
}

func TestNewAuthService(t *testing.T) {
	t.Run("requires client credentials", func(t *testing.T) {
		_, err := NewAuthService(shared.SpotifyConfig{ClientID: "id", RedirectURI: "http://x/cb"})
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("requires redirect uri", func(t *testing.T) {
		_, err := NewAuthService(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})
}

func TestAuthURL(t *testing.T) {
	auth, err := NewAuthService(shared.SpotifyConfig{ClientID: "cid", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback"})
	require.NoError(t, err)

	t.Run("carries the authorize parameters", func(t *testing.T) {
		u, err := url.Parse(auth.AuthURL("abc123"))
		require.NoError(t, err)

		assert.Equal(t, "accounts.spotify.com", u.Host)
		assert.Equal(t, "/authorize", u.Path)
		q := u.Query()
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "cid", q.Get("client_id"))
		assert.Equal(t, "user-read-private user-read-email playlist-read-private playlist-modify-private", q.Get("scope"))
		assert.Equal(t, "http://127.0.0.1:3000/callback", q.Get("redirect_uri"))
		assert.Equal(t, "abc123", q.Get("state"))
	})

	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, auth.AuthURL("s"), auth.AuthURL("s"))
	})

	t.Run("Login uses a fresh state", func(t *testing.T) {
		first, err := auth.Login()
		require.NoError(t, err)
		second, err := auth.Login()
		require.NoError(t, err)

		assert.Len(t, first.State, shared.StateLength)
		assert.NotEqual(t, first.State, second.State)
		assert.Equal(t, auth.AuthURL(first.State), first.AuthRedirect)
	})
}

func TestCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("exchanges a valid code", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		session, err := auth.Callback(ctx, tu.FakeCode, "state", "state")
		require.NoError(t, err)
		assert.Equal(t, tu.FakeAccessToken, session.AccessToken)
		assert.Equal(t, tu.FakeRefreshToken, session.RefreshToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

		reqs := fake.TokenRequests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "authorization_code", reqs[0].Form.Get("grant_type"))
		assert.Equal(t, "http://127.0.0.1:3000/callback", reqs[0].Form.Get("redirect_uri"))
		assert.Equal(t, tu.FakeClientID, reqs[0].BasicUser)
		assert.Equal(t, tu.FakeClientSecret, reqs[0].BasicPass)
	})

	t.Run("missing code is checked first", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		_, err := auth.Callback(ctx, "", "", "stored")
		assert.ErrorIs(t, err, shared.ErrMissingCode)
		assert.Empty(t, fake.TokenRequests())
	})

	t.Run("state mismatch never reaches the token endpoint", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		_, err := auth.Callback(ctx, tu.FakeCode, "other", "stored")
		assert.ErrorIs(t, err, shared.ErrStateMismatch)

		_, err = auth.Callback(ctx, tu.FakeCode, "", "")
		assert.ErrorIs(t, err, shared.ErrStateMismatch)

		assert.Empty(t, fake.TokenRequests())
	})

	t.Run("rejected code is an invalid token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		_, err := auth.Callback(ctx, "stale-code", "s", "s")
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	})

	t.Run("response without refresh token is an invalid token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		fake.OmitRefreshToken()
		auth := newTestAuth(t, fake)

		_, err := auth.Callback(ctx, tu.FakeCode, "s", "s")
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	})

	t.Run("malformed response is an invalid token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		fake.FailToken(tu.Failure{Status: 200, Raw: "not json"})
		auth := newTestAuth(t, fake)

		_, err := auth.Exchange(ctx, tu.FakeCode, "")
		assert.ErrorIs(t, err, shared.ErrInvalidToken)
	})

	t.Run("explicit redirect uri", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		_, err := auth.Exchange(ctx, tu.FakeCode, "http://127.0.0.1:9999/cb")
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:9999/cb", fake.TokenRequests()[0].Form.Get("redirect_uri"))
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a new access token and keeps the refresh token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		session, err := auth.Refresh(ctx, "old-refresh")
		require.NoError(t, err)
		assert.Equal(t, tu.RefreshedAccessToken, session.AccessToken)
		assert.Equal(t, "old-refresh", session.RefreshToken)

		reqs := fake.TokenRequests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "refresh_token", reqs[0].Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", reqs[0].Form.Get("refresh_token"))
	})

	t.Run("upstream failure", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		fake.FailToken(tu.Failure{Status: 400, Message: "Refresh token revoked"})
		auth := newTestAuth(t, fake)

		_, err := auth.Refresh(ctx, "old-refresh")
		assert.ErrorIs(t, err, shared.ErrRefreshFailure)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		_, err := auth.Refresh(ctx, "")
		assert.ErrorIs(t, err, shared.ErrRefreshFailure)
		assert.Empty(t, fake.TokenRequests())
	})
}

func TestNotifyingTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the refreshed token once", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		var seen []*oauth2.Token
		expired := &oauth2.Token{AccessToken: "expired", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}
		ts := auth.NotifyingTokenSource(ctx, expired, func(tok *oauth2.Token) { seen = append(seen, tok) })

		for range 3 {
			tok, err := ts.Token()
			require.NoError(t, err)
			assert.Equal(t, tu.RefreshedAccessToken, tok.AccessToken)
		}
		require.Len(t, seen, 1)
		assert.Equal(t, "r", seen[0].RefreshToken)
		assert.Len(t, fake.TokenRequests(), 1)
	})

	t.Run("valid token is not reported", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		auth := newTestAuth(t, fake)

		called := false
		valid := &oauth2.Token{AccessToken: "valid", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
		ts := auth.NotifyingTokenSource(ctx, valid, func(*oauth2.Token) { called = true })

		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "valid", tok.AccessToken)
		assert.False(t, called)
		assert.Empty(t, fake.TokenRequests())
	})

	t.Run("propagates source errors", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, "alice")
		fake.FailToken(tu.Failure{Status: 400, Message: "revoked"})
		auth := newTestAuth(t, fake)

		called := false
		expired := &oauth2.Token{AccessToken: "expired", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}
		ts := auth.NotifyingTokenSource(ctx, expired, func(*oauth2.Token) { called = true })

		_, err := ts.Token()
		assert.Error(t, err)
		assert.False(t, called)
	})
}

// staticSource hands out a fixed token.
type staticSource struct {
	token *oauth2.Token
}

func (s *staticSource) Token() (*oauth2.Token, error) { return s.token, nil }

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback only when the token changes", func(t *testing.T) {
		src := &staticSource{token: &oauth2.Token{AccessToken: "one"}}
		count := 0
		ts := &refreshableTokenSource{source: src, callback: func(*oauth2.Token) { count++ }}

		_, _ = ts.Token()
		_, _ = ts.Token()
		assert.Equal(t, 1, count)

		src.token = &oauth2.Token{AccessToken: "two"}
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "two", tok.AccessToken)
		assert.Equal(t, 2, count)
	})

	t.Run("nil callback", func(t *testing.T) {
		ts := &refreshableTokenSource{source: &staticSource{token: &oauth2.Token{AccessToken: "x"}}}
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "x", tok.AccessToken)
	})
}
