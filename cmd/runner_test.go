package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	tu "github.com/desertthunder/spm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	fake       *tu.FakeSpotify
	runner     *Runner
	out        *bytes.Buffer
	dir        string
	configPath string
}

// newCLIEnv writes a config pointing at a fake Spotify and returns a runner wired to it.
func newCLIEnv(t *testing.T, mutate func(*shared.Config)) *cliEnv {
	t.Helper()

	fake := tu.NewFakeSpotify(t, "alice")
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Credentials.Spotify = shared.SpotifyConfig{
		ClientID:     tu.FakeClientID,
		ClientSecret: tu.FakeClientSecret,
		RedirectURI:  "http://127.0.0.1:3000/callback",
		AccessToken:  tu.FakeAccessToken,
		RefreshToken: tu.FakeRefreshToken,
		Expiry:       time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	config.Database.Path = filepath.Join(dir, "spm.db")
	config.Sync.RateLimit = 0
	if mutate != nil {
		mutate(config)
	}

	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, shared.SaveConfig(configPath, config))

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: log.New(io.Discard),
		Output: out,
		AuthOptions: []services.AuthOption{
			services.WithAuthEndpoint(fake.AuthorizeURL(), fake.TokenURL()),
			services.WithTokenClient(fake.Server.Client()),
		},
		ClientOptions: []services.ClientOption{
			services.WithBaseURL(fake.APIURL()),
			services.WithHTTPClient(fake.Server.Client()),
		},
		OpenBrowser: func(string) error { return nil },
	})

	return &cliEnv{fake: fake, runner: runner, out: out, dir: dir, configPath: configPath}
}

func (e *cliEnv) run(args ...string) error {
	return e.runner.app().Run(context.Background(), append([]string{"spm", "--config", e.configPath}, args...))
}

func (e *cliEnv) savedConfig(t *testing.T) *shared.Config {
	t.Helper()
	config, err := shared.LoadConfig(e.configPath)
	require.NoError(t, err)
	return config
}

// answerCallback plays the browser: it follows the authorize URL's redirect_uri with code and the given state.
func answerCallback(t *testing.T, code string, state func(string) string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		callback := q.Get("redirect_uri") + "?" + url.Values{"code": {code}, "state": {state(q.Get("state"))}}.Encode()
		go func() {
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			assert.Same(t, config, runner.config)
			assert.Same(t, logger, runner.logger)
			assert.Equal(t, output, runner.output)
			assert.Equal(t, "/test/path/config.toml", runner.configPath)
			assert.NotNil(t, runner.engine)
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			assert.NotNil(t, runner.config)
			assert.NotNil(t, runner.logger)
			assert.Equal(t, os.Stdout, runner.output)
			assert.NotNil(t, runner.openBrowser)
			assert.Empty(t, runner.configPath)
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			require.NoError(t, runner.writeJSON(map[string]string{"key": "value"}, true))
			assert.Contains(t, output.String(), `"key": "value"`)
			assert.True(t, strings.HasSuffix(output.String(), "\n"))
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			require.NoError(t, runner.writeJSON(map[string]int{"n": 1}, false))
			assert.Equal(t, "{\"n\":1}\n", output.String())
		})

		t.Run("returns marshal errors", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			assert.Error(t, runner.writeJSON(make(chan int), false))
		})

		t.Run("returns write errors", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			assert.ErrorContains(t, runner.writeJSON(map[string]int{"n": 1}, false), "failed to write output")
		})

		t.Run("returns newline write errors", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})
			assert.ErrorContains(t, runner.writeJSON(map[string]int{"n": 1}, false), "failed to write newline")
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		require.NoError(t, runner.writePlain("hello %s\n", "world"))
		require.NoError(t, runner.writePlainln("done"))
		assert.Equal(t, "hello world\n\ndone\n", output.String())
	})
}

func TestPlaylistsCommand(t *testing.T) {
	t.Run("lists owned and followed playlists", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		env.fake.AddPlaylist("p2", "Theirs", "bob", 2)

		require.NoError(t, env.run("playlists"))

		out := env.out.String()
		assert.Contains(t, out, "2 playlists")
		assert.Contains(t, out, "owned")
		assert.Contains(t, out, "followed")
	})

	t.Run("json output honors limit", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		env.fake.AddPlaylist("p2", "Theirs", "bob", 2)

		require.NoError(t, env.run("playlists", "--json", "--limit", "1"))

		var playlists []models.SimplePlaylist
		require.NoError(t, json.Unmarshal(env.out.Bytes(), &playlists))
		require.Len(t, playlists, 1)
		assert.Equal(t, "p1", playlists[0].ID)
	})

	t.Run("requires a saved token", func(t *testing.T) {
		env := newCLIEnv(t, func(c *shared.Config) {
			c.Credentials.Spotify.AccessToken = ""
			c.Credentials.Spotify.RefreshToken = ""
		})

		err := env.run("playlists")
		assert.ErrorIs(t, err, shared.ErrNotAuthorized)
		assert.Empty(t, env.fake.Requests())
	})

	t.Run("expired token is refreshed and saved", func(t *testing.T) {
		env := newCLIEnv(t, func(c *shared.Config) {
			c.Credentials.Spotify.Expiry = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
		})
		env.fake.AccessToken = tu.RefreshedAccessToken
		env.fake.AddPlaylist("p1", "Mine", "alice", 1)

		require.NoError(t, env.run("playlists", "--json"))

		tokens := env.fake.TokenRequests()
		require.Len(t, tokens, 1)
		assert.Equal(t, "refresh_token", tokens[0].Form.Get("grant_type"))

		saved := env.savedConfig(t).Credentials.Spotify
		assert.Equal(t, tu.RefreshedAccessToken, saved.AccessToken)
		assert.Equal(t, tu.FakeRefreshToken, saved.RefreshToken)
		assert.True(t, saved.Expiry.After(time.Now()))
	})
}

func TestExportCommand(t *testing.T) {
	t.Run("exports the whole library", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		env.fake.AddPlaylist("p2", "Theirs", "bob", 2)
		archive := filepath.Join(env.dir, "out.zip")

		require.NoError(t, env.run("export", "--all", "-o", archive))

		playlists, err := formatter.ReadImportFile(archive)
		require.NoError(t, err)
		require.Len(t, playlists, 2)
		assert.Len(t, playlists[0].Tracks.Items, 3)
		assert.Nil(t, playlists[1].Tracks)

		out := env.out.String()
		assert.Contains(t, out, "Playlists exported: 2 (1 followed)")
		assert.Contains(t, out, "Tracks exported: 3")

		require.NoError(t, env.run("history", "--json"))
		assert.Contains(t, env.out.String(), `"Kind":"export"`)
	})

	t.Run("selected ids with an unknown playlist", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		archive := filepath.Join(env.dir, "out.zip")

		require.NoError(t, env.run("export", "--id", "p1", "--id", "missing", "-o", archive))

		playlists, err := formatter.ReadImportFile(archive)
		require.NoError(t, err)
		require.Len(t, playlists, 1)
		assert.Equal(t, "p1", playlists[0].ID)
		assert.Contains(t, env.out.String(), "1 playlists could not be exported")
	})

	t.Run("argument errors", func(t *testing.T) {
		env := newCLIEnv(t, nil)

		assert.ErrorIs(t, env.run("export"), shared.ErrMissingArgument)
		assert.ErrorIs(t, env.run("export", "--all", "--id", "p1"), shared.ErrInvalidArgument)
		assert.Empty(t, env.fake.Requests())
	})
}

func TestImportCommand(t *testing.T) {
	t.Run("imports an exported archive", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		env.fake.AddPlaylist("p2", "Theirs", "bob", 2)
		archive := filepath.Join(env.dir, "out.zip")
		require.NoError(t, env.run("export", "--all", "-o", archive))
		env.out.Reset()

		require.NoError(t, env.run("import", "--json", archive))

		var summary models.ImportSummary
		require.NoError(t, json.Unmarshal(env.out.Bytes(), &summary))
		assert.Equal(t, 2, summary.PlaylistsCount)
		assert.Equal(t, 3, summary.TracksCount)
		assert.Nil(t, summary.Errors)

		require.Len(t, env.fake.Created(), 1)
		assert.Equal(t, "Mine", env.fake.Created()[0].Name)
		assert.Equal(t, []string{"p2"}, env.fake.Follows())

		env.out.Reset()
		require.NoError(t, env.run("history"))
		assert.Contains(t, env.out.String(), "import")
		assert.Contains(t, env.out.String(), "export")
	})

	t.Run("plain output reports errors", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.AddPlaylist("p1", "Mine", "alice", 3)
		archive := filepath.Join(env.dir, "out.zip")
		require.NoError(t, env.run("export", "--all", "-o", archive))
		env.fake.FailCreate("Mine", tu.Failure{Status: http.StatusForbidden, Message: "Insufficient client scope"})
		env.out.Reset()

		require.NoError(t, env.run("import", archive))

		out := env.out.String()
		assert.Contains(t, out, "Import finished with errors")
		assert.Contains(t, out, "not_created:")
		assert.Contains(t, out, "Mine: Insufficient client scope")
	})

	t.Run("rejected documents", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		invalid := filepath.Join(env.dir, "bad.json")
		require.NoError(t, os.WriteFile(invalid, []byte("not json"), 0644))

		assert.ErrorIs(t, env.run("import"), shared.ErrMissingArgument)
		assert.ErrorIs(t, env.run("import", filepath.Join(env.dir, "nope.zip")), shared.ErrNoFile)

		err := env.run("import", invalid)
		assert.ErrorIs(t, err, shared.ErrInvalidFormat)
		assert.Contains(t, err.Error(), formatter.InvalidFormatReason)
		assert.Empty(t, env.fake.Requests())
	})
}

func TestHistoryCommand(t *testing.T) {
	env := newCLIEnv(t, nil)

	require.NoError(t, env.run("history"))
	assert.Contains(t, env.out.String(), "No runs recorded yet.")
}

func TestSetupCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	dbPath := filepath.Join(dir, "spm.db")
	t.Setenv("SPM_DATABASE_PATH", dbPath)

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: out})

	require.NoError(t, runner.app().Run(context.Background(), []string{"spm", "--config", configPath, "setup"}))

	tu.AssertFileExists(t, dbPath)
	assert.Contains(t, tu.MustReadFile(t, configPath), "[credentials.spotify]")
	assert.Contains(t, out.String(), "Config written to")
	assert.Contains(t, out.String(), "spm auth login")

	t.Run("existing config is kept", func(t *testing.T) {
		before := tu.MustReadFile(t, configPath)
		require.NoError(t, runner.app().Run(context.Background(), []string{"spm", "--config", configPath, "setup"}))
		assert.Equal(t, before, tu.MustReadFile(t, configPath))
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("login saves the exchanged tokens", func(t *testing.T) {
		addr := freeAddr(t)
		env := newCLIEnv(t, func(c *shared.Config) {
			c.Credentials.Spotify.AccessToken = ""
			c.Credentials.Spotify.RefreshToken = ""
			c.Credentials.Spotify.RedirectURI = "http://" + addr + "/callback"
		})
		env.runner.openBrowser = answerCallback(t, tu.FakeCode, func(s string) string { return s })

		require.NoError(t, env.run("auth", "login", "--timeout", "5s"))

		saved := env.savedConfig(t).Credentials.Spotify
		assert.Equal(t, tu.FakeAccessToken, saved.AccessToken)
		assert.Equal(t, tu.FakeRefreshToken, saved.RefreshToken)
		assert.Contains(t, env.out.String(), "Authorization successful")
	})

	t.Run("refresh", func(t *testing.T) {
		env := newCLIEnv(t, nil)

		require.NoError(t, env.run("auth", "refresh"))

		saved := env.savedConfig(t).Credentials.Spotify
		assert.Equal(t, tu.RefreshedAccessToken, saved.AccessToken)
		assert.Equal(t, tu.FakeRefreshToken, saved.RefreshToken)
		assert.Contains(t, env.out.String(), "Access token refreshed")
	})

	t.Run("refresh failure", func(t *testing.T) {
		env := newCLIEnv(t, nil)
		env.fake.FailToken(tu.Failure{Status: http.StatusBadRequest, Message: "Invalid refresh token"})

		assert.ErrorIs(t, env.run("auth", "refresh"), shared.ErrRefreshFailure)
		assert.Equal(t, tu.FakeAccessToken, env.savedConfig(t).Credentials.Spotify.AccessToken)
	})

	t.Run("status", func(t *testing.T) {
		env := newCLIEnv(t, nil)

		require.NoError(t, env.run("auth", "status"))
		assert.Contains(t, env.out.String(), "Signed in as Test alice (alice)")
	})

	t.Run("missing credentials", func(t *testing.T) {
		env := newCLIEnv(t, func(c *shared.Config) { c.Credentials.Spotify.ClientSecret = "" })

		assert.ErrorIs(t, env.run("auth", "refresh"), shared.ErrMissingCredentials)
	})
}

func TestAuthorize(t *testing.T) {
	setup := func(t *testing.T) (*Runner, *tu.FakeSpotify, *services.AuthService, net.Listener) {
		fake := tu.NewFakeSpotify(t, "alice")
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		auth, err := services.NewAuthService(shared.SpotifyConfig{
			ClientID:     tu.FakeClientID,
			ClientSecret: tu.FakeClientSecret,
			RedirectURI:  "http://" + ln.Addr().String() + "/callback",
		}, services.WithAuthEndpoint(fake.AuthorizeURL(), fake.TokenURL()), services.WithTokenClient(fake.Server.Client()))
		require.NoError(t, err)

		runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		return runner, fake, auth, ln
	}

	t.Run("exchanges the code from the callback", func(t *testing.T) {
		runner, _, auth, ln := setup(t)
		runner.openBrowser = answerCallback(t, tu.FakeCode, func(s string) string { return s })

		session, err := runner.authorize(context.Background(), auth, ln, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, tu.FakeAccessToken, session.AccessToken)
		assert.Equal(t, tu.FakeRefreshToken, session.RefreshToken)
	})

	t.Run("state mismatch never reaches the token endpoint", func(t *testing.T) {
		runner, fake, auth, ln := setup(t)
		runner.openBrowser = answerCallback(t, tu.FakeCode, func(string) string { return "forged" })

		_, err := runner.authorize(context.Background(), auth, ln, 5*time.Second)
		assert.ErrorIs(t, err, shared.ErrStateMismatch)
		assert.Empty(t, fake.TokenRequests())
	})

	t.Run("times out without a callback", func(t *testing.T) {
		runner, _, auth, ln := setup(t)
		out := &bytes.Buffer{}
		runner.output = out
		runner.openBrowser = func(string) error { return assert.AnError }

		_, err := runner.authorize(context.Background(), auth, ln, 50*time.Millisecond)
		assert.ErrorIs(t, err, shared.ErrTimeout)
		assert.Contains(t, out.String(), "Please open this URL in your browser")
	})

	t.Run("listenRedirect rejects a URI without a host", func(t *testing.T) {
		_, err := listenRedirect("/callback")
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestNewServer(t *testing.T) {
	env := newCLIEnv(t, nil)
	env.fake.AddPlaylist("p1", "Mine", "alice", 1)
	require.NoError(t, env.run("history"))

	srv, closeDB, err := env.runner.newServer()
	require.NoError(t, err)
	t.Cleanup(closeDB)

	t.Run("login route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "authRedirect")
	})

	t.Run("playlists route uses the request token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/playlists", nil)
		req.Header.Set("Authorization", "Bearer "+tu.FakeAccessToken)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var playlists []models.SimplePlaylist
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &playlists))
		assert.Len(t, playlists, 1)
	})
}
