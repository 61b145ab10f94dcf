package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/server"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization,
// and saves the exchanged tokens to the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.authService()
	if err != nil {
		return err
	}

	ln, err := listenRedirect(auth.RedirectURI())
	if err != nil {
		return err
	}

	session, err := r.authorize(ctx, auth, ln, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if err := r.saveSession(session); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: spm playlists\n")
	return nil
}

// AuthRefresh exchanges the saved refresh token for a new access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.authService()
	if err != nil {
		return err
	}

	session, err := auth.Refresh(ctx, r.config.Credentials.Spotify.RefreshToken)
	if err != nil {
		return err
	}

	if err := r.saveSession(session); err != nil {
		return err
	}

	r.writePlain("✓ Access token refreshed\n")
	if !session.ExpiresAt.IsZero() {
		r.writePlain("  Expires: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthStatus reports which Spotify user the saved token acts for.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	r.writePlain("✓ Signed in as %s (%s)\n", user.Name(), user.ID)
	if expiry := r.config.Credentials.Spotify.Expiry; !expiry.IsZero() {
		r.writePlain("  Token expires: %s\n", expiry.Local().Format(time.RFC1123))
	}
	return nil
}

// saveSession writes session into the config file.
func (r *Runner) saveSession(session *models.AuthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.config.Credentials.Spotify.Update(services.SessionToken(session)); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// listenRedirect listens on the host and port of the registered redirect URI.
func listenRedirect(redirectURI string) (net.Listener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}

	ln, err := net.Listen("tcp", host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the OAuth callback on %s: %w", host, err)
	}
	return ln, nil
}

// authorize serves the OAuth callback on ln until one callback arrives or timeout passes.
func (r *Runner) authorize(ctx context.Context, auth *services.AuthService, ln net.Listener, timeout time.Duration) (*models.AuthSession, error) {
	login, err := auth.Login()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(auth, login.State)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("waiting for OAuth callback at %v", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(login.AuthRedirect); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", login.AuthRedirect)
	}

	if timeout <= 0 {
		timeout = loginTimeout
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return nil, fmt.Errorf("authorization failed: %w", err)
		}
		return result.Session, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
