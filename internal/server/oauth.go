package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Session *models.AuthSession
	err     error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler receives the authorization callback for the CLI login flow.
//
// It holds the state of a single login attempt and serves exactly one callback.
type OAuthHandler struct {
	auth        *services.AuthService
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler for the login attempt identified by state.
func NewOAuthHandler(auth *services.AuthService, state string) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the path of the configured redirect URI.
func (h *OAuthHandler) Routes() []string {
	u, err := url.Parse(h.auth.RedirectURI())
	if err != nil || u.Path == "" {
		return []string{"/callback"}
	}
	return []string{u.Path}
}

// ServeHTTP handles the OAuth callback request.
//
// The state parameter must match the login attempt; the code is then exchanged and the result
// sent through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.Send(OAuthResult{err: fmt.Errorf("%w: authorization denied: %s", shared.ErrNotAuthorized, errParam)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Callback(r.Context(), q.Get("code"), q.Get("state"), h.state)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed: "+shared.ErrorCode(err), http.StatusBadRequest)
		return
	}

	h.Send(OAuthResult{Session: session})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>spm: signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in to Spotify</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
