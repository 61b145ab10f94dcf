package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/desertthunder/spm/internal/shared"
)

// StateCookie holds the pending authorization state between login and callback.
const StateCookie = "spotify_auth_state"

// stateTTL bounds how long a login attempt stays valid.
const stateTTL = 10 * time.Minute

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleLogin starts an authorization attempt: GET /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirect, err := s.auth.Login()
	if err != nil {
		s.logger.Error("failed to start login", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    redirect.State,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, redirect)
}

// handleCallback completes the authorization attempt: GET /auth/callback?code=...&state=...
//
// The state cookie is cleared once the state matches, so a second callback with the same state
// is rejected.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")

	stored := ""
	if c, err := r.Cookie(StateCookie); err == nil {
		stored = c.Value
	}

	session, err := s.auth.Callback(r.Context(), code, state, stored)
	switch {
	case errors.Is(err, shared.ErrMissingCode), errors.Is(err, shared.ErrStateMismatch):
		writeError(w, http.StatusBadRequest, shared.ErrorCode(err))
		return
	}

	s.clearState(w)
	if err != nil {
		writeError(w, http.StatusBadRequest, shared.ErrorCode(err))
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// handleRefresh trades a refresh token for a new access token: POST /auth/refresh_token
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	session, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, shared.ErrorCode(shared.ErrRefreshFailure))
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (s *Server) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
