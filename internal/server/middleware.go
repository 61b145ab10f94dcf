package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/tidwall/gjson"
)

// TokenHeader carries the caller's Spotify access token on requests without a JSON body.
const TokenHeader = "x-spotify-token"

// maxJSONBody bounds JSON request bodies read by the API.
const maxJSONBody = 1 << 20

type ctxKey int

const (
	spotifyKey ctxKey = iota
	userKey
)

// SpotifyFrom returns the Web API client [Server.requireUser] attached to ctx.
func SpotifyFrom(ctx context.Context) services.PlaylistService {
	api, _ := ctx.Value(spotifyKey).(services.PlaylistService)
	return api
}

// UserFrom returns the authenticated Spotify user attached to ctx.
func UserFrom(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs method, path, status, and duration of every request. Query strings are
// left out since the auth callback carries the authorization code in them.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

// Recover turns a panicking handler into a 500 response.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
					writeError(w, http.StatusInternalServerError, "internal_error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requireUser resolves the caller's identity with `GET /me` before the handler runs.
//
// The token is read from a JSON body's "token" field, the [TokenHeader] header, or a bearer
// Authorization header, in that order. Missing or rejected tokens get a 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := requestToken(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Reason: err.Error()})
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "not_authorized")
			return
		}

		api := s.client(r.Context(), token)
		user, err := api.Me(r.Context())
		if err != nil {
			if errors.Is(err, shared.ErrNotAuthorized) {
				writeError(w, http.StatusUnauthorized, "not_authorized")
				return
			}
			s.logger.Warn("failed to resolve user", "error", err)
			writeError(w, http.StatusBadGateway, "upstream_failure")
			return
		}

		ctx := context.WithValue(r.Context(), spotifyKey, api)
		ctx = context.WithValue(ctx, userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestToken finds the access token, restoring a peeked JSON body for the handler.
func requestToken(r *http.Request) (string, error) {
	if isJSON(r) && r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
		if err != nil {
			return "", err
		}
		if len(data) > maxJSONBody {
			return "", errors.New("request body too large")
		}
		r.Body = io.NopCloser(bytes.NewReader(data))
		if token := gjson.GetBytes(data, "token"); token.Type == gjson.String && token.Str != "" {
			return token.Str, nil
		}
	}

	if token := r.Header.Get(TokenHeader); token != "" {
		return token, nil
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), nil
	}
	return "", nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
