package services

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/spm/internal/shared"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	tc := []struct {
		name string
		body string
		want string
	}{
		{name: "web api shape", body: `{"error":{"status":403,"message":"Insufficient client scope"}}`, want: "Insufficient client scope"},
		{name: "accounts shape", body: `{"error":"invalid_grant","error_description":"Invalid authorization code"}`, want: "Invalid authorization code"},
		{name: "empty message", body: `{"error":{"status":500,"message":""}}`, want: ""},
		{name: "not json", body: `<html>bad gateway</html>`, want: ""},
		{name: "empty body", body: ``, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(403, []byte(tt.body))
			assert.Equal(t, 403, err.Status)
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Run("api errors are API request errors", func(t *testing.T) {
		var err error = &APIError{Status: 404}
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.NotErrorIs(t, err, shared.ErrNotAuthorized)
	})

	t.Run("401 is not authorized", func(t *testing.T) {
		var err error = &APIError{Status: 401, Message: "The access token expired"}
		assert.ErrorIs(t, err, shared.ErrNotAuthorized)
		assert.Contains(t, err.Error(), "The access token expired")
	})

	t.Run("transport errors wrap the cause", func(t *testing.T) {
		var err error = &TransportError{Op: "GET /me", Err: context.Canceled}
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "GET /me: context canceled", err.Error())

		var te *TransportError
		assert.True(t, errors.As(err, &te))
	})
}
