package services

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/spm/internal/shared"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the Spotify Web API or Accounts service.
//
// Message holds the upstream's human-readable explanation and may be empty.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// Unwrap exposes [shared.ErrAPIRequest], plus [shared.ErrNotAuthorized] for 401 responses.
func (e *APIError) Unwrap() []error {
	if e.Status == http.StatusUnauthorized {
		return []error{shared.ErrAPIRequest, shared.ErrNotAuthorized}
	}
	return []error{shared.ErrAPIRequest}
}

// newAPIError reads the message from either the Web API shape `{"error":{"status","message"}}`
// or the Accounts shape `{"error":"...","error_description":"..."}`.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if !gjson.ValidBytes(body) {
		return e
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		e.Message = msg.String()
	} else if desc := gjson.GetBytes(body, "error_description"); desc.Exists() {
		e.Message = desc.String()
	}
	return e
}

// TransportError is a request that never produced a usable response: a network failure,
// a canceled context, or a body that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
