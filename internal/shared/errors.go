package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrMissingCode    = fmt.Errorf("missing authorization code")
	ErrStateMismatch  = fmt.Errorf("state mismatch")
	ErrInvalidToken   = fmt.Errorf("invalid token response")
	ErrRefreshFailure = fmt.Errorf("token refresh failed")
	ErrNotAuthorized  = fmt.Errorf("not authorized")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPaginationLimit    = fmt.Errorf("pagination page limit exceeded")
	ErrPaginationLoop     = fmt.Errorf("pagination cursor repeated")
	ErrTooManyTracks      = fmt.Errorf("too many tracks in one request")

	// Import document errors
	ErrNoFile        = fmt.Errorf("no file")
	ErrFileTooLarge  = fmt.Errorf("file too large")
	ErrInvalidFormat = fmt.Errorf("invalid format")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMissingCode, "missing_code"},
	{ErrStateMismatch, "state_mismatch"},
	{ErrInvalidToken, "invalid_token"},
	{ErrRefreshFailure, "refresh_failure"},
	{ErrNoFile, "no_file"},
	{ErrFileTooLarge, "file_too_large"},
	{ErrInvalidFormat, "invalid_format"},
}

// ErrorCode returns the wire code for a flow-control, token exchange, or import document error.
//
// Unrecognized errors map to "unknown".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "unknown"
}
