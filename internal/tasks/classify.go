package tasks

import (
	"errors"

	"github.com/desertthunder/spm/internal/services"
)

// Operation names an upstream action in user-facing failure reasons.
type Operation string

const (
	OpFetchPlaylist  Operation = "Fetching the playlist"
	OpFetchTracks    Operation = "Fetching the playlist tracks"
	OpCreatePlaylist Operation = "Playlist creation"
	OpAddTracks      Operation = "Adding tracks to playlist"
	OpFollowPlaylist Operation = "Following the playlist"
	OpImport         Operation = "The import process"
)

// UnknownReason is the reason reported when the upstream gave no explanation.
func (op Operation) UnknownReason() string {
	return string(op) + " failed for an unknown reason."
}

// selfFollowReason explains why a track-less entry owned by the requester cannot be imported.
const selfFollowReason = "Playlist owner is the same as you, so you must provide a track list to import it as a new playlist, or you must import this playlist on a different account."

// Classify returns the user-facing reason for err: the upstream's message when the failure is an
// API error carrying one, and op's generic reason otherwise.
func Classify(err error, op Operation) string {
	reason, _ := classify(err, op)
	return reason
}

func classify(err error, op Operation) (string, bool) {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return op.UnknownReason(), false
}

// reason classifies err and logs the raw error when it has no upstream explanation.
// The raw error never reaches the returned reason.
func (e *Engine) reason(err error, op Operation, kv ...any) string {
	reason, known := classify(err, op)
	if !known {
		e.logger.Warn(op.UnknownReason(), append([]any{"error", err}, kv...)...)
	}
	return reason
}
