package models

import (
	"fmt"
	"time"
)

// RunKind distinguishes export runs from import runs.
type RunKind string

const (
	RunExport RunKind = "export"
	RunImport RunKind = "import"
)

// Run is a recorded export or import.
type Run struct {
	ID             string
	Kind           RunKind
	UserID         string
	PlaylistsCount int
	TracksCount    int
	ErrorCount     int
	CreatedAt      time.Time
	Errors         []RunError
}

// RunError is a persisted [ImportError], flattened for display.
type RunError struct {
	Position     int
	ErrorType    ImportErrorType
	PlaylistName string
	TrackName    string
	Reason       string
}

// Validate checks the fields the database constrains.
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.Kind != RunExport && r.Kind != RunImport {
		return fmt.Errorf("invalid run kind %q", r.Kind)
	}
	if r.UserID == "" {
		return fmt.Errorf("run user id is required")
	}
	return nil
}

// NewImportRun records the outcome of an import.
func NewImportRun(id, userID string, summary *ImportSummary) Run {
	run := Run{
		ID:             id,
		Kind:           RunImport,
		UserID:         userID,
		PlaylistsCount: summary.PlaylistsCount,
		TracksCount:    summary.TracksCount,
		ErrorCount:     len(summary.Errors),
		CreatedAt:      time.Now().UTC(),
	}
	for i, e := range summary.Errors {
		run.Errors = append(run.Errors, RunError{
			Position:     i,
			ErrorType:    e.Type,
			PlaylistName: e.PlaylistName,
			TrackName:    e.TrackName,
			Reason:       e.Reason,
		})
	}
	return run
}

// NewExportRun records an export of playlists, counting exported tracks and failed entries.
func NewExportRun(id, userID string, playlists []HydratedPlaylist) Run {
	run := Run{ID: id, Kind: RunExport, UserID: userID, CreatedAt: time.Now().UTC()}
	for _, p := range playlists {
		switch {
		case p.Failed():
			run.ErrorCount++
		default:
			run.PlaylistsCount++
			if p.Tracks != nil {
				run.TracksCount += len(p.Tracks.Items)
			}
		}
	}
	return run
}
