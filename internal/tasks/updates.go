package tasks

import (
	"fmt"

	"github.com/desertthunder/spm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	HydratePlaylist Phase = iota
	CreatePlaylist
	AddTracks
	FollowPlaylist
	ImportPlaylist
)

func (p Phase) String() string {
	switch p {
	case HydratePlaylist:
		return "hydrate_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case FollowPlaylist:
		return "follow_playlist"
	case ImportPlaylist:
		return "import_playlist"
	default:
		return ""
	}
}

func hydratedUpdate(step, total int, p *models.HydratedPlaylist) ProgressUpdate {
	var msg string
	switch {
	case p.Failed():
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, p.ID, p.Error.Message)
	case p.Owned():
		msg = fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, p.Name, len(p.Tracks.Items))
	default:
		msg = fmt.Sprintf("[%d/%d] ✓ %s (followed)", step, total, p.Name)
	}
	return ProgressUpdate{Phase: HydratePlaylist, Step: step, Total: total, Message: msg, Data: p}
}

func createdUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func chunkUpdate(step, total int, name string, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: added %d tracks", step, total, name, added),
	}
}

func followedUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FollowPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Followed playlist: %s", name),
	}
}

func importedUpdate(step, total int, name string, errCount int) ProgressUpdate {
	mark := "✓"
	if errCount > 0 {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ImportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%d errors)", step, total, mark, name, errCount),
	}
}
