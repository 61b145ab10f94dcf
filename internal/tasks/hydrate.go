package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"golang.org/x/sync/errgroup"
)

// Hydrate builds export document entries for refs, in input order.
//
// Every ref gets its metadata fetched; refs owned by requesterID also get their full track
// listing. A ref whose metadata or tracks cannot be fetched becomes an error record (see
// [models.NewFailedPlaylist]) without affecting the others.
func (e *Engine) Hydrate(
	ctx context.Context,
	api services.PlaylistService,
	requesterID string,
	refs []models.PlaylistRef,
	progress chan<- ProgressUpdate,
) []models.HydratedPlaylist {
	results := make([]models.HydratedPlaylist, len(refs))

	var done atomic.Int32
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("hydration panicked", "playlist", ref.ID, "panic", r)
					results[i] = models.NewFailedPlaylist(ref.ID, 0, OpFetchPlaylist.UnknownReason())
				}
				e.sendProgress(progress, hydratedUpdate(int(done.Add(1)), len(refs), &results[i]))
			}()

			results[i] = e.hydrateOne(ctx, api, requesterID, ref)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) hydrateOne(ctx context.Context, api services.PlaylistService, requesterID string, ref models.PlaylistRef) models.HydratedPlaylist {
	playlist, err := api.Playlist(ctx, ref.ID)
	if err != nil {
		return e.failedPlaylist(ref, err, OpFetchPlaylist)
	}

	hydrated := models.HydratedPlaylist{Playlist: *playlist}
	if ref.OwnerID != requesterID {
		return hydrated
	}

	tracks, err := api.PlaylistTracks(ctx, ref.ID)
	if err != nil {
		return e.failedPlaylist(ref, err, OpFetchTracks)
	}
	hydrated.Tracks = tracks
	return hydrated
}

func (e *Engine) failedPlaylist(ref models.PlaylistRef, err error, op Operation) models.HydratedPlaylist {
	status := 0
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Status
	}
	return models.NewFailedPlaylist(ref.ID, status, e.reason(err, op, "playlist", ref.ID, "owner", ref.OwnerID))
}

// HydrationError summarizes the error records in an export for logging and exit codes.
func HydrationError(playlists []models.HydratedPlaylist) error {
	_, failed := models.SplitFailed(playlists)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, p := range failed {
		errs = append(errs, fmt.Errorf("playlist %s: %s", p.ID, p.Error.Message))
	}
	return errors.Join(errs...)
}
