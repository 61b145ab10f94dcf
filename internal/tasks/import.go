package tasks

import (
	"context"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"golang.org/x/sync/errgroup"
)

// unavailableTrackReason is reported for entries whose track is missing from the export.
const unavailableTrackReason = "Track is unavailable and cannot be added."

// entryOutcome is what importing one export entry produced. Each task writes only its own.
type entryOutcome struct {
	imported    bool
	tracksFound int
	tracksAdded int
	errors      []models.ImportError
}

// Import replays playlists on the account of requesterID.
//
// Entries with a track listing are recreated as private playlists and filled in chunks of
// [services.MaxTracksPerRequest], sequentially so track order is preserved. Entries without one
// are followed, except those owned by the requester. Error records from a failed export become
// not_created. Per-entry failures never stop the batch, and a panicking entry becomes an
// unknown error.
//
// After every entry settles, shortfall records are appended when fewer playlists or tracks were
// imported than found. Errors is nil when nothing went wrong.
func (e *Engine) Import(
	ctx context.Context,
	api services.PlaylistService,
	requesterID string,
	playlists []models.HydratedPlaylist,
	progress chan<- ProgressUpdate,
) *models.ImportSummary {
	outcomes := make([]entryOutcome, len(playlists))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, playlist := range playlists {
		g.Go(func() error {
			o := &outcomes[i]
			defer func() {
				if r := recover(); r != nil {
					e.logger.Warn(OpImport.UnknownReason(), "panic", r, "playlist", playlist.ID, "user", requesterID)
					o.errors = append(o.errors, models.NewUnknown(OpImport.UnknownReason()))
				}
				e.sendProgress(progress, importedUpdate(i+1, len(playlists), playlist.Name, len(o.errors)))
			}()

			e.importOne(ctx, api, requesterID, playlist, o, progress)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(outcomes)
}

// summarize reduces per-entry outcomes in dispatch order and appends shortfall records.
func summarize(outcomes []entryOutcome) *models.ImportSummary {
	summary := &models.ImportSummary{}
	var tracksFound int

	for _, o := range outcomes {
		if o.imported {
			summary.PlaylistsCount++
		}
		tracksFound += o.tracksFound
		summary.TracksCount += o.tracksAdded
		summary.Errors = append(summary.Errors, o.errors...)
	}

	if summary.PlaylistsCount != len(outcomes) {
		summary.Errors = append(summary.Errors, models.NewPlaylistShortfall(summary.PlaylistsCount, len(outcomes)))
	}
	if summary.TracksCount != tracksFound {
		summary.Errors = append(summary.Errors, models.NewTrackShortfall(summary.TracksCount, tracksFound))
	}

	return summary
}

func (e *Engine) importOne(
	ctx context.Context,
	api services.PlaylistService,
	requesterID string,
	playlist models.HydratedPlaylist,
	o *entryOutcome,
	progress chan<- ProgressUpdate,
) {
	switch {
	case playlist.Failed():
		e.importFailed(playlist, o)
	case playlist.Owned():
		e.importOwned(ctx, api, requesterID, playlist, o, progress)
	default:
		e.importFollowed(ctx, api, requesterID, playlist, o, progress)
	}
}

// importFailed reports an export error record without contacting the upstream.
func (e *Engine) importFailed(playlist models.HydratedPlaylist, o *entryOutcome) {
	reason := playlist.Error.Message
	if reason == "" {
		reason = OpFetchPlaylist.UnknownReason()
	}
	p := playlist.Playlist
	if p.Name == "" {
		p.Name = p.ID
	}
	o.errors = append(o.errors, models.NewNotCreated(p, reason))
}

func (e *Engine) importOwned(
	ctx context.Context,
	api services.PlaylistService,
	requesterID string,
	playlist models.HydratedPlaylist,
	o *entryOutcome,
	progress chan<- ProgressUpdate,
) {
	created, err := api.CreatePlaylist(ctx, requesterID, models.NewPlaylist{
		Name:          playlist.Name,
		Description:   playlist.DescriptionText(),
		Public:        false,
		Collaborative: false,
	})
	if err != nil {
		reason := e.reason(err, OpCreatePlaylist,
			"playlist", playlist.ID, "name", playlist.Name, "href", playlist.Href,
			"owner", playlist.Owner.Href, "trackCount", len(playlist.Tracks.Items), "user", requesterID)
		o.errors = append(o.errors, models.NewNotCreated(playlist.Playlist, reason))
		return
	}
	o.imported = true
	e.sendProgress(progress, createdUpdate(created))

	items := playlist.Tracks.Items
	o.tracksFound += len(items)

	addable := make([]models.PlaylistTrackItem, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.URI == "" {
			o.errors = append(o.errors, models.NewTrackNotAdded(playlist.Playlist, item, unavailableTrackReason))
			continue
		}
		addable = append(addable, item)
	}

	chunks := (len(addable) + services.MaxTracksPerRequest - 1) / services.MaxTracksPerRequest
	for n := range chunks {
		start := n * services.MaxTracksPerRequest
		chunk := addable[start:min(start+services.MaxTracksPerRequest, len(addable))]

		uris := make([]string, len(chunk))
		for i, item := range chunk {
			uris[i] = item.Track.URI
		}

		if err := api.AddTracks(ctx, created.ID, uris); err != nil {
			reason := e.reason(err, OpAddTracks,
				"playlist", playlist.ID, "name", playlist.Name, "newPlaylist", created.ID,
				"chunk", n, "tracks", len(chunk), "user", requesterID)
			for _, item := range chunk {
				o.errors = append(o.errors, models.NewTrackNotAdded(playlist.Playlist, item, reason))
			}
			continue
		}

		o.tracksAdded += len(chunk)
		e.sendProgress(progress, chunkUpdate(n+1, chunks, playlist.Name, len(chunk)))
	}
}

func (e *Engine) importFollowed(
	ctx context.Context,
	api services.PlaylistService,
	requesterID string,
	playlist models.HydratedPlaylist,
	o *entryOutcome,
	progress chan<- ProgressUpdate,
) {
	if playlist.Owner.ID == requesterID {
		o.errors = append(o.errors, models.NewNotFollowed(playlist.Playlist, selfFollowReason))
		return
	}

	if err := api.FollowPlaylist(ctx, playlist.ID); err != nil {
		reason := e.reason(err, OpFollowPlaylist,
			"playlist", playlist.ID, "name", playlist.Name, "href", playlist.Href,
			"owner", playlist.Owner.Href, "user", requesterID)
		o.errors = append(o.errors, models.NewNotFollowed(playlist.Playlist, reason))
		return
	}

	o.imported = true
	e.sendProgress(progress, followedUpdate(playlist.Name))
}
