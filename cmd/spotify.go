package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Playlists lists the playlists in the user's library with optional limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := client.UserPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}
	return r.writePlain("%s", formatter.RenderPlaylists(playlists, user.ID))
}

// Export hydrates the selected playlists and writes them to a zip archive.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")
	all := cmd.Bool("all")
	outputFile := cmd.String("output")

	if len(ids) == 0 && !all {
		return fmt.Errorf("%w: pass --id at least once or --all", shared.ErrMissingArgument)
	}
	if len(ids) > 0 && all {
		return fmt.Errorf("%w: cannot combine --id with --all", shared.ErrInvalidArgument)
	}

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	refs, err := r.exportRefs(ctx, client, ids)
	if err != nil {
		return err
	}

	r.logger.Info("exporting playlists", "count", len(refs), "user", user.ID, "output", outputFile)
	r.writePlain("Exporting %d playlists...\n", len(refs))

	progress, stop := r.watchProgress()
	playlists := r.engine.Hydrate(ctx, client, user.ID, refs, progress)
	stop()

	if err := tasks.HydrationError(playlists); err != nil {
		r.logger.Warn("some playlists could not be exported", "error", err)
	}

	if err := formatter.WriteExportFile(outputFile, playlists); err != nil {
		return err
	}

	r.recordRun(models.NewExportRun(shared.GenerateID(), user.ID, playlists))
	return r.writePlain("\n%s", formatter.RenderExportSummary(playlists, outputFile))
}

// exportRefs resolves the playlists to export: the whole library when ids is empty, the named
// playlists otherwise. IDs outside the library are looked up for their owner.
func (r *Runner) exportRefs(ctx context.Context, client services.PlaylistService, ids []string) ([]models.PlaylistRef, error) {
	library, err := client.UserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if len(ids) == 0 {
		refs := make([]models.PlaylistRef, 0, len(library))
		for _, p := range library {
			refs = append(refs, p.Ref())
		}
		return refs, nil
	}

	owners := make(map[string]string, len(library))
	for _, p := range library {
		owners[p.ID] = p.Owner.ID
	}

	refs := make([]models.PlaylistRef, 0, len(ids))
	for _, id := range ids {
		owner, ok := owners[id]
		if !ok {
			if p, err := client.Playlist(ctx, id); err == nil {
				owner = p.Owner.ID
			} else {
				r.logger.Debug("playlist owner unknown", "playlist", id, "error", err)
			}
		}
		refs = append(refs, models.PlaylistRef{ID: id, OwnerID: owner})
	}
	return refs, nil
}

// Import reads an export archive or document and recreates it in the user's library.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if path == "" {
		return fmt.Errorf("%w: path to an export archive is required", shared.ErrMissingArgument)
	}

	playlists, err := formatter.ReadImportFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", formatter.RejectionReason(err), err)
	}

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}

	user, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	r.logger.Info("importing playlists", "count", len(playlists), "user", user.ID, "path", path)
	if !useJSON {
		r.writePlain("Importing %d playlists...\n", len(playlists))
	}

	var progress chan<- tasks.ProgressUpdate
	stop := func() {}
	if !useJSON {
		progress, stop = r.watchProgress()
	}
	summary := r.engine.Import(ctx, client, user.ID, playlists, progress)
	stop()

	r.recordRun(models.NewImportRun(shared.GenerateID(), user.ID, summary))

	if useJSON {
		return r.writeJSON(summary, pretty)
	}
	return r.writePlain("\n%s", formatter.RenderImportSummary(summary))
}
