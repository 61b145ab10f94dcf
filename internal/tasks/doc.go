// package tasks implements the export and import pipelines on top of [services.PlaylistService].
//
// [Engine.Hydrate] turns playlist references into export document entries, fetching track
// listings only for playlists the requester owns. [Engine.Import] replays an export document
// on a destination account: owned entries are recreated with their tracks, foreign entries are
// followed. Both fan out across playlists with a bounded [errgroup.Group] and never let one
// playlist's failure abort the others.
//
// Operations emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks
