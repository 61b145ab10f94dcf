package formatter

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spm/internal/models"
)

// RenderImportSummary renders an import result for the terminal, errors grouped in the order they were reported.
func RenderImportSummary(s *models.ImportSummary) string {
	var b strings.Builder

	title := "Import complete"
	if !s.Clean() {
		title = "Import finished with errors"
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d\n", styles.ok.Render("Playlists imported:"), s.PlaylistsCount)
	fmt.Fprintf(&b, "%s %d\n", styles.ok.Render("Tracks imported:"), s.TracksCount)

	if s.Clean() {
		return b.String()
	}

	counts := s.CountByType()
	fmt.Fprintf(&b, "\n%s\n", styles.err.Render(fmt.Sprintf("%d errors", len(s.Errors))))
	for _, t := range []models.ImportErrorType{models.NotCreated, models.NotFollowed, models.TrackNotAdded, models.UnknownError} {
		if counts[t] > 0 {
			fmt.Fprintf(&b, "  %s %d\n", styles.help.Render(string(t)+":"), counts[t])
		}
	}
	b.WriteString("\n")

	for _, e := range s.Errors {
		fmt.Fprintf(&b, "%s %s\n", styles.err.Render("✗"), describeImportError(e))
	}

	return b.String()
}

func describeImportError(e models.ImportError) string {
	switch e.Type {
	case models.TrackNotAdded:
		track := e.TrackName
		if len(e.TrackArtists) > 0 {
			track = strings.Join(e.TrackArtists, ", ") + " - " + track
		}
		return fmt.Sprintf("%s / %s: %s", e.PlaylistName, track, styles.warn.Render(e.Reason))
	case models.UnknownError:
		return styles.warn.Render(e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.PlaylistName, styles.warn.Render(e.Reason))
	}
}

// RenderExportSummary renders the outcome of hydrating playlists for export.
func RenderExportSummary(playlists []models.HydratedPlaylist, path string) string {
	ok, failed := models.SplitFailed(playlists)

	var tracks, followed int
	for _, p := range ok {
		if p.Owned() {
			tracks += len(p.Tracks.Items)
		} else {
			followed++
		}
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Export complete"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d (%d followed)\n", styles.ok.Render("Playlists exported:"), len(ok), followed)
	fmt.Fprintf(&b, "%s %d\n", styles.ok.Render("Tracks exported:"), tracks)
	if path != "" {
		fmt.Fprintf(&b, "%s %s\n", styles.help.Render("Written to"), path)
	}

	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n%s\n", styles.err.Render(fmt.Sprintf("%d playlists could not be exported", len(failed))))
		for _, p := range failed {
			fmt.Fprintf(&b, "%s %s: %s\n", styles.err.Render("✗"), p.ID, styles.warn.Render(p.Error.Message))
		}
	}

	return b.String()
}

// RenderPlaylists renders a user's playlists one per line, marking those owned by userID.
func RenderPlaylists(playlists []models.SimplePlaylist, userID string) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%d playlists", len(playlists))))
	b.WriteString("\n")

	for _, p := range playlists {
		mark := styles.help.Render("followed")
		if p.Owner.ID == userID {
			mark = styles.ok.Render("owned")
		}
		fmt.Fprintf(&b, "%-24s %-40s %5d tracks  %s\n", p.ID, p.Name, p.Tracks.Total, mark)
	}

	return b.String()
}

// RenderRuns renders run history, newest first as given.
func RenderRuns(runs []models.Run) string {
	if len(runs) == 0 {
		return styles.help.Render("No runs recorded yet.") + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Run history"))
	b.WriteString("\n")
	for _, r := range runs {
		status := styles.ok.Render("ok")
		if r.ErrorCount > 0 {
			status = styles.err.Render(fmt.Sprintf("%d errors", r.ErrorCount))
		}
		fmt.Fprintf(&b, "%s  %-6s %-20s %4d playlists %6d tracks  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.UserID, r.PlaylistsCount, r.TracksCount, status)
	}
	return b.String()
}
