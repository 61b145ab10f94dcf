package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleImportRun(userID string, at time.Time) models.Run {
	p := models.Playlist{ID: "p1", Name: "Mine", Href: "https://api.spotify.com/v1/playlists/p1"}
	run := models.NewImportRun("", userID, &models.ImportSummary{
		PlaylistsCount: 1,
		TracksCount:    99,
		Errors: []models.ImportError{
			models.NewNotCreated(p, "Insufficient client scope"),
			models.NewTrackShortfall(99, 100),
		},
	})
	run.CreatedAt = at
	return run
}

func TestRunRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := sampleImportRun("alice", time.Now().UTC().Truncate(time.Second))

		require.NoError(t, repo.Create(&run))
		assert.NotEmpty(t, run.ID)

		got, err := repo.Get(run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunImport, got.Kind)
		assert.Equal(t, "alice", got.UserID)
		assert.Equal(t, 1, got.PlaylistsCount)
		assert.Equal(t, 99, got.TracksCount)
		assert.Equal(t, 2, got.ErrorCount)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

		require.Len(t, got.Errors, 2)
		assert.Equal(t, models.NotCreated, got.Errors[0].ErrorType)
		assert.Equal(t, "Mine", got.Errors[0].PlaylistName)
		assert.Equal(t, "Insufficient client scope", got.Errors[0].Reason)
		assert.Equal(t, 1, got.Errors[1].Position)
		assert.Equal(t, models.Unknown, got.Errors[1].TrackName)
	})

	t.Run("export runs have no errors", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewExportRun(shared.GenerateID(), "alice", []models.HydratedPlaylist{
			{Playlist: models.Playlist{ID: "p1"}, Tracks: &models.TrackPage{}},
			models.NewFailedPlaylist("p2", 404, "Not found"),
		})

		require.NoError(t, repo.Create(&run))
		got, err := repo.Get(run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunExport, got.Kind)
		assert.Equal(t, 1, got.ErrorCount)
		assert.Empty(t, got.Errors)
	})

	t.Run("List is newest first and filtered by user", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

		for i, user := range []string{"alice", "bob", "alice"} {
			run := sampleImportRun(user, base.Add(time.Duration(i)*time.Hour))
			require.NoError(t, repo.Create(&run))
		}

		all, err := repo.List("", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "alice", all[0].UserID)
		assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
		assert.Nil(t, all[0].Errors)

		alice, err := repo.List("alice", 0)
		require.NoError(t, err)
		assert.Len(t, alice, 2)

		limited, err := repo.List("", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		none, err := repo.List("carol", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Delete cascades to errors", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		run := sampleImportRun("alice", time.Now().UTC())
		require.NoError(t, repo.Create(&run))

		require.NoError(t, repo.Delete(run.ID))

		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM run_errors WHERE run_id = ?", run.ID).Scan(&n))
		assert.Zero(t, n)
		assert.ErrorIs(t, repo.Delete(run.ID), ErrRunNotFound)
	})
}

func TestRunRepositoryErrors(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			_, err := repo.Get("nonexistent-id")
			assert.ErrorIs(t, err, ErrRunNotFound)
		})
	})

	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			run := models.Run{Kind: models.RunImport}
			assert.Error(t, repo.Create(&run))
		})

		t.Run("DuplicateID", func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			first := sampleImportRun("alice", time.Now().UTC())
			require.NoError(t, repo.Create(&first))

			second := sampleImportRun("alice", time.Now().UTC())
			second.ID = first.ID
			assert.Error(t, repo.Create(&second))

			got, err := repo.Get(first.ID)
			require.NoError(t, err)
			assert.Len(t, got.Errors, 2)
		})

		t.Run("ClosedDatabase", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewRunRepository(db)
			db.Close()

			run := sampleImportRun("alice", time.Now().UTC())
			assert.Error(t, repo.Create(&run))
			_, err := repo.List("", 0)
			assert.Error(t, err)
		})
	})
}
