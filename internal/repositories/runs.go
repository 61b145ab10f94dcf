package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit bounds [RunRepository.List] when no limit is given.
const DefaultListLimit = 20

// RunRepository persists export and import runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run and its errors in one transaction, generating an ID when the run has none.
func (r *RunRepository) Create(run *models.Run) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO runs (id, kind, user_id, playlists_count, tracks_count, error_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query,
		run.ID,
		string(run.Kind),
		run.UserID,
		run.PlaylistsCount,
		run.TracksCount,
		run.ErrorCount,
		run.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_errors (run_id, position, error_type, playlist_name, track_name, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare run error insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range run.Errors {
		if _, err := stmt.Exec(run.ID, e.Position, string(e.ErrorType), e.PlaylistName, e.TrackName, e.Reason); err != nil {
			return fmt.Errorf("failed to insert run error %d: %w", e.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID with its errors in position order.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, kind, user_id, playlists_count, tracks_count, error_count, created_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT position, error_type, playlist_name, track_name, reason
		FROM run_errors
		WHERE run_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.RunError
		var errorType string
		if err := rows.Scan(&e.Position, &errorType, &e.PlaylistName, &e.TrackName, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run error: %w", err)
		}
		e.ErrorType = models.ImportErrorType(errorType)
		run.Errors = append(run.Errors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run errors: %w", err)
	}

	return run, nil
}

// List retrieves the most recent runs, newest first, without their errors.
//
// An empty userID lists runs for every user. A non-positive limit selects [DefaultListLimit].
func (r *RunRepository) List(userID string, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, kind, user_id, playlists_count, tracks_count, error_count, created_at
		FROM runs
	`
	args := []any{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run; its errors go with it.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var kind string
	if err := row.Scan(
		&run.ID,
		&kind,
		&run.UserID,
		&run.PlaylistsCount,
		&run.TracksCount,
		&run.ErrorCount,
		&run.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Kind = models.RunKind(kind)
	return &run, nil
}
