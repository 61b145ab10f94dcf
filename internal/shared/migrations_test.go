package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		require.NoError(t, err)
		require.NotEmpty(t, migrations)

		for i := 1; i < len(migrations); i++ {
			assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
		}
		for _, m := range migrations {
			assert.NotEmpty(t, m.Up, "version %d missing up SQL", m.Version)
			assert.NotEmpty(t, m.Down, "version %d missing down SQL", m.Version)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, RunMigrations(db))
		require.NoError(t, RunMigrations(db), "migrations should be idempotent")

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.Equal(t, 2, count)

		var name string
		require.NoError(t, db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='run_errors'").Scan(&name))

		require.NoError(t, RollbackMigration(db))
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='run_errors'").Scan(&name)
		assert.Error(t, err, "run_errors should be dropped")

		require.NoError(t, RollbackMigration(db))
		assert.Error(t, RollbackMigration(db), "nothing left to roll back")
	})
}

func TestSplitStatements(t *testing.T) {
	script := `
-- leading comment
CREATE TABLE a (id INTEGER); -- trailing
CREATE INDEX idx ON a(id);

;
`
	got := splitStatements(script)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx ON a(id)"}, got)
}

func TestOpenDatabase(t *testing.T) {
	t.Run("memory database is migrated", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Path: ":memory:"})
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec("INSERT INTO runs (id, kind, user_id) VALUES ('r1', 'import', 'u1')")
		require.NoError(t, err)
	})

	t.Run("file database", func(t *testing.T) {
		path := t.TempDir() + "/spm.db"
		db, err := OpenDatabase(DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 1})
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 2, db.Stats().MaxOpenConnections)
	})
}
