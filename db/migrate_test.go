package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToPgx5URL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/db":   "pgx5://u:p@localhost:5432/db",
		"postgresql://u:p@localhost:5432/db": "pgx5://u:p@localhost:5432/db",
		"pgx5://u:p@localhost:5432/db":       "pgx5://u:p@localhost:5432/db",
	}
	for in, want := range tests {
		assert.Equal(t, want, convertToPgx5URL(in), in)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var up, down int
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			up++
		case strings.HasSuffix(f, ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down, "every up migration needs a down migration")

	src, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestEmbeddedMigrations_ActiveVoteIndex(t *testing.T) {
	body, err := fs.ReadFile(migrationFiles, "migrations/000001_create_votes.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "votes_one_active_per_room")
	assert.Contains(t, string(body), "vote_results_vote_device_key")
}

func TestEmbeddedMigrations_DownKeepsItems(t *testing.T) {
	body, err := fs.ReadFile(migrationFiles, "migrations/000001_create_votes.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "DROP TABLE IF EXISTS votes")
	assert.NotContains(t, string(body), "DROP TABLE IF EXISTS items")
}
