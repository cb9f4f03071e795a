package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	users, err := fs.ReadFile(migrationsFS, "migrations/00001_create_users.sql")
	require.NoError(t, err)
	body := string(users)
	assert.Contains(t, body, "-- +goose Up")
	assert.Contains(t, body, "-- +goose Down")
	assert.Contains(t, body, "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email")
	assert.Contains(t, body, "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username")
	assert.True(t, strings.Contains(body, "refresh_token"))
}

func TestRunMigrations(t *testing.T) {
	original := gooseUp
	t.Cleanup(func() { gooseUp = original })

	var gotDir string
	gooseUp = func(_ context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, runMigrations(context.Background(), nil))
	assert.Equal(t, "migrations", gotDir)

	gooseUp = func(context.Context, *sql.DB, string) error {
		return errors.New("relation already exists")
	}
	err := runMigrations(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migrations")
}
