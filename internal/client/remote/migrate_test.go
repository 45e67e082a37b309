package remote

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/client/remote/migrations"
)

func TestMigrate_UsesProvider(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	called := false
	gooseUp = func(ctx context.Context, db *sql.DB) error {
		called = true
		return nil
	}
	require.NoError(t, Migrate(context.Background(), nil))
	require.True(t, called)

	gooseUp = func(ctx context.Context, db *sql.DB) error { return errors.New("boom") }
	err := Migrate(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "remote migration error")
}

func TestMigrations_CoverEveryRemoteTable(t *testing.T) {
	files, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 2)

	var all string
	for _, f := range files {
		b, err := fs.ReadFile(migrations.Migrations, f)
		require.NoError(t, err)
		all += string(b)
	}
	for table := range columns {
		require.Contains(t, all, "CREATE TABLE "+table+" (")
	}
}
