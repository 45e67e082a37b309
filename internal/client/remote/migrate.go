package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/lotkeeper/internal/client/remote/migrations"
)

// gooseUp is a seam for testing the provider run.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// Migrate brings the remote schema to the latest version.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := gooseUp(ctx, db); err != nil {
		return fmt.Errorf("remote migration error: %w", mapError(err))
	}
	return nil
}
