// Package storage opens the client's local SQLite database and wires up the
// repositories that live in it.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Aphrodine-wq/clipsync/internal/client/migrations"
	"github.com/Aphrodine-wq/clipsync/internal/client/outbox"
	"github.com/Aphrodine-wq/clipsync/internal/client/repositories/clips"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories bundles everything backed by the local database.
type Repositories struct {
	Clips  clips.Repository
	Outbox outbox.Repository
	DB     *sql.DB
}

// RunMigrations applies the embedded goose migration set.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if absent) the SQLite database at dsn,
// migrates it, and returns the repository set.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Clips:  clips.NewSQLiteRepository(db),
		Outbox: outbox.NewSQLiteRepository(db),
		DB:     db,
	}, nil
}
