// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/server/migrations"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/clips"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/refreshtokens"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/teams"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// gooseUpContext is swapped in tests.
var gooseUpContext = goose.UpContext

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// Teams returns a teams.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Teams(db dbx.DBTX) teams.Repository {
	return teams.NewPostgresRepository(db)
}

// Clips returns a clips.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Clips(db dbx.DBTX) clips.Repository {
	return clips.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
