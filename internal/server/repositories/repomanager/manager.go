package repomanager

import (
	"context"
	"database/sql"

	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/clips"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/refreshtokens"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/teams"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, which
// lets a service run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Teams(db dbx.DBTX) teams.Repository
	Clips(db dbx.DBTX) clips.Repository
}
