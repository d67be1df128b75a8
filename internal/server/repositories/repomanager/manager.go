package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/citygate/internal/dbx"
	"github.com/dmitrijs2005/citygate/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to a database handle or a
// transaction and owns schema setup.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
