package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/components"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/maps"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/tombstones"
)

// RepositoryManager vends repositories bound to a connection or a transaction,
// so a service can run several of them inside one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Maps(db dbx.DBTX) maps.Repository
	Components(db dbx.DBTX) components.Repository
	Tombstones(db dbx.DBTX) tombstones.Repository
}
