package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/server/repositories/tokens"
	"github.com/mvrcrypto/customapi/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either the pool or an
// open transaction, so a workflow can run every store operation of its
// read-verify-write sequence on one connection.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
}
