package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/singleuse"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a handle: the pool for
// single statements or a transaction from dbx.Transactor.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	PasswordResets(db dbx.DBTX) singleuse.Repository
	EmailVerifications(db dbx.DBTX) singleuse.Repository
}
