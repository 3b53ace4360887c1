package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/blindauth/internal/dbx"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/blindauth/internal/server/repositories/verificationtokens"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path works against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	VerificationTokens(db dbx.DBTX) verificationtokens.Repository
}
