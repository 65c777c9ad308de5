// Package repomanager wires concrete repository implementations to database
// handles and applies embedded schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/server/migrations"
	"github.com/mvrcrypto/customapi/internal/server/repositories/tokens"
	"github.com/mvrcrypto/customapi/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
