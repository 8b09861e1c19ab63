// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/server/migrations"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/components"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/maps"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/tombstones"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Maps(db dbx.DBTX) maps.Repository {
	return maps.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Components(db dbx.DBTX) components.Repository {
	return components.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tombstones(db dbx.DBTX) tombstones.Repository {
	return tombstones.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
