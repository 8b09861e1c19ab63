// Package server initializes and runs the catalog server.
// It opens the database, applies migrations, wires the services to the
// ArchivesSpace client and serves the HTTP API until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cartographer/internal/archivesspace"
	"github.com/dmitrijs2005/cartographer/internal/logging"
	"github.com/dmitrijs2005/cartographer/internal/server/config"
	"github.com/dmitrijs2005/cartographer/internal/server/httpapi"
	"github.com/dmitrijs2005/cartographer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cartographer/internal/server/services"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	catalog  *services.CatalogService
	sync     *services.SyncService
	exporter *services.SnapshotExporter
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	archive := archivesspace.New(archivesspace.Config{
		BaseURL:  c.ASpaceBaseURL,
		Username: c.ASpaceUsername,
		Password: c.ASpacePassword,
		RepoID:   c.ASpaceRepoID,
		Timeout:  c.ExternalTimeout,
	}, logger)

	propagator := services.NewPropagator(archive, c.PropagationConcurrency, logger)
	catalog := services.NewCatalogService(db, rm, archive, propagator, logger)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		catalog:  catalog,
		sync:     services.NewSyncService(db, rm, archive),
		exporter: services.NewSnapshotExporter(catalog, c, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.catalog, app.sync, app.exporter, app.config.EditorSecret)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the server fails, then closes the
// database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	gin.SetMode(gin.ReleaseMode)
	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
