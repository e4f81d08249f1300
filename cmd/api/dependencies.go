package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paisaledger/paisaledger/internal/domain/statement/dedup"
	"github.com/paisaledger/paisaledger/internal/domain/statement/handler"
	"github.com/paisaledger/paisaledger/internal/domain/statement/importer"
	"github.com/paisaledger/paisaledger/internal/domain/statement/service"
	"github.com/paisaledger/paisaledger/internal/store"
	"github.com/paisaledger/paisaledger/internal/store/memory"
	"github.com/paisaledger/paisaledger/internal/store/postgres"
	"github.com/paisaledger/paisaledger/internal/store/workbook"
	"github.com/paisaledger/paisaledger/pkg/config"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Workbook *workbook.Store
	Store    store.Store

	StatementService *service.Service
	StatementHandler *handler.Handler
}

// InitDependencies wires the application together.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	if err := deps.initStore(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	imp := importer.New(deps.Store, dedup.New(), logger)
	deps.StatementService = service.New(imp, logger)
	deps.StatementHandler = handler.New(deps.StatementService, logger)

	logger.Info("dependencies initialized", "storage_backend", cfg.Storage.Backend)
	return deps, nil
}

// initStore opens the configured storage backend. Postgres also runs the
// embedded migrations.
func (d *Dependencies) initStore(ctx context.Context) error {
	switch d.Config.Storage.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, d.Config.Database.DSN())
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		d.Pool = pool
		d.Store = postgres.New(pool)
		d.Logger.Info("postgres connected and migrations applied")

	case config.BackendWorkbook:
		wb, err := workbook.Open(d.Config.Storage.WorkbookPath)
		if err != nil {
			return err
		}
		d.Workbook = wb
		d.Store = wb
		d.Logger.Info("workbook opened", "path", d.Config.Storage.WorkbookPath)

	case config.BackendMemory:
		d.Store = memory.New()
		d.Logger.Warn("using in-memory storage, data will not survive restarts")

	default:
		return fmt.Errorf("unknown storage backend %q", d.Config.Storage.Backend)
	}
	return nil
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Workbook != nil {
		if err := d.Workbook.Close(); err != nil {
			d.Logger.Error("close workbook", "error", err)
		}
	}
	d.Logger.Info("cleanup completed")
}
