package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/avaldezp/olap-horarios/internal/etl"
	"github.com/avaldezp/olap-horarios/internal/etl/extract"
	"github.com/avaldezp/olap-horarios/internal/warehouse"
	"github.com/avaldezp/olap-horarios/internal/web"
	"github.com/avaldezp/olap-horarios/pkg/config"
	"github.com/avaldezp/olap-horarios/pkg/cron"
	"github.com/avaldezp/olap-horarios/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Runner    *etl.Runner
	Warehouse *warehouse.Repository
	Server    *web.Server
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies. withDB controls
// whether a database connection is opened; the extract and transform modes
// run without one.
func InitDependencies(cfg *config.Config, logger *slog.Logger, withDB bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if withDB {
		if err := deps.initDatabase(); err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	if err := deps.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to init pipeline: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initPipeline wires the ETL runner and, when a database is present, the
// warehouse repository, the web server and the scheduler.
func (d *Dependencies) initPipeline() error {
	source := extract.NewPDFTableSource(d.Logger)

	if d.DB == nil {
		d.Runner = etl.New(d.Config.ETL, source, nil, d.Logger)
		return nil
	}

	d.Runner = etl.New(d.Config.ETL, source, d.DB.Pool, d.Logger)
	d.Warehouse = warehouse.New(d.DB.Pool, d.Config.ETL.Periodo, d.Config.ETL.Plan, d.Logger)
	d.Scheduler = cron.NewScheduler(d.Runner, d.Config.ETL.RefreshSpec, d.Logger)

	server, err := web.New(d.Warehouse, d.Runner, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init web server: %w", err)
	}
	d.Server = server.WithCSVPreviews(d.Config.ETL.StagingCSV(), d.Config.ETL.FactReadyCSV())

	d.Logger.Info("pipeline initialized",
		slog.String("periodo", d.Config.ETL.Periodo),
		slog.String("plan", d.Config.ETL.Plan),
	)
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
