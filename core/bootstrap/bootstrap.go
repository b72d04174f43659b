// Package bootstrap initializes logging and the profile storage backend.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/database"
	"github.com/infohelper/euwork-bot/core/logger"
	"github.com/infohelper/euwork-bot/core/telegram/state"
)

// Storage is a profile store that can also count its profiles.
type Storage interface {
	state.Store
	state.Counter
}

// Options control the bootstrap pipeline. Nil hooks use the package defaults.
type Options struct {
	Config *config.Config

	LoggerInit func(*config.Config) error
	Connect    func(ctx context.Context, driver string, cfg config.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(db *sqlx.DB) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store Storage
	// DB is nil for the memory driver.
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, then opens and migrates the configured storage.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	driver := cfg.Storage.Driver
	if driver == "" || driver == config.StorageMemory {
		logger.DB.Info("storage ready",
			slog.String("event", "storage.open"),
			slog.String("status", "ok"),
			slog.String("driver", config.StorageMemory),
		)
		return &Result{Store: state.NewMemoryStore()}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = database.Connect
	}
	db, err := connect(ctx, driver, cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = database.RunMigrations
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	logger.DB.Info("storage ready",
		slog.String("event", "storage.open"),
		slog.String("status", "ok"),
		slog.String("driver", driver),
	)
	return &Result{Store: database.NewProfileStore(db), DB: db}, nil
}
