package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/infohelper/euwork-bot/core/config"
	"github.com/infohelper/euwork-bot/core/telegram/state"
)

func noLogger(*config.Config) error { return nil }

func TestRunMemory(t *testing.T) {
	res, err := Run(context.Background(), Options{Config: &config.Config{}, LoggerInit: noLogger})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()
	if res.DB != nil {
		t.Fatal("memory driver must not open a database")
	}
	if _, ok := res.Store.(*state.MemoryStore); !ok {
		t.Fatalf("store = %T", res.Store)
	}
}

func TestRunSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = config.StorageSQLite
	cfg.Storage.Database.Path = filepath.Join(t.TempDir(), "data", "bot.db")

	res, err := Run(context.Background(), Options{Config: cfg, LoggerInit: noLogger})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()

	ctx := context.Background()
	p := state.NewProfile(7)
	p.Age = "30"
	if err := res.Store.Put(ctx, p); err != nil {
		t.Fatalf("put: %v", err)
	}
	if n, err := res.Store.Count(ctx); err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestRunFailures(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = config.StoragePostgres

	loggerErr := errors.New("disk full")
	if _, err := Run(context.Background(), Options{Config: cfg, LoggerInit: func(*config.Config) error { return loggerErr }}); !errors.Is(err, loggerErr) {
		t.Fatalf("logger err = %v", err)
	}

	connErr := errors.New("refused")
	_, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Connect: func(context.Context, string, config.DatabaseConfig) (*sqlx.DB, error) {
			return nil, connErr
		},
	})
	if !errors.Is(err, connErr) {
		t.Fatalf("connect err = %v", err)
	}

	sqliteCfg := &config.Config{}
	sqliteCfg.Storage.Driver = config.StorageSQLite
	sqliteCfg.Storage.Database.Path = filepath.Join(t.TempDir(), "bot.db")
	migErr := errors.New("dirty")
	_, err = Run(context.Background(), Options{
		Config:     sqliteCfg,
		LoggerInit: noLogger,
		Migrate:    func(*sqlx.DB) error { return migErr },
	})
	if !errors.Is(err, migErr) {
		t.Fatalf("migrate err = %v", err)
	}

	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("nil config must fail")
	}
}
