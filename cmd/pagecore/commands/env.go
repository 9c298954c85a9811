package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/stores"
	"github.com/openfroyo/pagecore/pkg/telemetry"
)

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment is the telemetry and journal shared by every run of one
// command invocation.
type environment struct {
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
}

func openEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	env := &environment{tel: tel}

	tel.Metrics.StartMetricsServer(func(err error) {
		tel.Logger.WithError(err).Error("Metrics server stopped")
	})

	if cfg.Journal.Enabled {
		store, err := openStore(ctx, cfg.Journal.Path)
		if err != nil {
			_ = env.Close()
			return nil, err
		}
		env.store = store
		stores.NewJournal(store, tel.Logger).Attach(tel.Events)
		tel.Logger.Debugf("Journal attached at %s", cfg.Journal.Path)
	}
	return env, nil
}

// Close drains telemetry into the journal before closing it.
func (e *environment) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := e.tel.Shutdown(ctx)
	if e.store != nil {
		err = errors.Join(err, e.store.Close())
	}
	if err != nil {
		log.Warn().Err(err).Msg("Shutdown was not clean")
	}
	return err
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return store, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
