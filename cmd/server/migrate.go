package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/api"
	"github.com/soaringjerry/cracks/internal/config"
	dbstore "github.com/soaringjerry/cracks/internal/db"
)

// MigrateIfNeeded imports the legacy snapshot into a fresh SQLite database.
// It does nothing when the database file already exists or no snapshot is
// available, and reports whether an import ran.
func MigrateIfNeeded(ctx context.Context, dbc config.DatabaseConfig, logger *zap.Logger) (bool, error) {
	if dbc.Path == "" {
		return false, errors.New("sqlite path is required")
	}
	if _, err := os.Stat(dbc.Path); err == nil {
		return false, nil // already migrated
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("check sqlite file: %w", err)
	}
	if dbc.Snapshot == "" {
		return false, nil
	}

	snap, err := api.LoadLegacySnapshot(dbc.Snapshot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("legacy snapshot not found, starting empty", zap.String("snapshot", dbc.Snapshot))
			return false, nil
		}
		return false, fmt.Errorf("load legacy snapshot: %w", err)
	}

	logger.Info("first run detected, importing legacy snapshot",
		zap.String("snapshot", dbc.Snapshot), zap.Int("records", snap.Count()))

	sqliteDB, err := dbstore.Open(dbc.Driver, dbc.Path)
	if err != nil {
		return false, err
	}
	imported := false
	defer func() {
		if cerr := sqliteDB.Close(); cerr != nil {
			logger.Warn("failed to close sqlite db", zap.Error(cerr))
		}
		if !imported {
			// leave no half-imported database behind so the next start retries
			if rerr := removeDatabase(dbc.Path); rerr != nil {
				logger.Warn("failed to remove partial sqlite db", zap.String("path", dbc.Path), zap.Error(rerr))
			}
		}
	}()

	if _, err := dbstore.RunMigrations(ctx, sqliteDB, dbc.MigrationsDir, logger); err != nil {
		return false, fmt.Errorf("run migrations: %w", err)
	}
	dst, err := dbstore.NewSQLiteStore(sqliteDB, logger)
	if err != nil {
		return false, fmt.Errorf("init sqlite store: %w", err)
	}
	n, err := api.ImportSnapshot(ctx, snap, dst)
	if err != nil {
		return false, fmt.Errorf("copy data: %w", err)
	}
	imported = true

	logger.Info("legacy import completed", zap.Int("records", n))
	return true, nil
}

// removeDatabase deletes a SQLite file together with its WAL and shared
// memory companions.
func removeDatabase(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func migrateCmd(c *cli) *cobra.Command {
	var snapshot, path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema, importing a legacy snapshot on first run",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc := c.cfg.Database
			if snapshot != "" {
				dbc.Snapshot = snapshot
			}
			if path != "" {
				dbc.Path = path
			}
			if dbc.Driver == config.DriverMemory {
				return errors.New("migrate needs a sqlite driver")
			}
			imported, err := MigrateIfNeeded(cmd.Context(), dbc, c.logger)
			if err != nil {
				return err
			}
			sqliteDB, err := dbstore.Open(dbc.Driver, dbc.Path)
			if err != nil {
				return err
			}
			defer sqliteDB.Close()
			n, err := dbstore.RunMigrations(cmd.Context(), sqliteDB, dbc.MigrationsDir, c.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s ready (imported=%t, migrations applied=%d)\n", dbc.Path, imported, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Legacy JSON dump to import on first run")
	cmd.Flags().StringVar(&path, "db", "", "SQLite database path (overrides config)")
	return cmd
}
