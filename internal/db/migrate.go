package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrationFile struct {
	name string
	data []byte
}

// RunMigrations applies the migrations not yet recorded in schema_migrations,
// in name order. Files are read from migrationsDir when it exists, otherwise
// from the embedded set.
func RunMigrations(ctx context.Context, db *sql.DB, migrationsDir string, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := loadMigrations(migrationsDir)
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, mf := range files {
		var one int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE name = ?`, mf.name).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return applied, fmt.Errorf("check migration %s: %w", mf.name, err)
		}
		if len(mf.data) > 0 {
			if _, err := db.ExecContext(ctx, string(mf.data)); err != nil {
				return applied, fmt.Errorf("exec migration %s: %w", mf.name, err)
			}
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			mf.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return applied, fmt.Errorf("record migration %s: %w", mf.name, err)
		}
		logger.Info("applied migration", zap.String("name", mf.name))
		applied++
	}
	return applied, nil
}

func loadMigrations(dir string) ([]migrationFile, error) {
	if dir != "" {
		files, err := readSQLFiles(os.DirFS(dir), ".")
		if err == nil {
			return files, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}
	files, err := readSQLFiles(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	return files, nil
}

func readSQLFiles(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		files = append(files, migrationFile{name: entry.Name(), data: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}
