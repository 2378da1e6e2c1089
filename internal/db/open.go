package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverCGo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Open opens the SQLite database at path with the given driver, creating its
// directory when missing. "sqlite3" is the cgo driver, "sqlite" the pure Go one.
func Open(driver, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	var dsn string
	switch driver {
	case DriverCGo, "":
		driver = DriverCGo
		dsn = fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	case DriverPureGo:
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
