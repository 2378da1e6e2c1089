package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/api"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.Named("sqlite"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func NewStore(db *sql.DB, logger *zap.Logger) (api.Store, error) {
	return NewSQLiteStore(db, logger)
}

func (s *SQLiteStore) Exists(ctx context.Context, collection, signature string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE collection = ? AND signature = ? LIMIT 1`,
		collection, signature).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", collection, err)
	}
	return true, nil
}

func (s *SQLiteStore) Select(ctx context.Context, collection, signature string) (*api.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, payload, updated_at FROM records WHERE collection = ? AND signature = ?`,
		collection, signature)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer rows.Close()

	var rec *api.Record
	for rows.Next() {
		var field, payload, updated string
		if err := rows.Scan(&field, &payload, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if rec == nil {
			rec = &api.Record{Collection: collection, Signature: signature, Fields: map[string]string{}}
		}
		rec.Fields[field] = payload
		if t := s.parseTime(updated); t.After(rec.UpdatedAt) {
			rec.UpdatedAt = t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return rec, nil
}

// Upsert writes each field of rec with INSERT ... ON CONFLICT, so a single
// field update is one atomic statement. Fields not named in rec are kept.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *api.Record) error {
	if rec == nil || rec.Collection == "" || rec.Signature == "" {
		return errors.New("upsert: collection and signature required")
	}
	if len(rec.Fields) == 0 {
		return nil
	}
	at := rec.UpdatedAt
	if at.IsZero() {
		at = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for field, payload := range rec.Fields {
		_, err := tx.ExecContext(ctx, `
INSERT INTO records (collection, signature, field, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, signature, field)
DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			rec.Collection, rec.Signature, field, payload, at.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("upsert %s.%s: %w", rec.Collection, field, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context, collection string) ([]*api.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT signature, field, payload, updated_at FROM records WHERE collection = ? ORDER BY signature, field`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []*api.Record{}
	var cur *api.Record
	for rows.Next() {
		var sig, field, payload, updated string
		if err := rows.Scan(&sig, &field, &payload, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		if cur == nil || cur.Signature != sig {
			cur = &api.Record{Collection: collection, Signature: sig, Fields: map[string]string{}}
			out = append(out, cur)
		}
		cur.Fields[field] = payload
		if t := s.parseTime(updated); t.After(cur.UpdatedAt) {
			cur.UpdatedAt = t
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.logger.Warn("unparseable updated_at", zap.String("value", v), zap.Error(err))
		return time.Time{}
	}
	return t
}

var _ api.Store = (*SQLiteStore)(nil)
