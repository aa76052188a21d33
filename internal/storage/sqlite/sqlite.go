// Package sqlite implements the session storage backend on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/welltie/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_offsets (
	key        TEXT PRIMARY KEY,
	offset_m   REAL NOT NULL,
	saved_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_reports (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	start_depth REAL NOT NULL,
	end_depth   REAL NOT NULL,
	archived_at INTEGER NOT NULL,
	payload     BLOB NOT NULL
);
`

// Store is a SQLite-backed storage.Backend
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.SugaredLogger
}

var _ storage.Backend = (*Store)(nil)

// New opens (creating if needed) the database at dbPath. Use ":memory:" for
// a throwaway database.
func New(dbPath string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which SQLite wants anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Debugf("SQLite session store ready at %s", dbPath)
	return &Store{db: db, dbPath: dbPath, logger: logger}, nil
}

// SaveOffset upserts the offset stored under key
func (s *Store) SaveOffset(ctx context.Context, key string, offset float64, savedAt time.Time) error {
	query := `
		INSERT INTO session_offsets (key, offset_m, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key)
		DO UPDATE SET offset_m = excluded.offset_m, saved_at = excluded.saved_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, offset, savedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to save offset: %w", err)
	}
	return nil
}

// LoadOffset reads the offset stored under key
func (s *Store) LoadOffset(ctx context.Context, key string) (float64, time.Time, bool, error) {
	var offset float64
	var savedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT offset_m, saved_at FROM session_offsets WHERE key = ?`, key,
	).Scan(&offset, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to load offset: %w", err)
	}
	return offset, time.Unix(0, savedAt), true, nil
}

// ArchiveReport stores a report as a MessagePack blob
func (s *Store) ArchiveReport(ctx context.Context, rec storage.ArchivedReport) error {
	payload, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO audit_reports (id, kind, start_depth, end_depth, archived_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET payload = excluded.payload, archived_at = excluded.archived_at
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Kind, rec.StartDepth, rec.EndDepth, rec.ArchivedAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// ListReports returns archived reports ordered by start depth
func (s *Store) ListReports(ctx context.Context) ([]storage.ArchivedReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_reports ORDER BY start_depth, archived_at`)
	if err != nil {
		return nil, fmt.Errorf("query reports failed: %w", err)
	}
	defer rows.Close()

	reports := []storage.ArchivedReport{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		var rec storage.ArchivedReport
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			s.logger.Warnf("skipping undecodable archived report: %v", err)
			continue
		}
		reports = append(reports, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return reports, nil
}

// CheckHealth pings the database
func (s *Store) CheckHealth(ctx context.Context) *storage.Health {
	return storage.HealthFromErr(s.db.PingContext(ctx), "SQLite database reachable")
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
