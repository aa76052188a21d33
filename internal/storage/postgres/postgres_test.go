package postgres

import (
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	_ "modernc.org/sqlite"
)

func TestOpenClosesPoolWhenMigrationFails(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "conflict.db"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer sqlDB.Close()

	// The table lookup is PostgreSQL-only, so migration sees no table and
	// the CREATE TABLE collides with this one.
	if _, err := sqlDB.Exec(`CREATE TABLE session_offsets (key TEXT)`); err != nil {
		t.Fatalf("seeding conflicting table: %v", err)
	}

	s, err := open(postgres.New(postgres.Config{Conn: sqlDB}), zap.NewNop().Sugar())
	if err == nil {
		s.Close()
		t.Fatal("expected migration to fail")
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("expected the connection pool to be closed after a failed migration")
	}
}
