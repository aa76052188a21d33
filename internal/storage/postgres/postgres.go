// Package postgres implements the session storage backend on PostgreSQL
// through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/welltie/internal/log"
	"github.com/chrissnell/welltie/internal/storage"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SessionOffset is the persisted committed offset for one session key
type SessionOffset struct {
	Key     string    `gorm:"primaryKey;column:key"`
	Offset  float64   `gorm:"column:offset_m;not null"`
	SavedAt time.Time `gorm:"column:saved_at;not null"`
}

// TableName overrides the gorm default
func (SessionOffset) TableName() string { return "session_offsets" }

// AuditReport is an archived narrative report row
type AuditReport struct {
	ID                   string    `gorm:"primaryKey;column:id"`
	Kind                 string    `gorm:"column:kind;not null"`
	StartDepth           float64   `gorm:"column:start_depth;not null;index"`
	EndDepth             float64   `gorm:"column:end_depth;not null"`
	AvgDiscordance       float64   `gorm:"column:avg_discordance"`
	Nature               string    `gorm:"column:nature"`
	PotentialCauses      string    `gorm:"column:potential_causes"`
	Remediation          string    `gorm:"column:remediation"`
	TechnicalDeduction   string    `gorm:"column:technical_deduction"`
	RegulatoryConstraint string    `gorm:"column:regulatory_constraint"`
	ImpactSummary        string    `gorm:"column:impact_summary"`
	ArchivedAt           time.Time `gorm:"column:archived_at;not null"`
}

// TableName overrides the gorm default
func (AuditReport) TableName() string { return "audit_reports" }

// Store is a PostgreSQL-backed storage.Backend
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var _ storage.Backend = (*Store)(nil)

// New connects to PostgreSQL and migrates the session tables
func New(connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	return open(postgres.Open(connectionString), logger)
}

// open migrates the session tables over dialector. The connection pool is
// closed again when migration fails.
func open(dialector gorm.Dialector, logger *zap.SugaredLogger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}
	logger.Info("PostgreSQL connection successful")

	if err := db.AutoMigrate(&SessionOffset{}, &AuditReport{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate session tables: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func gormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// SaveOffset upserts the offset stored under key
func (s *Store) SaveOffset(ctx context.Context, key string, offset float64, savedAt time.Time) error {
	row := SessionOffset{Key: key, Offset: offset, SavedAt: savedAt}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"offset_m", "saved_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save offset: %w", err)
	}
	return nil
}

// LoadOffset reads the offset stored under key
func (s *Store) LoadOffset(ctx context.Context, key string) (float64, time.Time, bool, error) {
	var row SessionOffset
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to load offset: %w", err)
	}
	return row.Offset, row.SavedAt, true, nil
}

// ArchiveReport stores or replaces an archived report
func (s *Store) ArchiveReport(ctx context.Context, rec storage.ArchivedReport) error {
	row := toRow(rec)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// ListReports returns archived reports ordered by start depth
func (s *Store) ListReports(ctx context.Context) ([]storage.ArchivedReport, error) {
	var rows []AuditReport
	if err := s.db.WithContext(ctx).Order("start_depth, archived_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query reports failed: %w", err)
	}

	reports := make([]storage.ArchivedReport, 0, len(rows))
	for _, r := range rows {
		reports = append(reports, fromRow(r))
	}
	return reports, nil
}

// CheckHealth pings the underlying connection pool
func (s *Store) CheckHealth(ctx context.Context) *storage.Health {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.HealthFromErr(err, "")
	}
	return storage.HealthFromErr(sqlDB.PingContext(ctx), "PostgreSQL database reachable")
}

// Close closes the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
