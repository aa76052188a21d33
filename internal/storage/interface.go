// Package storage defines the persistence interfaces used by the session
// state and the report archive, with sqlite, postgres, and memory backends.
package storage

import (
	"context"
	"time"

	"github.com/chrissnell/welltie/internal/narrative"
)

// OffsetStore persists the committed depth offset under a stable key
type OffsetStore interface {
	// SaveOffset stores offset under key, replacing any previous value
	SaveOffset(ctx context.Context, key string, offset float64, savedAt time.Time) error

	// LoadOffset returns the stored offset. found is false when nothing has
	// been saved under key; that is not an error.
	LoadOffset(ctx context.Context, key string) (offset float64, savedAt time.Time, found bool, err error)

	Close() error
}

// ReportArchive keeps narrative reports the reviewer chose to archive
type ReportArchive interface {
	ArchiveReport(ctx context.Context, rec ArchivedReport) error
	ListReports(ctx context.Context) ([]ArchivedReport, error)
}

// Backend is a storage engine serving both interfaces
type Backend interface {
	OffsetStore
	ReportArchive
	HealthChecker
}

// ArchivedReport is a narrative report together with the anomaly it covers
type ArchivedReport struct {
	ID             string           `json:"id" msgpack:"id"`
	Kind           string           `json:"kind" msgpack:"kind"`
	StartDepth     float64          `json:"start_depth" msgpack:"start_depth"`
	EndDepth       float64          `json:"end_depth" msgpack:"end_depth"`
	AvgDiscordance float64          `json:"avg_discordance" msgpack:"avg_discordance"`
	Report         narrative.Report `json:"report" msgpack:"report"`
	ArchivedAt     time.Time        `json:"archived_at" msgpack:"archived_at"`
}
