// Package memory is a process-local storage backend, used when no
// persistent session store is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/welltie/internal/storage"
)

type savedOffset struct {
	offset  float64
	savedAt time.Time
}

// Store keeps offsets and reports in maps
type Store struct {
	mu      sync.RWMutex
	offsets map[string]savedOffset
	reports map[string]storage.ArchivedReport
}

var _ storage.Backend = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		offsets: make(map[string]savedOffset),
		reports: make(map[string]storage.ArchivedReport),
	}
}

func (s *Store) SaveOffset(_ context.Context, key string, offset float64, savedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[key] = savedOffset{offset: offset, savedAt: savedAt}
	return nil
}

func (s *Store) LoadOffset(_ context.Context, key string) (float64, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offsets[key]
	return o.offset, o.savedAt, ok, nil
}

func (s *Store) ArchiveReport(_ context.Context, rec storage.ArchivedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[rec.ID] = rec
	return nil
}

func (s *Store) ListReports(_ context.Context) ([]storage.ArchivedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.ArchivedReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDepth != out[j].StartDepth {
			return out[i].StartDepth < out[j].StartDepth
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CheckHealth(_ context.Context) *storage.Health {
	return storage.HealthFromErr(nil, "in-memory store")
}

func (s *Store) Close() error { return nil }
