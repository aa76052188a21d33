// Package session saves and restores the committed depth offset.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/welltie/internal/align"
	"github.com/chrissnell/welltie/internal/storage"
	"go.uber.org/zap"
)

// DefaultKey is the storage key used when none is configured
const DefaultKey = "default"

// State persists the stable offset of an OffsetController
type State struct {
	store   storage.OffsetStore
	offsets *align.OffsetController
	key     string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New creates a session bound to one key in store
func New(store storage.OffsetStore, offsets *align.OffsetController, key string, logger *zap.SugaredLogger) *State {
	if key == "" {
		key = DefaultKey
	}
	return &State{
		store:   store,
		offsets: offsets,
		key:     key,
		logger:  logger,
		now:     time.Now,
	}
}

// Key returns the storage key
func (s *State) Key() string {
	return s.key
}

// Save writes the current stable offset and returns the save time
func (s *State) Save(ctx context.Context) (time.Time, error) {
	offset := s.offsets.Stable()
	at := s.now()

	if err := s.store.SaveOffset(ctx, s.key, offset, at); err != nil {
		return time.Time{}, fmt.Errorf("saving session %q: %w", s.key, err)
	}
	s.logger.Infof("session %q saved with offset %.4f m", s.key, offset)
	return at, nil
}

// Restore loads the persisted offset into both the live and stable offset.
// found is false when no prior session exists, in which case the offsets
// are left untouched.
func (s *State) Restore(ctx context.Context) (offset float64, found bool, err error) {
	stored, savedAt, found, err := s.store.LoadOffset(ctx, s.key)
	if err != nil {
		return 0, false, fmt.Errorf("restoring session %q: %w", s.key, err)
	}
	if !found {
		s.logger.Infof("no prior session under %q", s.key)
		return 0, false, nil
	}

	offset = s.offsets.Commit(stored)
	s.logger.Infof("session %q restored: offset %.4f m (saved %s)", s.key, offset, savedAt.Format(time.RFC3339))
	return offset, true, nil
}
