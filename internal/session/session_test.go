package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/welltie/internal/align"
	"github.com/chrissnell/welltie/internal/storage/memory"
	"go.uber.org/zap"
)

func newOffsets(t *testing.T) *align.OffsetController {
	t.Helper()
	c := align.NewOffsetController(align.DefaultLimit, time.Hour, zap.NewNop().Sugar())
	t.Cleanup(c.Close)
	return c
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	logger := zap.NewNop().Sugar()

	offsets := newOffsets(t)
	offsets.Commit(4.35)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s := New(store, offsets, "well-12", logger)
	s.now = func() time.Time { return at }

	savedAt, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !savedAt.Equal(at) {
		t.Errorf("expected save time %v, got %v", at, savedAt)
	}

	fresh := newOffsets(t)
	restored := New(store, fresh, "well-12", logger)
	offset, found, err := restored.Restore(ctx)
	if err != nil || !found {
		t.Fatalf("Restore: found=%v err=%v", found, err)
	}
	if offset != 4.35 || fresh.Stable() != 4.35 || fresh.Live() != 4.35 {
		t.Errorf("expected 4.35 everywhere, got offset=%v live=%v stable=%v", offset, fresh.Live(), fresh.Stable())
	}
}

func TestSaveUsesStableNotLive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	offsets := newOffsets(t)
	offsets.Commit(1)
	offsets.Set(9) // settle interval is an hour, never commits here

	if _, err := New(store, offsets, "", zap.NewNop().Sugar()).Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, _, _ := store.LoadOffset(ctx, DefaultKey)
	if got != 1 {
		t.Errorf("expected stable offset 1 to be saved, got %v", got)
	}
}

func TestRestoreWithoutPriorSession(t *testing.T) {
	offsets := newOffsets(t)
	offset, found, err := New(memory.New(), offsets, "absent", zap.NewNop().Sugar()).Restore(context.Background())
	if err != nil || found || offset != 0 {
		t.Errorf("expected no prior session, got %v %v %v", offset, found, err)
	}
	if offsets.Stable() != 0 {
		t.Errorf("offsets changed without a session: %v", offsets.Stable())
	}
}

func TestRestoreClampsStoredOffset(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_ = store.SaveOffset(ctx, "k", 250, time.Now())

	offsets := newOffsets(t)
	offset, _, _ := New(store, offsets, "k", zap.NewNop().Sugar()).Restore(ctx)
	if offset != align.DefaultLimit {
		t.Errorf("expected clamp to %v, got %v", align.DefaultLimit, offset)
	}
}

type failingStore struct{ memory.Store }

func (*failingStore) SaveOffset(context.Context, string, float64, time.Time) error {
	return errors.New("disk full")
}

func (*failingStore) LoadOffset(context.Context, string) (float64, time.Time, bool, error) {
	return 0, time.Time{}, false, errors.New("disk gone")
}

func TestStoreFailures(t *testing.T) {
	s := New(&failingStore{}, newOffsets(t), "k", zap.NewNop().Sugar())
	if _, err := s.Save(context.Background()); err == nil {
		t.Error("expected save error")
	}
	if _, _, err := s.Restore(context.Background()); err == nil {
		t.Error("expected restore error")
	}
}
