// Package series holds the depth-indexed log traces of a review session: the
// reference log, the comparison log, and any number of overlay traces.
package series

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSeriesNotFound  = errors.New("series not found")
	ErrPrimarySeries   = errors.New("primary series cannot be removed or reordered")
	ErrIndexOutOfRange = errors.New("overlay index out of range")
)

// Store owns every series in the session. Series values are never mutated
// in place; each change swaps in a fresh copy so that snapshots handed out
// earlier stay valid.
type Store struct {
	mu         sync.RWMutex
	logger     *zap.SugaredLogger
	reference  *Series
	comparison *Series
	overlays   []*Series
	version    uint64
}

// NewStore creates an empty store with placeholder primary series
func NewStore(logger *zap.SugaredLogger) *Store {
	return &Store{
		logger:     logger,
		reference:  &Series{ID: ReferenceID, Kind: KindReference, Name: "Reference", Visible: true},
		comparison: &Series{ID: ComparisonID, Kind: KindComparison, Name: "Comparison", Visible: true},
	}
}

// SetReference installs the reference log
func (s *Store) SetReference(name, color string, samples []Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reference = &Series{
		ID:      ReferenceID,
		Kind:    KindReference,
		Name:    name,
		Color:   color,
		Visible: true,
		Samples: Normalize(samples),
	}
	s.version++
	s.logger.Debugf("reference series %q loaded with %d samples", name, len(s.reference.Samples))
}

// SetComparison installs the comparison log
func (s *Store) SetComparison(name, color string, samples []Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.comparison = &Series{
		ID:      ComparisonID,
		Kind:    KindComparison,
		Name:    name,
		Color:   color,
		Visible: true,
		Samples: Normalize(samples),
	}
	s.version++
	s.logger.Debugf("comparison series %q loaded with %d samples", name, len(s.comparison.Samples))
}

// AddOverlay attaches an overlay trace keyed by exact depth and returns its id
func (s *Store) AddOverlay(name, color string, values map[float64]float64) string {
	overlay := &Series{
		ID:      uuid.New().String(),
		Kind:    KindOverlay,
		Name:    name,
		Color:   color,
		Visible: true,
		Values:  make(map[float64]float64, len(values)),
	}
	for d, v := range values {
		overlay.Values[d] = v
	}
	overlay.Samples = SamplesFromMap(overlay.Values)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.overlays = append(s.overlays, overlay)
	s.version++
	s.logger.Debugf("overlay %q added as %s with %d samples", name, overlay.ID, len(overlay.Samples))
	return overlay.ID
}

// RemoveOverlay detaches an overlay
func (s *Store) RemoveOverlay(id string) error {
	if isPrimary(id) {
		return fmt.Errorf("remove %s: %w", id, ErrPrimarySeries)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.overlayIndex(id)
	if idx < 0 {
		return fmt.Errorf("remove %s: %w", id, ErrSeriesNotFound)
	}

	overlays := make([]*Series, 0, len(s.overlays)-1)
	overlays = append(overlays, s.overlays[:idx]...)
	overlays = append(overlays, s.overlays[idx+1:]...)
	s.overlays = overlays
	s.version++
	return nil
}

// SetVisible sets the visibility flag of any series, primaries included
func (s *Store) SetVisible(id string, visible bool) error {
	return s.update(id, func(c *Series) { c.Visible = visible })
}

// SetColor sets the display color of any series, primaries included
func (s *Store) SetColor(id, color string) error {
	return s.update(id, func(c *Series) { c.Color = color })
}

// Reorder moves the overlay at fromIndex to toIndex. Indices address the
// overlay list only; the primary series keep their fixed positions.
func (s *Store) Reorder(fromIndex, toIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.overlays)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return fmt.Errorf("reorder %d -> %d of %d overlays: %w", fromIndex, toIndex, n, ErrIndexOutOfRange)
	}
	if fromIndex == toIndex {
		return nil
	}

	overlays := make([]*Series, 0, n)
	moved := s.overlays[fromIndex]
	for i, o := range s.overlays {
		if i != fromIndex {
			overlays = append(overlays, o)
		}
	}
	overlays = append(overlays[:toIndex], append([]*Series{moved}, overlays[toIndex:]...)...)
	s.overlays = overlays
	s.version++
	return nil
}

// Get returns a copy of a single series
func (s *Store) Get(id string) (*Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch id {
	case ReferenceID:
		return clone(s.reference), nil
	case ComparisonID:
		return clone(s.comparison), nil
	}
	if idx := s.overlayIndex(id); idx >= 0 {
		return clone(s.overlays[idx]), nil
	}
	return nil, fmt.Errorf("get %s: %w", id, ErrSeriesNotFound)
}

// Series lists all series in display order: reference, comparison, overlays
func (s *Store) Series() []*Series {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Series, 0, len(s.overlays)+2)
	all = append(all, clone(s.reference), clone(s.comparison))
	for _, o := range s.overlays {
		all = append(all, clone(o))
	}
	return all
}

// Snapshot returns the current series set. The returned values are shared
// with the store and must be treated as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Version:    s.version,
		Reference:  s.reference,
		Comparison: s.comparison,
		Overlays:   append([]*Series(nil), s.overlays...),
	}
}

// Version returns the data version, bumped on every change that can alter
// the combined dataset. Cosmetic changes (color, visibility) do not bump it.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) update(id string, apply func(*Series)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch id {
	case ReferenceID:
		c := *s.reference
		apply(&c)
		s.reference = &c
		return nil
	case ComparisonID:
		c := *s.comparison
		apply(&c)
		s.comparison = &c
		return nil
	}

	idx := s.overlayIndex(id)
	if idx < 0 {
		return fmt.Errorf("update %s: %w", id, ErrSeriesNotFound)
	}
	c := *s.overlays[idx]
	apply(&c)
	overlays := append([]*Series(nil), s.overlays...)
	overlays[idx] = &c
	s.overlays = overlays
	return nil
}

func (s *Store) overlayIndex(id string) int {
	for i, o := range s.overlays {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func isPrimary(id string) bool {
	return id == ReferenceID || id == ComparisonID
}
