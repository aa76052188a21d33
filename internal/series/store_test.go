package series

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop().Sugar())
}

func TestNormalize(t *testing.T) {
	in := []Sample{
		{Depth: 3, Value: 30},
		{Depth: 1, Value: 10},
		{Depth: 2, Value: 20},
		{Depth: 1, Value: 11},
	}
	out := Normalize(in)

	expected := []Sample{{Depth: 1, Value: 11}, {Depth: 2, Value: 20}, {Depth: 3, Value: 30}}
	if len(out) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("sample %d: expected %+v, got %+v", i, expected[i], out[i])
		}
	}
	if in[0].Depth != 3 {
		t.Errorf("Normalize modified its input")
	}
}

func TestAddOverlayAssignsUniqueIDs(t *testing.T) {
	s := newTestStore()
	a := s.AddOverlay("gamma", "#ff0000", map[float64]float64{1: 10})
	b := s.AddOverlay("gamma", "#ff0000", map[float64]float64{1: 10})

	if a == "" || b == "" || a == b {
		t.Fatalf("expected two distinct ids, got %q and %q", a, b)
	}

	o, err := s.Get(a)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if o.Kind != KindOverlay || !o.Visible || len(o.Samples) != 1 {
		t.Errorf("unexpected overlay %+v", o)
	}
}

func TestAddOverlayEmptyMap(t *testing.T) {
	s := newTestStore()
	id := s.AddOverlay("empty", "", nil)

	o, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(o.Samples) != 0 || len(o.Values) != 0 {
		t.Errorf("expected zero-sample overlay, got %d samples", len(o.Samples))
	}
}

func TestRemoveOverlay(t *testing.T) {
	s := newTestStore()
	id := s.AddOverlay("res", "", map[float64]float64{1: 1})
	v := s.Version()

	if err := s.RemoveOverlay(id); err != nil {
		t.Fatalf("RemoveOverlay: %v", err)
	}
	if s.Version() == v {
		t.Errorf("expected version bump after removal")
	}
	if err := s.RemoveOverlay(id); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("expected ErrSeriesNotFound, got %v", err)
	}
	for _, primary := range []string{ReferenceID, ComparisonID} {
		if err := s.RemoveOverlay(primary); !errors.Is(err, ErrPrimarySeries) {
			t.Errorf("removing %s: expected ErrPrimarySeries, got %v", primary, err)
		}
	}
}

func TestSetVisibleIdempotentToggle(t *testing.T) {
	s := newTestStore()
	id := s.AddOverlay("density", "", map[float64]float64{1: 2.3})

	for _, target := range []string{id, ReferenceID, ComparisonID} {
		before, _ := s.Get(target)
		if err := s.SetVisible(target, !before.Visible); err != nil {
			t.Fatalf("SetVisible: %v", err)
		}
		mid, _ := s.Get(target)
		if mid.Visible == before.Visible {
			t.Errorf("%s: visibility did not change", target)
		}
		if err := s.SetVisible(target, !mid.Visible); err != nil {
			t.Fatalf("SetVisible: %v", err)
		}
		after, _ := s.Get(target)
		if after.Visible != before.Visible {
			t.Errorf("%s: expected visibility %v after two toggles, got %v", target, before.Visible, after.Visible)
		}
	}

	if err := s.SetVisible("nope", true); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("expected ErrSeriesNotFound, got %v", err)
	}
}

func TestCosmeticChangesKeepVersion(t *testing.T) {
	s := newTestStore()
	id := s.AddOverlay("sonic", "", nil)
	v := s.Version()

	_ = s.SetColor(id, "#00ff00")
	_ = s.SetVisible(ReferenceID, false)

	if s.Version() != v {
		t.Errorf("expected version %d to be unchanged, got %d", v, s.Version())
	}
	o, _ := s.Get(id)
	if o.Color != "#00ff00" {
		t.Errorf("expected color to be updated, got %q", o.Color)
	}
}

func TestSnapshotIsStable(t *testing.T) {
	s := newTestStore()
	id := s.AddOverlay("a", "red", nil)
	snap := s.Snapshot()

	_ = s.SetColor(id, "blue")
	s.AddOverlay("b", "", nil)

	if len(snap.Overlays) != 1 || snap.Overlays[0].Color != "red" {
		t.Errorf("snapshot changed after store mutation: %+v", snap.Overlays)
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		expected []string
		err      error
	}{
		{name: "move first to last", from: 0, to: 2, expected: []string{"b", "c", "a"}},
		{name: "move last to first", from: 2, to: 0, expected: []string{"c", "a", "b"}},
		{name: "no-op", from: 1, to: 1, expected: []string{"a", "b", "c"}},
		{name: "out of range", from: 0, to: 3, expected: []string{"a", "b", "c"}, err: ErrIndexOutOfRange},
		{name: "negative", from: -1, to: 0, expected: []string{"a", "b", "c"}, err: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			for _, name := range []string{"a", "b", "c"} {
				s.AddOverlay(name, "", nil)
			}

			err := s.Reorder(tt.from, tt.to)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, got %v", tt.err, err)
			}

			all := s.Series()
			if all[0].ID != ReferenceID || all[1].ID != ComparisonID {
				t.Fatalf("primary series moved: %s, %s", all[0].ID, all[1].ID)
			}
			for i, name := range tt.expected {
				if all[i+2].Name != name {
					t.Errorf("position %d: expected %s, got %s", i, name, all[i+2].Name)
				}
			}
		})
	}
}
