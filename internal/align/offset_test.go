package align

import (
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSettle = 30 * time.Millisecond

func newTestController() *OffsetController {
	return NewOffsetController(DefaultLimit, testSettle, zap.NewNop().Sugar())
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{in: 0, expected: 0},
		{in: 12.5, expected: 12.5},
		{in: -29.99, expected: -29.99},
		{in: 30, expected: 30},
		{in: 31, expected: 30},
		{in: -1000, expected: -30},
		{in: math.Inf(1), expected: 0},
		{in: math.Inf(-1), expected: 0},
		{in: math.NaN(), expected: 0},
	}

	for _, tt := range tests {
		got := Clamp(tt.in, DefaultLimit)
		if got != tt.expected {
			t.Errorf("Clamp(%v): expected %v, got %v", tt.in, tt.expected, got)
		}
		if got < -DefaultLimit || got > DefaultLimit {
			t.Errorf("Clamp(%v) = %v escapes the limit", tt.in, got)
		}
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
	}{
		{in: "4.25", expected: 4.25},
		{in: " -7 ", expected: -7},
		{in: "45", expected: 30},
		{in: "abc", expected: 0},
		{in: "", expected: 0},
		{in: "NaN", expected: 0},
		{in: "Inf", expected: 0},
		{in: "-inf", expected: 0},
		{in: "1e400", expected: 0},
	}

	for _, tt := range tests {
		if got := ParseOffset(tt.in, DefaultLimit); got != tt.expected {
			t.Errorf("ParseOffset(%q): expected %v, got %v", tt.in, tt.expected, got)
		}
	}
}

func TestSetDebouncesToLastValue(t *testing.T) {
	c := newTestController()
	defer c.Close()

	var mu sync.Mutex
	var commits []float64
	done := make(chan struct{}, 4)
	c.OnCommit(func(v float64) {
		mu.Lock()
		commits = append(commits, v)
		mu.Unlock()
		done <- struct{}{}
	})

	for _, v := range []float64{1, 2, 3, 4.5} {
		if got := c.Set(v); got != v {
			t.Fatalf("Set(%v) returned %v", v, got)
		}
		if c.Live() != v {
			t.Errorf("live offset should update immediately, got %v", c.Live())
		}
		if c.Stable() != 0 {
			t.Errorf("stable offset changed before settling: %v", c.Stable())
		}
	}
	if !c.Pending() {
		t.Errorf("expected a pending value")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stable offset never committed")
	}
	// Give a stray second commit the chance to show up
	time.Sleep(3 * testSettle)

	mu.Lock()
	defer mu.Unlock()
	if len(commits) != 1 || commits[0] != 4.5 {
		t.Errorf("expected exactly one commit of 4.5, got %v", commits)
	}
	if c.Stable() != 4.5 || c.Pending() {
		t.Errorf("expected stable 4.5 with nothing pending, got %v pending=%v", c.Stable(), c.Pending())
	}
}

func TestSetClampsAndCoerces(t *testing.T) {
	c := newTestController()
	defer c.Close()

	if got := c.Set(99); got != 30 {
		t.Errorf("expected 30, got %v", got)
	}
	if got := c.Set(math.NaN()); got != 0 {
		t.Errorf("expected NaN to coerce to 0, got %v", got)
	}
}

func TestCommitBypassesSettle(t *testing.T) {
	c := newTestController()
	defer c.Close()

	var got []float64
	c.OnCommit(func(v float64) { got = append(got, v) })

	c.Set(7)
	c.Commit(-12)

	if c.Stable() != -12 || c.Live() != -12 {
		t.Errorf("expected live and stable -12, got %v / %v", c.Live(), c.Stable())
	}

	// The superseded Set must never be applied
	time.Sleep(3 * testSettle)
	if c.Stable() != -12 {
		t.Errorf("superseded value was committed: %v", c.Stable())
	}
	if len(got) != 1 || got[0] != -12 {
		t.Errorf("expected a single commit of -12, got %v", got)
	}
}

func TestCloseDropsPending(t *testing.T) {
	c := newTestController()
	c.Set(5)
	c.Close()

	time.Sleep(3 * testSettle)
	if c.Stable() != 0 {
		t.Errorf("pending value committed after Close: %v", c.Stable())
	}
	if c.Set(9) != 5 {
		t.Errorf("Set after Close should leave live offset unchanged")
	}
}
