package busy

import (
	"errors"
	"testing"
)

func TestGuardRejectsReentry(t *testing.T) {
	var g Guard
	if g.State() != Idle {
		t.Fatalf("zero guard should be idle")
	}

	err := g.Do(func() error {
		if g.State() != Running {
			t.Errorf("expected running state inside Do")
		}
		if err := g.Do(func() error { return nil }); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy on re-entry, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if g.State() != Idle {
		t.Errorf("expected idle state after Do")
	}
}

func TestGuardReleasesOnError(t *testing.T) {
	var g Guard
	boom := errors.New("boom")

	if err := g.Do(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}
	if err := g.Enter(); err != nil {
		t.Errorf("guard should be enterable after a failed run: %v", err)
	}
	g.Leave()
}
