// Package busy provides a non-reentrant Idle/Running guard for long operations.
package busy

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when an operation is invoked while already running
var ErrBusy = errors.New("operation already in progress")

// State is the guard state
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Guard rejects re-entry while an operation is running. The zero value is
// an idle guard.
type Guard struct {
	state atomic.Int32
}

// Enter moves the guard to Running. It returns ErrBusy without waiting when
// the guard is already Running.
func (g *Guard) Enter() error {
	if !g.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrBusy
	}
	return nil
}

// Leave moves the guard back to Idle
func (g *Guard) Leave() {
	g.state.Store(int32(Idle))
}

// State reports the current state
func (g *Guard) State() State {
	return State(g.state.Load())
}

// Do runs fn while holding the guard
func (g *Guard) Do(fn func() error) error {
	if err := g.Enter(); err != nil {
		return err
	}
	defer g.Leave()
	return fn()
}
