package auditship

import (
	"time"

	"github.com/bft-labs/auditship/internal/app"
)

// State is the lifecycle state of an Auditship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// CycleEvent describes one buffer maintenance cycle.
type CycleEvent struct {
	// Pending is the number of unacknowledged reports left in memory.
	Pending  int
	Duration time.Duration
	Err      error
}

// EventHandler receives notifications about auditship operations.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnCycle(CycleEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnCycle(CycleEvent)             {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnCycle(pending int, duration time.Duration, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnCycle(CycleEvent{Pending: pending, Duration: duration, Err: err})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
