package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/pkg/log"
)

// ShutdownTimeout is the maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of the sender.
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
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// refusal is the error for a rejected transition out of from.
func refusal(from State) error {
	if from == StateStopped || from == StateCrashed {
		return domain.ErrNotRunning
	}
	return domain.ErrAlreadyRunning
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle drives one sender run: Begin opens it, Retire closes it for
// good. It also tracks the background workers of the run.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	retired bool
	cancel  context.CancelFunc
	workers conc.WaitGroup

	logger  log.Logger
	emitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateStopped.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Accepting reports whether new audit requests may be taken.
func (l *Lifecycle) Accepting() bool {
	s := l.State()
	return s == StateStarting || s == StateRunning
}

// TransitionTo moves to newState. An invalid transition leaves the state
// unchanged and returns ErrNotRunning or ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	old, err := l.moveLocked(newState)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.announce(old, newState, reason)
	return nil
}

func (l *Lifecycle) moveLocked(newState State) (State, error) {
	old := l.state
	if !slices.Contains(transitions[old], newState) {
		return old, refusal(old)
	}
	l.state = newState
	return old, nil
}

func (l *Lifecycle) announce(old, current State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(old, current, reason)
	}
	l.logger.Info("state transition",
		log.String("from", old.String()),
		log.String("to", current.String()),
		log.String("reason", reason),
	)
}

// CanStart returns true if Begin can succeed.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.retired && slices.Contains(transitions[l.state], StateStarting)
}

// CanStop returns true if Retire can succeed.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// Begin moves to StateStarting and returns the context of the new run.
// A retired lifecycle returns ErrClosed.
func (l *Lifecycle) Begin(parent context.Context, reason string) (context.Context, error) {
	l.mu.Lock()
	if l.retired {
		l.mu.Unlock()
		return nil, domain.ErrClosed
	}
	old, err := l.moveLocked(StateStarting)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.mu.Unlock()

	l.announce(old, StateStarting, reason)
	return ctx, nil
}

// Go runs fn as a tracked worker of the current run.
func (l *Lifecycle) Go(fn func()) {
	l.workers.Go(fn)
}

// Cancel cancels the context of the current run.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Retire moves to StateStopping, cancels the run and waits up to timeout
// for its workers. A retired lifecycle never starts again. The caller
// finishes with Settle once its own teardown is done.
func (l *Lifecycle) Retire(reason string, timeout time.Duration) error {
	l.mu.Lock()
	if l.state != StateRunning && l.state != StateStarting {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	old, err := l.moveLocked(StateStopping)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.retired = true
	cancel := l.cancel
	l.mu.Unlock()

	l.announce(old, StateStopping, reason)
	if cancel != nil {
		cancel()
	}
	return l.WaitWithTimeout(timeout)
}

// Settle records the outcome of a shutdown: StateStopped when waitErr is
// nil, StateCrashed otherwise.
func (l *Lifecycle) Settle(waitErr error) {
	if waitErr != nil {
		_ = l.TransitionTo(StateCrashed, "shutdown timeout")
		return
	}
	_ = l.TransitionTo(StateStopped, "graceful shutdown")
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
