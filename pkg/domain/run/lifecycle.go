package run

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Run lifecycle states. Untyped string constants for statekit.StateID
// compatibility.
const (
	StatePending   = "pending"
	StateFetching  = "fetching"
	StatePlanning  = "planning"
	StateApplying  = "applying"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Lifecycle events.
const (
	EventFetch    = "fetch"
	EventPlan     = "plan"
	EventApply    = "apply"
	EventComplete = "complete"
	EventFail     = "fail"
)

// LifecycleContext carries run identity through the state machine.
type LifecycleContext struct {
	RunID string
}

// Lifecycle enforces the legal order of run phases: a run can only start
// applying after planning, and terminal states accept no further events.
type Lifecycle struct {
	interpreter *statekit.Interpreter[LifecycleContext]
}

// NewLifecycle builds the run state machine starting at pending.
func NewLifecycle(runID string) (*Lifecycle, error) {
	builder := statekit.NewMachine[LifecycleContext]("run-lifecycle").
		WithInitial(statekit.StateID(StatePending)).
		WithContext(LifecycleContext{RunID: runID})

	builder.State(StatePending).
		On(EventFetch).Target(StateFetching).
		On(EventPlan).Target(StatePlanning).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StateFetching).
		On(EventPlan).Target(StatePlanning).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StatePlanning).
		On(EventApply).Target(StateApplying).
		On(EventComplete).Target(StateCompleted).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StateApplying).
		On(EventComplete).Target(StateCompleted).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StateCompleted).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run lifecycle: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &Lifecycle{interpreter: interpreter}, nil
}

// Transition fires an event and errors when the event is not legal in the
// current state.
func (l *Lifecycle) Transition(event string) error {
	before := l.Current()
	l.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := l.Current()

	if before == after {
		return fmt.Errorf("event %q is not allowed while the run is %q", event, before)
	}
	return nil
}

// Current returns the current lifecycle state.
func (l *Lifecycle) Current() string {
	return string(l.interpreter.State().Value)
}

// IsTerminal reports whether the run reached completed or failed.
func (l *Lifecycle) IsTerminal() bool {
	state := l.Current()
	return state == StateCompleted || state == StateFailed
}
