package execution

import (
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Event types for the run state machine.
const (
	EventStart    = "START"
	EventComplete = "COMPLETE"
	EventAbort    = "ABORT"
	EventReset    = "RESET"
)

// State names as untyped constants so they convert to statekit's ID types.
const (
	stateNotStarted = "not_started"
	stateRunning    = "running"
	stateCompleted  = "completed"
	stateAborted    = "aborted"
)

// machineContext is the statekit context type for a run.
type machineContext struct {
	RunID string
}

// buildRunMachine constructs not_started -> running -> {completed, aborted}.
// The report pointer is captured by the entry actions so timestamps land on
// the caller's report.
func buildRunMachine(report *Report) (*statekit.Interpreter[machineContext], error) {
	machine, err := statekit.NewMachine[machineContext]("vpsctl-run").
		WithInitial(stateNotStarted).
		WithContext(machineContext{RunID: report.RunID}).
		WithAction("markStarted", func(_ *machineContext, _ statekit.Event) {
			report.StartedAt = time.Now()
		}).
		WithAction("markFinished", func(_ *machineContext, _ statekit.Event) {
			report.FinishedAt = time.Now()
		}).
		State(stateNotStarted).
		On(EventStart).Target(stateRunning).Done().
		State(stateRunning).
		OnEntry("markStarted").
		On(EventComplete).Target(stateCompleted).
		On(EventAbort).Target(stateAborted).Done().
		State(stateCompleted).
		OnEntry("markFinished").
		On(EventReset).Target(stateNotStarted).Done().
		State(stateAborted).
		OnEntry("markFinished").
		On(EventReset).Target(stateNotStarted).Done().
		Build()
	if err != nil {
		return nil, err
	}

	return statekit.NewInterpreter(machine), nil
}
