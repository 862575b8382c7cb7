// Package execution sequences provisioning steps and reports their outcomes.
package execution

import (
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

// Outcome is what happened to a step during a run.
type Outcome string

const (
	// OutcomeSkipped means the precondition was satisfied and Apply was not run.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeSucceeded means Apply completed without error.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeWarned means Apply reported a soft warning; the run continued.
	OutcomeWarned Outcome = "warned"
	// OutcomeFailed means Check or Apply failed; the run was aborted.
	OutcomeFailed Outcome = "failed"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// RunResult captures the outcome of a single step.
type RunResult struct {
	stepID   step.StepID
	outcome  Outcome
	err      error
	duration time.Duration
}

// NewRunResult creates a new RunResult.
func NewRunResult(stepID step.StepID, outcome Outcome, err error) RunResult {
	return RunResult{
		stepID:  stepID,
		outcome: outcome,
		err:     err,
	}
}

// StepID returns the ID of the step.
func (r RunResult) StepID() step.StepID {
	return r.stepID
}

// Outcome returns the step's outcome.
func (r RunResult) Outcome() Outcome {
	return r.outcome
}

// Error returns the failure or warning, if any.
func (r RunResult) Error() error {
	return r.err
}

// ErrorDetail returns the error message, or "" when there is none.
func (r RunResult) ErrorDetail() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}

// Duration returns how long the step took.
func (r RunResult) Duration() time.Duration {
	return r.duration
}

// WithDuration returns a new RunResult with duration set.
func (r RunResult) WithDuration(d time.Duration) RunResult {
	r.duration = d
	return r
}
