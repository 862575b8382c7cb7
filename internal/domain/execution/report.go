package execution

import "time"

// RunState is the state of a whole run.
type RunState string

// Run states.
const (
	StateNotStarted RunState = stateNotStarted
	StateRunning    RunState = stateRunning
	StateCompleted  RunState = stateCompleted
	StateAborted    RunState = stateAborted
)

// Report is the in-memory record of one run. It is never persisted.
type Report struct {
	RunID      string
	State      RunState
	Results    []RunResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary counts results by outcome.
type Summary struct {
	Total     int
	Skipped   int
	Succeeded int
	Warned    int
	Failed    int
}

// Completed returns true if every step ran and none failed.
func (r *Report) Completed() bool {
	return r.State == StateCompleted
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns outcome counts.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Outcome() {
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeSucceeded:
			s.Succeeded++
		case OutcomeWarned:
			s.Warned++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}

// Warnings returns the warned results in run order.
func (r *Report) Warnings() []RunResult {
	var out []RunResult
	for _, res := range r.Results {
		if res.Outcome() == OutcomeWarned {
			out = append(out, res)
		}
	}
	return out
}

// Outcomes returns the outcome of every result in run order.
func (r *Report) Outcomes() []Outcome {
	out := make([]Outcome, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Outcome()
	}
	return out
}
