package execution

import (
	"context"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

// PlanEntry is one step's precondition status, evaluated without applying.
type PlanEntry struct {
	step   step.Step
	status step.Status
	err    error
}

// Step returns the planned step.
func (e PlanEntry) Step() step.Step {
	return e.step
}

// Status returns the evaluated status.
func (e PlanEntry) Status() step.Status {
	return e.status
}

// Error returns the probe error behind an unknown status.
func (e PlanEntry) Error() error {
	return e.err
}

// WillApply reports whether a real run would apply the step.
func (e PlanEntry) WillApply() bool {
	return e.status != step.StatusSatisfied || !e.step.Idempotent()
}

// PlanSummary provides aggregate statistics about the plan.
type PlanSummary struct {
	Total      int
	NeedsApply int
	Satisfied  int
	Unknown    int
}

// Plan is a dry run: every Check is evaluated, no Apply is called.
type Plan struct {
	entries []PlanEntry
}

// Entries returns all plan entries.
func (p *Plan) Entries() []PlanEntry {
	return p.entries
}

// Len returns the number of entries.
func (p *Plan) Len() int {
	return len(p.entries)
}

// Summary returns aggregate statistics.
func (p *Plan) Summary() PlanSummary {
	s := PlanSummary{Total: len(p.entries)}
	for _, e := range p.entries {
		switch e.status {
		case step.StatusSatisfied:
			s.Satisfied++
		case step.StatusNeedsApply:
			s.NeedsApply++
		default:
			s.Unknown++
		}
	}
	return s
}

// Plan evaluates every step's precondition in order. A probe error is
// recorded as StatusUnknown and does not stop the plan.
func (s *Sequencer) Plan(ctx context.Context, steps []step.Step) (*Plan, error) {
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	runCtx := step.NewRunContext(ctx).WithDryRun(true)
	plan := &Plan{entries: make([]PlanEntry, 0, len(steps))}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return plan, err
		}

		status, err := st.Check(runCtx)
		if err != nil {
			status = step.StatusUnknown
		}
		plan.entries = append(plan.entries, PlanEntry{step: st, status: status, err: err})
	}

	return plan, nil
}
