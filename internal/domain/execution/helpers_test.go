package execution

import (
	"context"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

// configurableMockStep allows configuring Check and Apply behavior.
type configurableMockStep struct {
	id         step.StepID
	idempotent bool
	checkFn    func(step.RunContext) (step.Status, error)
	applyFn    func(step.RunContext) error
	applied    int
}

func newConfigurableStep(id string) *configurableMockStep {
	return &configurableMockStep{
		id:         step.MustNewStepID(id),
		idempotent: true,
		checkFn: func(_ step.RunContext) (step.Status, error) {
			return step.StatusNeedsApply, nil
		},
		applyFn: func(_ step.RunContext) error {
			return nil
		},
	}
}

// newStatefulStep models an idempotent effect: Check reports satisfied once
// Apply has succeeded against the shared state map.
func newStatefulStep(id string, state map[string]bool) *configurableMockStep {
	s := newConfigurableStep(id)
	s.checkFn = func(_ step.RunContext) (step.Status, error) {
		if state[id] {
			return step.StatusSatisfied, nil
		}
		return step.StatusNeedsApply, nil
	}
	s.applyFn = func(_ step.RunContext) error {
		state[id] = true
		return nil
	}
	return s
}

func (m *configurableMockStep) ID() step.StepID  { return m.id }
func (m *configurableMockStep) Idempotent() bool { return m.idempotent }
func (m *configurableMockStep) Check(ctx step.RunContext) (step.Status, error) {
	return m.checkFn(ctx)
}
func (m *configurableMockStep) Apply(ctx step.RunContext) error {
	m.applied++
	return m.applyFn(ctx)
}
func (m *configurableMockStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Test", "Test step", nil)
}

// recordingObserver captures observer callbacks in order.
type recordingObserver struct {
	events  []string
	reports []*Report
}

func (o *recordingObserver) StepStarted(_ context.Context, id step.StepID) {
	o.events = append(o.events, "start:"+id.String())
}

func (o *recordingObserver) StepFinished(_ context.Context, r RunResult) {
	o.events = append(o.events, "finish:"+r.StepID().String()+":"+r.Outcome().String())
}

func (o *recordingObserver) RunFinished(_ context.Context, r *Report) {
	o.reports = append(o.reports, r)
}

func steps(s ...*configurableMockStep) []step.Step {
	out := make([]step.Step, len(s))
	for i := range s {
		out[i] = s[i]
	}
	return out
}
