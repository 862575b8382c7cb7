package readiness

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

// WaitStep turns a wait point into a sequencer step. Check probes once and
// treats a transient probe error as not-ready; Apply polls with the rest of
// the attempt budget, so Check followed by Apply calls the predicate at
// most MaxAttempts times.
type WaitStep struct {
	id      step.StepID
	spec    Spec
	poller  *Poller
	summary string

	// spent counts Check probes not yet charged to an Apply.
	spent int
	last  error
}

// NewWaitStep creates a wait step.
func NewWaitStep(id step.StepID, spec Spec, poller *Poller, summary string) *WaitStep {
	return &WaitStep{id: id, spec: spec, poller: poller, summary: summary}
}

// ID returns the step identifier.
func (s *WaitStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true: waiting on ready state is a no-op.
func (s *WaitStep) Idempotent() bool {
	return true
}

// Check probes the predicate once.
func (s *WaitStep) Check(ctx step.RunContext) (step.Status, error) {
	ready, err := s.spec.Predicate(ctx.Context())
	s.spent, s.last = 1, err
	if err != nil {
		if IsPermanent(err) {
			return step.StatusUnknown, err
		}
		return step.StatusNeedsApply, nil
	}
	if ready {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply polls until ready or the attempt budget is spent.
func (s *WaitStep) Apply(ctx step.RunContext) error {
	spec := s.spec
	spec.MaxAttempts -= s.spent
	spent, last := s.spent, s.last
	s.spent, s.last = 0, nil

	if spent > 0 {
		if spec.MaxAttempts < 1 {
			return step.ReadinessTimeout(s.spec.Name,
				&TimeoutError{Name: s.spec.Name, Attempts: s.spec.MaxAttempts, Last: last})
		}
		if err := sleep(ctx.Context(), spec.Interval); err != nil {
			return fmt.Errorf("waiting for %s: %w", spec.Name, err)
		}
	}

	_, err := s.poller.Wait(ctx.Context(), spec)
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		timeout.Attempts += spent
		if timeout.Last == nil {
			timeout.Last = last
		}
		return step.ReadinessTimeout(s.spec.Name, timeout)
	}
	return err
}

// Explain describes the wait.
func (s *WaitStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		s.summary,
		fmt.Sprintf("Polls %s up to %d times every %s.", s.spec.Name, s.spec.MaxAttempts, s.spec.Interval),
		nil,
	)
}

var _ step.Step = (*WaitStep)(nil)
