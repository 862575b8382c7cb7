package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// ErrDuplicateStep is returned when two steps share an ID.
var ErrDuplicateStep = errors.New("duplicate step ID")

// Sequencer runs an ordered list of steps, fail-fast.
type Sequencer struct {
	logger    ports.Logger
	observers []Observer
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithObserver registers an observer for step and run events.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) {
		s.observers = append(s.observers, o)
	}
}

// NewSequencer creates a Sequencer that logs through logger.
func NewSequencer(logger ports.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes steps in order. For each step it evaluates Check; a
// satisfied idempotent step is skipped, anything else is applied. The
// first failure aborts the run and no later step produces a result.
//
// The returned report is always non-nil once the steps validate; the
// returned error is the report's aborting error.
func (s *Sequencer) Run(ctx context.Context, steps []step.Step) (*Report, error) {
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		State:   StateNotStarted,
		Results: make([]RunResult, 0, len(steps)),
	}

	interp, err := buildRunMachine(report)
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}
	interp.Start()
	defer interp.Stop()

	interp.Send(statekit.Event{Type: EventStart})
	report.State = RunState(interp.State().Value)

	logger := s.logger.With(ports.F("run_id", report.RunID))
	logger.Info(ctx, "run started", ports.F("steps", len(steps)))

	runCtx := step.NewRunContext(ctx)
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			report.Err = fmt.Errorf("run interrupted before %s: %w", st.ID(), err)
			break
		}

		result := s.runStep(runCtx, logger, st)
		report.Results = append(report.Results, result)

		if result.Outcome() == OutcomeFailed {
			report.Err = result.Error()
			break
		}
	}

	if report.Err != nil {
		interp.Send(statekit.Event{Type: EventAbort})
	} else {
		interp.Send(statekit.Event{Type: EventComplete})
	}
	report.State = RunState(interp.State().Value)

	summary := report.Summary()
	fields := []ports.Field{
		ports.F("state", string(report.State)),
		ports.F("skipped", summary.Skipped),
		ports.F("succeeded", summary.Succeeded),
		ports.F("warned", summary.Warned),
		ports.F("duration", report.Duration()),
	}
	if report.Err != nil {
		logger.Error(ctx, "run aborted", append(fields, ports.Err(report.Err))...)
	} else {
		logger.Info(ctx, "run completed", fields...)
	}

	for _, o := range s.observers {
		o.RunFinished(ctx, report)
	}

	return report, report.Err
}

func (s *Sequencer) runStep(ctx step.RunContext, logger ports.Logger, st step.Step) RunResult {
	id := st.ID()
	logger = logger.With(ports.F("step", id.String()))

	for _, o := range s.observers {
		o.StepStarted(ctx.Context(), id)
	}

	start := time.Now()
	result := s.evaluate(ctx, logger, st).WithDuration(time.Since(start))

	fields := []ports.Field{
		ports.F("outcome", result.Outcome().String()),
		ports.F("duration", result.Duration()),
	}
	switch result.Outcome() {
	case OutcomeWarned:
		logger.Warn(ctx.Context(), "step warned", append(fields, ports.Err(result.Error()))...)
	case OutcomeFailed:
		logger.Error(ctx.Context(), "step failed", append(fields, ports.Err(result.Error()))...)
	default:
		logger.Info(ctx.Context(), "step finished", fields...)
	}

	for _, o := range s.observers {
		o.StepFinished(ctx.Context(), result)
	}

	return result
}

func (s *Sequencer) evaluate(ctx step.RunContext, logger ports.Logger, st step.Step) RunResult {
	id := st.ID()

	status, err := st.Check(ctx)
	if err != nil {
		return NewRunResult(id, OutcomeFailed, step.NewCheckFailedError(id.String(), err))
	}

	if status == step.StatusSatisfied && st.Idempotent() {
		return NewRunResult(id, OutcomeSkipped, nil)
	}

	logger.Debug(ctx.Context(), "applying", ports.F("status", status.String()))

	if err := st.Apply(ctx); err != nil {
		if step.IsWarning(err) {
			return NewRunResult(id, OutcomeWarned, err)
		}
		return NewRunResult(id, OutcomeFailed, step.NewApplyFailedError(id.String(), err))
	}

	return NewRunResult(id, OutcomeSucceeded, nil)
}

func validateSteps(steps []step.Step) error {
	seen := make(map[string]bool, len(steps))
	for _, st := range steps {
		id := st.ID().String()
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, id)
		}
		seen[id] = true
	}
	return nil
}
