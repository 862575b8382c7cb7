package readiness_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/logging"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
)

func newWaitStep(pred func(context.Context) (bool, error), maxAttempts int) *readiness.WaitStep {
	return readiness.NewWaitStep(
		step.MustNewStepID("wait:timescaledb-pod"),
		readiness.Spec{Name: "timescaledb pod", Predicate: pred, MaxAttempts: maxAttempts},
		readiness.NewPoller(logging.NewNopLogger()),
		"Wait for the database pod",
	)
}

func TestWaitStep_CheckSatisfiedWhenReady(t *testing.T) {
	t.Parallel()

	s := newWaitStep(func(context.Context) (bool, error) { return true, nil }, 3)

	status, err := s.Check(step.NewRunContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
	assert.True(t, s.Idempotent())
	assert.Equal(t, "wait:timescaledb-pod", s.ID().String())
}

func TestWaitStep_CheckTreatsTransientErrorAsNotReady(t *testing.T) {
	t.Parallel()

	s := newWaitStep(func(context.Context) (bool, error) { return false, errors.New("refused") }, 3)

	status, err := s.Check(step.NewRunContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)
}

func TestWaitStep_CheckPropagatesPermanentError(t *testing.T) {
	t.Parallel()

	s := newWaitStep(func(context.Context) (bool, error) {
		return false, readiness.Permanent(errors.New("unauthorized"))
	}, 3)

	status, err := s.Check(step.NewRunContext(context.Background()))
	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestWaitStep_ApplyReadyAfterPolling(t *testing.T) {
	t.Parallel()

	pred, calls := sequence(false, true)
	s := newWaitStep(pred, 3)

	require.NoError(t, s.Apply(step.NewRunContext(context.Background())))
	assert.Equal(t, 2, *calls)
}

func TestWaitStep_ApplyTimeoutIsClassified(t *testing.T) {
	t.Parallel()

	pred, calls := sequence()
	s := newWaitStep(pred, 2)

	err := s.Apply(step.NewRunContext(context.Background()))
	require.Error(t, err)
	assert.ErrorIs(t, err, readiness.ErrTimedOut)
	assert.Equal(t, step.ErrCodeReadinessTimeout, step.Classify(err))
	assert.Equal(t, 2, *calls)
}

func TestWaitStep_CheckCountsAgainstBudget(t *testing.T) {
	t.Parallel()

	pred, calls := sequence()
	s := newWaitStep(pred, 3)
	rc := step.NewRunContext(context.Background())

	status, err := s.Check(rc)
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	err = s.Apply(rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, readiness.ErrTimedOut)
	assert.Equal(t, 3, *calls, "check and apply share the attempt budget")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWaitStep_CheckThenApplyReadyOnLastAttempt(t *testing.T) {
	t.Parallel()

	pred, calls := sequence(false, false, true)
	s := newWaitStep(pred, 3)
	rc := step.NewRunContext(context.Background())

	_, err := s.Check(rc)
	require.NoError(t, err)
	require.NoError(t, s.Apply(rc))
	assert.Equal(t, 3, *calls)
}

func TestWaitStep_SingleAttemptSpentByCheck(t *testing.T) {
	t.Parallel()

	calls := 0
	s := newWaitStep(func(context.Context) (bool, error) {
		calls++
		return false, errors.New("connection refused")
	}, 1)
	rc := step.NewRunContext(context.Background())

	_, err := s.Check(rc)
	require.NoError(t, err)

	err = s.Apply(rc)
	require.Error(t, err)
	assert.Equal(t, step.ErrCodeReadinessTimeout, step.Classify(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, calls)
}

func TestWaitStep_Explain(t *testing.T) {
	t.Parallel()

	s := newWaitStep(func(context.Context) (bool, error) { return true, nil }, 60)
	exp := s.Explain(step.NewExplainContext())

	assert.Equal(t, "Wait for the database pod", exp.Summary())
	assert.Contains(t, exp.Detail(), "60 times")
}
