package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/logging"
	"github.com/felixgeelhaar/vpsctl/internal/domain/execution"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/provider/postgres"
	"github.com/felixgeelhaar/vpsctl/internal/testutil/mocks"
)

func runCtx() step.RunContext {
	return step.NewRunContext(context.TODO())
}

func TestRoleStep(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	s := postgres.NewRoleStep("app", "hunter22", db)
	assert.Equal(t, "postgres:role:app", s.ID().String())

	status, err := s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	require.NoError(t, s.Apply(runCtx()))
	assert.Equal(t, "hunter22", db.Password("app"))

	status, err = s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestRoleStep_ExistingRoleIsSkippedOnRerun(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	require.NoError(t, db.CreateRole(context.TODO(), "app", "original"))

	seq := execution.NewSequencer(logging.NewNopLogger())
	report, err := seq.Run(context.TODO(), []step.Step{postgres.NewRoleStep("app", "changed", db)})
	require.NoError(t, err)

	assert.Equal(t, []execution.Outcome{execution.OutcomeSkipped}, report.Outcomes())
	assert.Equal(t, 1, db.CallCount("CreateRole"))
	assert.Equal(t, "original", db.Password("app"))
}

func TestRoleStep_InvalidName(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	err := postgres.NewRoleStep("pg_app", "pw", db).Apply(runCtx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role name")
	assert.Equal(t, 0, db.CallCount("CreateRole"))
}

func TestDatabaseStep(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	require.NoError(t, db.CreateRole(context.TODO(), "app", "pw"))

	s := postgres.NewDatabaseStep("metrics", "app", db)
	status, err := s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	require.NoError(t, s.Apply(runCtx()))
	assert.Equal(t, "app", db.Owner("metrics"))

	status, err = s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestExtensionStep(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	require.NoError(t, db.CreateRole(context.TODO(), "app", "pw"))
	require.NoError(t, db.CreateDatabase(context.TODO(), "metrics", "app"))

	s := postgres.NewExtensionStep("metrics", "timescaledb", db)
	assert.Equal(t, "postgres:extension:timescaledb", s.ID().String())

	status, err := s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	require.NoError(t, s.Apply(runCtx()))

	status, err = s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}

func TestCheck_ProbeError(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	db.FailOn("DatabaseExists", errors.New("connection refused"))

	status, err := postgres.NewDatabaseStep("metrics", "app", db).Check(runCtx())
	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, status)
}

func TestWaitQueryStep(t *testing.T) {
	t.Parallel()

	db := mocks.NewDatabase()
	db.SetPings(errors.New("the database system is starting up"), nil)

	s := postgres.NewWaitQueryStep("timescaledb", db, readiness.NewPoller(logging.NewNopLogger()))
	assert.Equal(t, "wait:timescaledb-query", s.ID().String())

	status, err := s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	status, err = s.Check(runCtx())
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, status)
}
