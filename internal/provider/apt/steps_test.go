package apt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/apt"
	"github.com/felixgeelhaar/vpsctl/internal/testutil/mocks"
)

func TestUpdateStep(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"update", "-q"}, ports.CommandResult{})

	s := apt.NewUpdateStep(runner)
	assert.Equal(t, "apt:update", s.ID().String())
	assert.False(t, s.Idempotent())

	ctx := step.NewRunContext(context.TODO())
	status, err := s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, status)

	require.NoError(t, s.Apply(ctx))
	assert.True(t, runner.Called("apt-get", "update", "-q"))
}

func TestUpdateStep_Failure(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"update", "-q"}, ports.CommandResult{
		ExitCode: 100,
		Stderr:   "E: Could not get lock /var/lib/apt/lists/lock",
	})

	err := apt.NewUpdateStep(runner).Apply(step.NewRunContext(context.TODO()))
	require.Error(t, err)
	assert.Equal(t, step.ErrCodeCommandFailed, step.Classify(err))
	assert.Contains(t, err.Error(), "Could not get lock")
}

func TestPackageStep_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result ports.CommandResult
		want   step.Status
	}{
		{
			name:   "installed",
			result: ports.CommandResult{Stdout: "install ok installed"},
			want:   step.StatusSatisfied,
		},
		{
			name:   "removed with config",
			result: ports.CommandResult{Stdout: "deinstall ok config-files"},
			want:   step.StatusNeedsApply,
		},
		{
			name:   "unknown package",
			result: ports.CommandResult{ExitCode: 1, Stderr: "dpkg-query: no packages found matching zsh"},
			want:   step.StatusNeedsApply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			runner.AddResult("dpkg-query", []string{"-W", "-f=${Status}", "zsh"}, tt.result)

			status, err := apt.NewPackageStep("zsh", runner).Check(step.NewRunContext(context.TODO()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestPackageStep_Apply(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("apt-get", []string{"install", "-y", "-q", "--no-install-recommends", "zsh"}, ports.CommandResult{})

	s := apt.NewPackageStep("zsh", runner)
	assert.Equal(t, "apt:package:zsh", s.ID().String())
	require.NoError(t, s.Apply(step.NewRunContext(context.TODO())))
	assert.True(t, runner.Called("apt-get", "install", "-y", "-q", "--no-install-recommends", "zsh"))
}

func TestPackageStep_Apply_InvalidName(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	err := apt.NewPackageStep("zsh@latest", runner).Apply(step.NewRunContext(context.TODO()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid package name")
	assert.Empty(t, runner.Calls())
}

func TestPackageStep_Explain(t *testing.T) {
	t.Parallel()

	exp := apt.NewPackageStep("git", mocks.NewCommandRunner()).Explain(step.NewExplainContext())
	assert.NotEmpty(t, exp.Summary())
	assert.Contains(t, exp.Detail(), "git")
}
