package precondition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/testutil/mocks"
)

func constant(ok bool, err error) precondition.Func {
	return func(context.Context) (bool, error) { return ok, err }
}

func TestCommandSucceeds(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("systemctl", []string{"is-active", "k3s"}, ports.CommandResult{ExitCode: 0})
	runner.AddResult("systemctl", []string{"is-active", "ssh"}, ports.CommandResult{ExitCode: 3})
	runner.AddError("systemctl", []string{"is-active", "broken"}, errors.New("exec: systemctl: not found"))

	ctx := context.Background()

	ok, err := precondition.CommandSucceeds(runner, "systemctl", "is-active", "k3s")(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = precondition.CommandSucceeds(runner, "systemctl", "is-active", "ssh")(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = precondition.CommandSucceeds(runner, "systemctl", "is-active", "broken")(ctx)
	require.Error(t, err, "a spawn failure must be a probe error, not false")
	assert.Contains(t, err.Error(), "systemctl is-active broken")
}

func TestUserExists(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("id", []string{"-u", "deploy"}, ports.CommandResult{ExitCode: 1, Stderr: "id: 'deploy': no such user"})

	ok, err := precondition.UserExists(runner, "deploy")(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPackageInstalled(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	args := func(name string) []string { return []string{"-W", "-f=${Status}", name} }
	runner.AddResult("dpkg-query", args("git"), ports.CommandResult{Stdout: "install ok installed"})
	runner.AddResult("dpkg-query", args("zsh"), ports.CommandResult{Stdout: "deinstall ok config-files"})
	runner.AddResult("dpkg-query", args("ufw"), ports.CommandResult{ExitCode: 1, Stderr: "no packages found"})

	tests := []struct {
		name string
		want bool
	}{
		{"git", true},
		{"zsh", false},
		{"ufw", false},
	}
	for _, tt := range tests {
		ok, err := precondition.PackageInstalled(runner, tt.name)(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, tt.name)
	}
}

func TestFilePredicates(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile("/etc/hosts", "127.0.0.1 localhost\n127.0.1.1 vps.example.com vps\n")
	ctx := context.Background()

	ok, err := precondition.FileExists(fs, "/etc/hosts")(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = precondition.FileContains(fs, "/etc/hosts", "127.0.1.1 vps.example.com vps")(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = precondition.FileContains(fs, "/etc/hosts", "10.0.0.1")(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = precondition.FileContains(fs, "/missing", "x")(ctx)
	require.NoError(t, err, "a missing file means absent, not a probe error")
	assert.False(t, ok)

	ok, err = precondition.FileEquals(fs, "/etc/hosts", []byte("127.0.0.1 localhost\n"))(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCombinators(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ctx := context.Background()

	tests := []struct {
		name    string
		fn      precondition.Func
		want    bool
		wantErr bool
	}{
		{"all true", precondition.All(constant(true, nil), constant(true, nil)), true, false},
		{"all with false", precondition.All(constant(true, nil), constant(false, nil)), false, false},
		{"all empty", precondition.All(), true, false},
		{"all stops at false", precondition.All(constant(false, nil), constant(false, boom)), false, false},
		{"all error", precondition.All(constant(true, nil), constant(false, boom)), false, true},
		{"any one true", precondition.Any(constant(false, nil), constant(true, nil)), true, false},
		{"any none", precondition.Any(constant(false, nil)), false, false},
		{"any error", precondition.Any(constant(false, boom), constant(true, nil)), false, true},
		{"not", precondition.Not(constant(false, nil)), true, false},
		{"not error", precondition.Not(constant(false, boom)), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(ctx)
			if tt.wantErr {
				require.ErrorIs(t, err, boom)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := precondition.Status(ctx, constant(true, nil))
	require.NoError(t, err)
	assert.Equal(t, step.StatusSatisfied, s)

	s, err = precondition.Status(ctx, constant(false, nil))
	require.NoError(t, err)
	assert.Equal(t, step.StatusNeedsApply, s)

	s, err = precondition.Status(ctx, constant(false, errors.New("connection refused")))
	require.Error(t, err)
	assert.Equal(t, step.StatusUnknown, s)
}
