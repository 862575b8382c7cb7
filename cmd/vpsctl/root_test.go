package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing precondition", step.MissingPrecondition("no key", ""), 2},
		{
			"wrapped missing precondition",
			step.NewApplyFailedError("ssh:authorized-key", step.MissingPrecondition("no key", "")),
			2,
		},
		{
			"readiness timeout",
			step.NewApplyFailedError("k3s:wait-node", step.ReadinessTimeout("node", readiness.ErrTimedOut)),
			3,
		},
		{"command failed", step.NewApplyFailedError("apt:update", errors.New("exit 100")), 1},
		{"plain", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	cause := errors.New("open /root/.ssh/authorized_keys: no such file or directory")
	err := step.NewApplyFailedError("ssh:authorized-key",
		step.MissingPrecondition("root has no usable SSH authorized key", "Add your public key.").WithUnderlying(cause))

	prev := verbose
	defer func() { verbose = prev }()

	verbose = false
	msg := formatError(err)
	assert.Contains(t, msg, "root has no usable SSH authorized key (at ssh:authorized-key)")
	assert.Contains(t, msg, "Suggestion: Add your public key.")
	assert.NotContains(t, msg, "Technical details")

	verbose = true
	assert.Contains(t, formatError(err), "Technical details: open /root/.ssh/authorized_keys")

	assert.Equal(t, "boom", formatError(fmt.Errorf("boom")))
}

func TestNewLogger_Level(t *testing.T) {
	prev := verbose
	defer func() { verbose = prev }()

	t.Setenv(config.EnvLogLevel, "warn")
	verbose = false
	assert.Equal(t, ports.LevelWarn, newLogger(os.Stderr).Level())

	verbose = true
	assert.Equal(t, ports.LevelDebug, newLogger(os.Stderr).Level())
}

func TestPrintErrorTo(t *testing.T) {
	var buf bytes.Buffer
	printErrorTo(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestLoadAnswers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hostname: web1\nusername: deploy\ntheme: agnoster\n"), 0o600))

	env := map[string]string{config.EnvUsername: "ops", config.EnvDomain: "example.com"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	answers, err := loadAnswers(path, lookup)
	require.NoError(t, err)
	assert.Equal(t, "web1", answers.Hostname)
	assert.Equal(t, "ops", answers.Username, "environment overrides the file")
	assert.Equal(t, "example.com", answers.Domain)
	assert.Equal(t, "agnoster", answers.Theme)
	assert.Equal(t, config.DefaultK3sVersion, answers.K3sVersion)
}

func TestLoadAnswers_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadAnswers(filepath.Join(t.TempDir(), "nope.toml"), func(string) (string, bool) { return "", false })
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, loadDotEnv(filepath.Join(dir, ".env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VPSCTL_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("VPSCTL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("VPSCTL_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("VPSCTL_TEST_DOTENV"))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "vpsctl dev")
	assert.Contains(t, buf.String(), "commit: none")
}
