// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// RealRunner executes actual commands on the local host.
type RealRunner struct {
	env []string
}

// NewRealRunner creates a new RealRunner that inherits the process environment.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// WithEnv returns a runner that adds KEY=VALUE pairs to every command's environment.
func (r *RealRunner) WithEnv(kv ...string) *RealRunner {
	env := make([]string, 0, len(r.env)+len(kv))
	env = append(env, r.env...)
	env = append(env, kv...)
	return &RealRunner{env: env}
}

// Run executes a command and returns the result. It never retries.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

var _ ports.CommandRunner = (*RealRunner)(nil)
