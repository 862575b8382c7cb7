// Package commandutil runs provisioning commands and classifies their failures.
package commandutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

// Run executes a command and turns a non-zero exit into a COMMAND_FAILED
// error. A missing executable is reported as a missing precondition.
func Run(ctx context.Context, runner ports.CommandRunner, command string, args ...string) (ports.CommandResult, error) {
	call := ports.CommandCall{Command: command, Args: args}

	result, err := runner.Run(ctx, command, args...)
	if err != nil {
		if IsCommandNotFound(err) {
			return result, step.MissingPrecondition(
				fmt.Sprintf("%s is not installed", command),
				"Install the package that provides it, or re-run vpsctl host first.",
			).WithUnderlying(err)
		}
		return result, fmt.Errorf("failed to run %s: %w", call, err)
	}
	if !result.Success() {
		return result, step.CommandFailed(call.String(), result)
	}
	return result, nil
}

// RunAsWithEnv executes a command as an unprivileged user with that
// user's HOME and extra KEY=VALUE environment entries.
func RunAsWithEnv(ctx context.Context, runner ports.CommandRunner, user, home string, env []string, command string, args ...string) (ports.CommandResult, error) {
	full := []string{"-u", user, "--", "env", "HOME=" + home}
	full = append(full, env...)
	full = append(full, command)
	full = append(full, args...)
	return Run(ctx, runner, "runuser", full...)
}

// Chown hands a path, recursively, to user:user.
func Chown(ctx context.Context, runner ports.CommandRunner, user, path string) error {
	_, err := Run(ctx, runner, "chown", "-R", user+":"+user, path)
	return err
}
