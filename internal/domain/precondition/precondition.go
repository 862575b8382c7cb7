// Package precondition answers "is this step's effect already present?".
//
// A Func never mutates state. It returns (false, nil) when the effect is
// absent and a non-nil error when the probe itself failed; callers must
// not treat a probe error as "absent".
package precondition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Func is a side-effect free probe of external state.
type Func func(ctx context.Context) (bool, error)

// Status evaluates fn and maps the answer onto a step status.
func Status(ctx context.Context, fn Func) (step.Status, error) {
	ok, err := fn(ctx)
	if err != nil {
		return step.StatusUnknown, err
	}
	if ok {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// CommandSucceeds is satisfied when the command exits 0. A non-zero exit
// means "absent"; a spawn failure is a probe error.
func CommandSucceeds(runner ports.CommandRunner, command string, args ...string) Func {
	return func(ctx context.Context) (bool, error) {
		result, err := runner.Run(ctx, command, args...)
		if err != nil {
			return false, fmt.Errorf("probe %s: %w", ports.CommandCall{Command: command, Args: args}, err)
		}
		return result.Success(), nil
	}
}

// UserExists checks for a local account.
func UserExists(runner ports.CommandRunner, name string) Func {
	return CommandSucceeds(runner, "id", "-u", name)
}

// PackageInstalled checks dpkg's status database for a package.
func PackageInstalled(runner ports.CommandRunner, name string) Func {
	return func(ctx context.Context) (bool, error) {
		result, err := runner.Run(ctx, "dpkg-query", "-W", "-f=${Status}", name)
		if err != nil {
			return false, fmt.Errorf("probe package %s: %w", name, err)
		}
		if !result.Success() {
			return false, nil
		}
		return strings.Contains(result.Stdout, "install ok installed"), nil
	}
}

// FileExists checks that a path exists.
func FileExists(fs ports.FileSystem, path string) Func {
	return func(_ context.Context) (bool, error) {
		return fs.Exists(path), nil
	}
}

// FileContains is satisfied when the file exists and contains needle.
func FileContains(fs ports.FileSystem, path, needle string) Func {
	return func(_ context.Context) (bool, error) {
		data, err := readIfExists(fs, path)
		if err != nil || data == nil {
			return false, err
		}
		return bytes.Contains(data, []byte(needle)), nil
	}
}

// FileEquals is satisfied when the file's content is exactly want.
func FileEquals(fs ports.FileSystem, path string, want []byte) Func {
	return func(_ context.Context) (bool, error) {
		data, err := readIfExists(fs, path)
		if err != nil || data == nil {
			return false, err
		}
		return bytes.Equal(data, want), nil
	}
}

// All is satisfied when every fn is. It stops at the first false or error.
func All(fns ...Func) Func {
	return func(ctx context.Context) (bool, error) {
		for _, fn := range fns {
			ok, err := fn(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any is satisfied when at least one fn is. It stops at the first true or error.
func Any(fns ...Func) Func {
	return func(ctx context.Context) (bool, error) {
		for _, fn := range fns {
			ok, err := fn(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not inverts fn. Probe errors pass through unchanged.
func Not(fn Func) Func {
	return func(ctx context.Context) (bool, error) {
		ok, err := fn(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// readIfExists returns (nil, nil) for a missing file.
func readIfExists(fs ports.FileSystem, path string) ([]byte, error) {
	data, err := fs.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}
