// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"strings"
)

// CommandResult represents the result of executing an external command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Output returns stderr when present, otherwise stdout, trimmed.
func (r CommandResult) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// String renders the call as a single command line.
func (c CommandCall) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandRunner executes external commands.
// A non-zero exit is reported through CommandResult.ExitCode; the error
// return is reserved for failures to start or wait for the process.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
