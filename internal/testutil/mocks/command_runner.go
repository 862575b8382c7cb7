// Package mocks provides test doubles for testing.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// CommandHandler computes a command's result at call time, which lets a test
// model state that changes when earlier commands run.
type CommandHandler func() (ports.CommandResult, error)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
type CommandRunner struct {
	mu       sync.RWMutex
	results  map[string]ports.CommandResult
	errors   map[string]error
	handlers map[string]CommandHandler
	queues   map[string][]ports.CommandResult
	calls    []ports.CommandCall
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results:  make(map[string]ports.CommandResult),
		errors:   make(map[string]error),
		handlers: make(map[string]CommandHandler),
		queues:   make(map[string][]ports.CommandResult),
		calls:    make([]ports.CommandCall, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddResults queues results returned one per call. Once the queue drains,
// the last result keeps being returned.
func (m *CommandRunner) AddResults(command string, args []string, results ...ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[buildKey(command, args)] = append([]ports.CommandResult(nil), results...)
}

// AddError registers an expected command that should return an error.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// AddHandler registers a function that produces the command's result.
func (m *CommandRunner) AddHandler(command string, args []string, handler CommandHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[buildKey(command, args)] = handler
}

// Run executes a mock command.
func (m *CommandRunner) Run(_ context.Context, command string, args ...string) (ports.CommandResult, error) {
	key := buildKey(command, args)

	m.mu.Lock()
	m.calls = append(m.calls, ports.CommandCall{
		Command: command,
		Args:    args,
	})

	if err, ok := m.errors[key]; ok {
		m.mu.Unlock()
		return ports.CommandResult{}, err
	}

	if handler, ok := m.handlers[key]; ok {
		m.mu.Unlock()
		return handler()
	}

	if queue, ok := m.queues[key]; ok && len(queue) > 0 {
		result := queue[0]
		if len(queue) > 1 {
			m.queues[key] = queue[1:]
		}
		m.mu.Unlock()
		return result, nil
	}

	result, ok := m.results[key]
	m.mu.Unlock()
	if ok {
		return result, nil
	}

	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", command, args)
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how often a specific command line was run.
func (m *CommandRunner) CallCount(command string, args ...string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := buildKey(command, args)
	n := 0
	for _, c := range m.calls {
		if buildKey(c.Command, c.Args) == key {
			n++
		}
	}
	return n
}

// Called reports whether a specific command line was run at least once.
func (m *CommandRunner) Called(command string, args ...string) bool {
	return m.CallCount(command, args...) > 0
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]ports.CommandResult)
	m.errors = make(map[string]error)
	m.handlers = make(map[string]CommandHandler)
	m.queues = make(map[string][]ports.CommandResult)
	m.calls = make([]ports.CommandCall, 0)
}

// buildKey creates a unique key for a command and its arguments.
func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

// Ensure CommandRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*CommandRunner)(nil)
