// Package app assembles the host and cluster playbooks and runs them.
package app

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/execution"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// App is the main application orchestrator.
type App struct {
	deps      Deps
	logger    ports.Logger
	observers []execution.Observer
}

// Option configures an App.
type Option func(*App)

// WithObserver adds a run observer.
func WithObserver(o execution.Observer) Option {
	return func(a *App) {
		a.observers = append(a.observers, o)
	}
}

// New creates a new App.
func New(deps Deps, logger ports.Logger, opts ...Option) *App {
	a := &App{deps: deps, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Steps validates the answers and builds the playbook for kind.
func (a *App) Steps(kind config.RunKind, answers config.Answers) ([]step.Step, error) {
	if err := answers.Validate(kind); err != nil {
		return nil, fmt.Errorf("invalid answers: %w", err)
	}

	switch kind {
	case config.RunHost:
		return HostPlaybook(answers, a.deps), nil
	case config.RunCluster:
		return ClusterPlaybook(answers, a.deps)
	default:
		return nil, fmt.Errorf("unknown playbook %q", kind)
	}
}

// Run executes the playbook. The report is nil only when the playbook
// could not be built.
func (a *App) Run(ctx context.Context, kind config.RunKind, answers config.Answers) (*execution.Report, error) {
	steps, err := a.Steps(kind, answers)
	if err != nil {
		return nil, err
	}

	opts := make([]execution.Option, 0, len(a.observers))
	for _, o := range a.observers {
		opts = append(opts, execution.WithObserver(o))
	}
	seq := execution.NewSequencer(a.logger.With(ports.F("playbook", string(kind))), opts...)
	return seq.Run(ctx, steps)
}

// Plan evaluates every step's precondition without applying anything.
func (a *App) Plan(ctx context.Context, kind config.RunKind, answers config.Answers) (*execution.Plan, error) {
	steps, err := a.Steps(kind, answers)
	if err != nil {
		return nil, err
	}
	return execution.NewSequencer(a.logger).Plan(ctx, steps)
}
