// Package apt provides the package index refresh and package install steps.
package apt

import (
	"fmt"

	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
	"github.com/felixgeelhaar/vpsctl/internal/validation"
)

// BasePackages are installed by the host playbook.
var BasePackages = []string{"curl", "ca-certificates", "ufw", "zsh", "git", "sudo"}

// UpdateStep refreshes the package indexes.
type UpdateStep struct {
	id     step.StepID
	runner ports.CommandRunner
}

// NewUpdateStep creates a new UpdateStep.
func NewUpdateStep(runner ports.CommandRunner) *UpdateStep {
	return &UpdateStep{id: step.MustNewStepID("apt:update"), runner: runner}
}

// ID returns the step identifier.
func (s *UpdateStep) ID() step.StepID {
	return s.id
}

// Idempotent returns false; indexes go stale, so every run refreshes them.
func (s *UpdateStep) Idempotent() bool {
	return false
}

// Check always needs a refresh.
func (s *UpdateStep) Check(_ step.RunContext) (step.Status, error) {
	return step.StatusNeedsApply, nil
}

// Apply runs apt-get update.
func (s *UpdateStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "apt-get", "update", "-q")
	return err
}

// Explain provides a human-readable explanation.
func (s *UpdateStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Refresh package indexes", "Runs apt-get update on every run.", nil)
}

// PackageStep installs a single package.
type PackageStep struct {
	id     step.StepID
	name   string
	runner ports.CommandRunner
}

// NewPackageStep creates a new PackageStep.
func NewPackageStep(name string, runner ports.CommandRunner) *PackageStep {
	return &PackageStep{
		id:     step.MustNewStepID("apt:package:" + name),
		name:   name,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *PackageStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *PackageStep) Idempotent() bool {
	return true
}

// Check asks dpkg whether the package is installed.
func (s *PackageStep) Check(ctx step.RunContext) (step.Status, error) {
	return precondition.Status(ctx.Context(), precondition.PackageInstalled(s.runner, s.name))
}

// Apply executes the package installation.
func (s *PackageStep) Apply(ctx step.RunContext) error {
	// Validate package name before execution to prevent command injection
	if err := validation.ValidatePackageName(s.name); err != nil {
		return fmt.Errorf("invalid package name: %w", err)
	}
	_, err := commandutil.Run(ctx.Context(), s.runner, "apt-get", "install", "-y", "-q", "--no-install-recommends", s.name)
	return err
}

// Explain provides a human-readable explanation.
func (s *PackageStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install APT Package",
		fmt.Sprintf("Installs %s with apt-get unless dpkg already lists it as installed.", s.name),
		[]string{"https://packages.debian.org/" + s.name},
	)
}

var (
	_ step.Step = (*UpdateStep)(nil)
	_ step.Step = (*PackageStep)(nil)
)
