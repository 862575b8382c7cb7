// Package ufw opens the firewall ports the host needs and enables ufw.
package ufw

import (
	"fmt"
	"slices"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
)

// DefaultRules are allowed before the firewall is enabled. OpenSSH comes
// first so enabling ufw never cuts the running session.
var DefaultRules = []string{"OpenSSH", "80/tcp", "443/tcp", "6443/tcp"}

// AllowStep adds an allow rule.
type AllowStep struct {
	id     step.StepID
	rule   string
	runner ports.CommandRunner
}

// NewAllowStep creates a new AllowStep.
func NewAllowStep(rule string, runner ports.CommandRunner) *AllowStep {
	return &AllowStep{
		id:     step.MustNewStepID("ufw:allow:" + rule),
		rule:   rule,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *AllowStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *AllowStep) Idempotent() bool {
	return true
}

// Check lists the added rules, which works whether or not ufw is active.
func (s *AllowStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := commandutil.Run(ctx.Context(), s.runner, "ufw", "show", "added")
	if err != nil {
		return step.StatusUnknown, err
	}
	want := "ufw allow " + s.rule
	lines := strings.Split(result.Stdout, "\n")
	if slices.ContainsFunc(lines, func(l string) bool { return strings.TrimSpace(l) == want }) {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply runs ufw allow.
func (s *AllowStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "ufw", "allow", s.rule)
	return err
}

// Explain provides a human-readable explanation.
func (s *AllowStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Allow firewall rule", fmt.Sprintf("Runs ufw allow %s.", s.rule), nil)
}

// EnableStep turns the firewall on.
type EnableStep struct {
	id     step.StepID
	runner ports.CommandRunner
}

// NewEnableStep creates a new EnableStep.
func NewEnableStep(runner ports.CommandRunner) *EnableStep {
	return &EnableStep{id: step.MustNewStepID("ufw:enable"), runner: runner}
}

// ID returns the step identifier.
func (s *EnableStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *EnableStep) Idempotent() bool {
	return true
}

// Check reads ufw status.
func (s *EnableStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := commandutil.Run(ctx.Context(), s.runner, "ufw", "status")
	if err != nil {
		return step.StatusUnknown, err
	}
	if strings.Contains(result.Stdout, "Status: active") {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply enables ufw without the interactive confirmation.
func (s *EnableStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "ufw", "--force", "enable")
	return err
}

// Explain provides a human-readable explanation.
func (s *EnableStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation("Enable firewall", "Enables ufw and its boot-time activation.", nil)
}

var (
	_ step.Step = (*AllowStep)(nil)
	_ step.Step = (*EnableStep)(nil)
)
