package ssh

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
)

// AuthorizedKeyStep requires root to hold at least one valid public key.
// Hardening disables password login, so without a key the host would be
// unreachable after the run.
type AuthorizedKeyStep struct {
	id   step.StepID
	path string
	fs   ports.FileSystem
}

// NewAuthorizedKeyStep creates a new AuthorizedKeyStep.
func NewAuthorizedKeyStep(fs ports.FileSystem) *AuthorizedKeyStep {
	return &AuthorizedKeyStep{
		id:   step.MustNewStepID("ssh:authorized-key"),
		path: RootAuthorizedKeys,
		fs:   fs,
	}
}

// ID returns the step identifier.
func (s *AuthorizedKeyStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *AuthorizedKeyStep) Idempotent() bool {
	return true
}

// errNoUsableKey marks a key file that is absent, empty or unparsable.
var errNoUsableKey = errors.New("no usable authorized key")

// Check is satisfied when the file parses and holds at least one key.
func (s *AuthorizedKeyStep) Check(_ step.RunContext) (step.Status, error) {
	if _, err := s.keys(); err != nil {
		if errors.Is(err, errNoUsableKey) {
			return step.StatusNeedsApply, nil
		}
		return step.StatusUnknown, err
	}
	return step.StatusSatisfied, nil
}

// Apply reports the missing key; there is nothing it can provision.
func (s *AuthorizedKeyStep) Apply(_ step.RunContext) error {
	_, err := s.keys()
	if errors.Is(err, errNoUsableKey) {
		return step.MissingPrecondition(
			"root has no usable SSH authorized key",
			fmt.Sprintf("Add your public key to %s; password login is about to be disabled.", s.path),
		).WithUnderlying(err)
	}
	return err
}

func (s *AuthorizedKeyStep) keys() ([]string, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", errNoUsableKey, s.path)
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	keys, err := ParseAuthorizedKeys(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNoUsableKey, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s holds no keys", errNoUsableKey, s.path)
	}
	return Fingerprints(keys), nil
}

// Explain provides a human-readable explanation.
func (s *AuthorizedKeyStep) Explain(ctx step.ExplainContext) step.Explanation {
	detail := fmt.Sprintf("Stops the run unless %s holds at least one valid public key.", s.path)
	if ctx.Verbose() {
		if fingerprints, err := s.keys(); err == nil {
			detail += " Keys: " + strings.Join(fingerprints, ", ")
		}
	}
	return step.NewExplanation("Require root SSH key", detail, nil)
}

// HardenStep enforces key-only SSH logins for a single allowed user.
// The candidate config is validated with sshd -t before it replaces the
// live one, and the service is reloaded in the same Apply.
type HardenStep struct {
	id         step.StepID
	directives []Directive
	path       string
	fs         ports.FileSystem
	runner     ports.CommandRunner
}

// NewHardenStep creates a new HardenStep.
func NewHardenStep(user string, fs ports.FileSystem, runner ports.CommandRunner) *HardenStep {
	return &HardenStep{
		id:         step.MustNewStepID("ssh:harden"),
		directives: HardeningDirectives(user),
		path:       SSHDConfigPath,
		fs:         fs,
		runner:     runner,
	}
}

// ID returns the step identifier.
func (s *HardenStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *HardenStep) Idempotent() bool {
	return true
}

// Check compares the effective global directives.
func (s *HardenStep) Check(_ step.RunContext) (step.Status, error) {
	content, err := s.fs.ReadFile(s.path)
	if err != nil {
		return step.StatusUnknown, fmt.Errorf("read %s: %w", s.path, err)
	}
	if Satisfied(content, s.directives) {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply writes, validates, installs and reloads.
func (s *HardenStep) Apply(ctx step.RunContext) error {
	content, err := s.fs.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	candidate := s.path + ".vpsctl"
	if err := s.fs.WriteFile(candidate, Harden(content, s.directives), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", candidate, err)
	}

	if _, err := commandutil.Run(ctx.Context(), s.runner, "sshd", "-t", "-f", candidate); err != nil {
		_ = s.fs.Remove(candidate)
		return fmt.Errorf("candidate sshd_config rejected: %w", err)
	}

	if err := s.fs.Rename(candidate, s.path); err != nil {
		return fmt.Errorf("install %s: %w", s.path, err)
	}

	_, err = commandutil.Run(ctx.Context(), s.runner, "systemctl", "reload", "ssh")
	return err
}

// Explain provides a human-readable explanation.
func (s *HardenStep) Explain(_ step.ExplainContext) step.Explanation {
	settings := make([]string, len(s.directives))
	for i, d := range s.directives {
		settings[i] = d.Keyword + " " + d.Value
	}
	return step.NewExplanation(
		"Harden sshd",
		fmt.Sprintf("Sets %s in %s, validates it with sshd -t and reloads ssh.", strings.Join(settings, ", "), s.path),
		[]string{"https://man.openbsd.org/sshd_config"},
	)
}

var (
	_ step.Step = (*AuthorizedKeyStep)(nil)
	_ step.Step = (*HardenStep)(nil)
)
