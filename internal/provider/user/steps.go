// Package user provisions the sudo account: creation, sudoers drop-in and
// SSH keys copied from root.
package user

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
	"github.com/felixgeelhaar/vpsctl/internal/provider/ssh"
)

// SudoersDir holds sudoers drop-ins.
const SudoersDir = "/etc/sudoers.d"

// CreateStep creates the account with a home directory and sudo membership.
type CreateStep struct {
	id     step.StepID
	name   string
	runner ports.CommandRunner
}

// NewCreateStep creates a new CreateStep.
func NewCreateStep(name string, runner ports.CommandRunner) *CreateStep {
	return &CreateStep{
		id:     step.MustNewStepID("user:create:" + name),
		name:   name,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *CreateStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *CreateStep) Idempotent() bool {
	return true
}

// Check runs id -u.
func (s *CreateStep) Check(ctx step.RunContext) (step.Status, error) {
	return precondition.Status(ctx.Context(), precondition.UserExists(s.runner, s.name))
}

// Apply runs useradd.
func (s *CreateStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "useradd", "-m", "-s", "/bin/bash", "-G", "sudo", s.name)
	return err
}

// Explain provides a human-readable explanation.
func (s *CreateStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create sudo user",
		fmt.Sprintf("Creates %s with a home directory and adds it to the sudo group.", s.name),
		nil,
	)
}

// SudoersStep grants passwordless sudo through a drop-in file. The file is
// checked with visudo before it is moved into place: a broken drop-in
// locks every user out of sudo.
type SudoersStep struct {
	id      step.StepID
	path    string
	content []byte
	fs      ports.FileSystem
	runner  ports.CommandRunner
}

// NewSudoersStep creates a new SudoersStep.
func NewSudoersStep(name string, fs ports.FileSystem, runner ports.CommandRunner) *SudoersStep {
	return &SudoersStep{
		id:      step.MustNewStepID("user:sudoers:" + name),
		path:    path.Join(SudoersDir, "90-vpsctl-"+name),
		content: []byte(name + " ALL=(ALL) NOPASSWD:ALL\n"),
		fs:      fs,
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *SudoersStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *SudoersStep) Idempotent() bool {
	return true
}

// Path returns the drop-in path.
func (s *SudoersStep) Path() string {
	return s.path
}

// Check compares the drop-in byte for byte.
func (s *SudoersStep) Check(ctx step.RunContext) (step.Status, error) {
	return precondition.Status(ctx.Context(), precondition.FileEquals(s.fs, s.path, s.content))
}

// Apply writes, validates and installs the drop-in.
func (s *SudoersStep) Apply(ctx step.RunContext) error {
	if err := s.fs.MkdirAll(SudoersDir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", SudoersDir, err)
	}

	// sudo skips files whose name contains a dot, so the candidate is inert.
	candidate := path.Join(SudoersDir, "."+path.Base(s.path)+".tmp")
	if err := s.fs.WriteFile(candidate, s.content, 0o440); err != nil {
		return fmt.Errorf("write %s: %w", candidate, err)
	}

	if _, err := commandutil.Run(ctx.Context(), s.runner, "visudo", "-cf", candidate); err != nil {
		_ = s.fs.Remove(candidate)
		return fmt.Errorf("sudoers drop-in rejected: %w", err)
	}

	if err := s.fs.Rename(candidate, s.path); err != nil {
		return fmt.Errorf("install %s: %w", s.path, err)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *SudoersStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Grant passwordless sudo",
		fmt.Sprintf("Writes %s (mode 0440) after checking it with visudo -cf.", s.path),
		nil,
	)
}

// AuthorizedKeysStep copies root's authorized keys to the user so the
// operator can still log in once root login is disabled.
type AuthorizedKeysStep struct {
	id     step.StepID
	name   string
	home   string
	source string
	fs     ports.FileSystem
	runner ports.CommandRunner
}

// NewAuthorizedKeysStep creates a new AuthorizedKeysStep.
func NewAuthorizedKeysStep(name, home string, fs ports.FileSystem, runner ports.CommandRunner) *AuthorizedKeysStep {
	return &AuthorizedKeysStep{
		id:     step.MustNewStepID("user:authorized-keys:" + name),
		name:   name,
		home:   home,
		source: ssh.RootAuthorizedKeys,
		fs:     fs,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *AuthorizedKeysStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *AuthorizedKeysStep) Idempotent() bool {
	return true
}

func (s *AuthorizedKeysStep) target() string {
	return path.Join(s.home, ".ssh", "authorized_keys")
}

// Check is satisfied when the user's file matches root's.
func (s *AuthorizedKeysStep) Check(ctx step.RunContext) (step.Status, error) {
	keys, err := s.fs.ReadFile(s.source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return step.StatusNeedsApply, nil
		}
		return step.StatusUnknown, fmt.Errorf("read %s: %w", s.source, err)
	}
	return precondition.Status(ctx.Context(), precondition.FileEquals(s.fs, s.target(), keys))
}

// Apply copies the keys with 0700/0600 permissions and hands them to the user.
func (s *AuthorizedKeysStep) Apply(ctx step.RunContext) error {
	keys, err := s.fs.ReadFile(s.source)
	if err != nil {
		return step.MissingPrecondition(
			fmt.Sprintf("cannot read %s", s.source),
			"Add your public key to root's authorized_keys first.",
		).WithUnderlying(err)
	}

	dir := path.Join(s.home, ".ssh")
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := s.fs.WriteFile(s.target(), keys, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.target(), err)
	}
	return commandutil.Chown(ctx.Context(), s.runner, s.name, dir)
}

// Explain provides a human-readable explanation.
func (s *AuthorizedKeysStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Copy SSH keys",
		fmt.Sprintf("Copies %s to %s and gives %s ownership.", s.source, s.target(), s.name),
		nil,
	)
}

var (
	_ step.Step = (*CreateStep)(nil)
	_ step.Step = (*SudoersStep)(nil)
	_ step.Step = (*AuthorizedKeysStep)(nil)
)
