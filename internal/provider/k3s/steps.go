// Package k3s installs a single-node k3s server and hands its kubeconfig to
// the sudo user.
package k3s

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/kube"
	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
)

// Installer settings.
const (
	InstallURL  = "https://get.k3s.io"
	InstallExec = "server --disable traefik --write-kubeconfig-mode 0600"
)

// Wait budgets.
var (
	KubeconfigWait = readiness.Spec{Interval: 2 * time.Second, MaxAttempts: 60}
	NodeWait       = readiness.Spec{Interval: 5 * time.Second, MaxAttempts: 60}
)

// InstallStep runs the k3s installer for a pinned version.
type InstallStep struct {
	id      step.StepID
	version string
	script  string
	fs      ports.FileSystem
	runner  ports.CommandRunner
}

// NewInstallStep creates a new InstallStep.
func NewInstallStep(version string, fs ports.FileSystem, runner ports.CommandRunner) *InstallStep {
	return &InstallStep{
		id:      step.MustNewStepID("k3s:install"),
		version: version,
		script:  "/tmp/vpsctl-k3s-install.sh",
		fs:      fs,
		runner:  runner,
	}
}

// ID returns the step identifier.
func (s *InstallStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *InstallStep) Idempotent() bool {
	return true
}

// Check asks systemd whether k3s is running.
func (s *InstallStep) Check(ctx step.RunContext) (step.Status, error) {
	return precondition.Status(ctx.Context(), precondition.CommandSucceeds(s.runner, "systemctl", "is-active", "--quiet", "k3s"))
}

// Apply downloads and runs the installer.
func (s *InstallStep) Apply(ctx step.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, "curl", "-sfL", "-o", s.script, InstallURL); err != nil {
		return fmt.Errorf("download k3s installer: %w", err)
	}
	defer func() { _ = s.fs.Remove(s.script) }()

	_, err := commandutil.Run(ctx.Context(), s.runner, "env",
		"INSTALL_K3S_VERSION="+s.version,
		"INSTALL_K3S_EXEC="+InstallExec,
		"sh", s.script)
	return err
}

// Explain provides a human-readable explanation.
func (s *InstallStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Install k3s",
		fmt.Sprintf("Installs k3s %s from %s with %q.", s.version, InstallURL, InstallExec),
		[]string{"https://docs.k3s.io/installation/configuration"},
	)
}

// NewWaitKubeconfigStep waits for k3s to write its kubeconfig.
func NewWaitKubeconfigStep(fs ports.FileSystem, poller *readiness.Poller) *readiness.WaitStep {
	spec := KubeconfigWait
	spec.Name = kube.DefaultKubeconfigPath
	spec.Predicate = precondition.FileExists(fs, kube.DefaultKubeconfigPath)
	return readiness.NewWaitStep(step.MustNewStepID("k3s:wait-kubeconfig"), spec, poller, "Wait for kubeconfig")
}

// NewWaitNodeStep waits until every node reports Ready.
func NewWaitNodeStep(cluster ports.Cluster, poller *readiness.Poller) *readiness.WaitStep {
	spec := NodeWait
	spec.Name = "node Ready"
	spec.Predicate = func(ctx context.Context) (bool, error) {
		return cluster.NodesReady(ctx)
	}
	return readiness.NewWaitStep(step.MustNewStepID("k3s:wait-node"), spec, poller, "Wait for node")
}

// KubeconfigStep copies the admin kubeconfig into the user's ~/.kube.
type KubeconfigStep struct {
	id     step.StepID
	name   string
	home   string
	source string
	fs     ports.FileSystem
	runner ports.CommandRunner
}

// NewKubeconfigStep creates a new KubeconfigStep.
func NewKubeconfigStep(name, home string, fs ports.FileSystem, runner ports.CommandRunner) *KubeconfigStep {
	return &KubeconfigStep{
		id:     step.MustNewStepID("k3s:kubeconfig:" + name),
		name:   name,
		home:   home,
		source: kube.DefaultKubeconfigPath,
		fs:     fs,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *KubeconfigStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *KubeconfigStep) Idempotent() bool {
	return true
}

// Target returns the user's kubeconfig path.
func (s *KubeconfigStep) Target() string {
	return path.Join(s.home, ".kube", "config")
}

// Check compares the copy with the source.
func (s *KubeconfigStep) Check(ctx step.RunContext) (step.Status, error) {
	data, err := s.fs.ReadFile(s.source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return step.StatusNeedsApply, nil
		}
		return step.StatusUnknown, fmt.Errorf("read %s: %w", s.source, err)
	}
	return precondition.Status(ctx.Context(), precondition.FileEquals(s.fs, s.Target(), data))
}

// Apply copies the file with mode 0600.
func (s *KubeconfigStep) Apply(ctx step.RunContext) error {
	data, err := s.fs.ReadFile(s.source)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.source, err)
	}
	dir := path.Dir(s.Target())
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := s.fs.WriteFile(s.Target(), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.Target(), err)
	}
	return commandutil.Chown(ctx.Context(), s.runner, s.name, dir)
}

// Explain provides a human-readable explanation.
func (s *KubeconfigStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Copy kubeconfig",
		fmt.Sprintf("Copies %s to %s so %s can run kubectl.", s.source, s.Target(), s.name),
		nil,
	)
}

var (
	_ step.Step = (*InstallStep)(nil)
	_ step.Step = (*KubeconfigStep)(nil)
)
