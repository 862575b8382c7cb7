// Package kubernetes provides the cluster-side steps: Helm releases,
// server-side applied manifests, secrets and pod readiness waits.
package kubernetes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// PodWait is the default budget for pods to become Ready.
var PodWait = readiness.Spec{Interval: 5 * time.Second, MaxAttempts: 60}

// HelmReleaseStep installs a chart, or upgrades it when the deployed
// release has a different chart version or values.
type HelmReleaseStep struct {
	id      step.StepID
	release ports.HelmRelease
	helm    ports.Helm
}

// NewHelmReleaseStep creates a new HelmReleaseStep.
func NewHelmReleaseStep(release ports.HelmRelease, helm ports.Helm) *HelmReleaseStep {
	return &HelmReleaseStep{
		id:      step.MustNewStepID("helm:release:" + release.Name),
		release: release,
		helm:    helm,
	}
}

// ID returns the step identifier.
func (s *HelmReleaseStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *HelmReleaseStep) Idempotent() bool {
	return true
}

// Check compares the latest revision with the pinned release.
func (s *HelmReleaseStep) Check(ctx step.RunContext) (step.Status, error) {
	current, err := s.helm.ReleaseCurrent(ctx.Context(), s.release)
	if err != nil {
		return step.StatusUnknown, fmt.Errorf("look up release %s: %w", s.release.Name, err)
	}
	if current {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply installs or upgrades the release.
func (s *HelmReleaseStep) Apply(ctx step.RunContext) error {
	if err := s.helm.InstallOrUpgrade(ctx.Context(), s.release); err != nil {
		return fmt.Errorf("release %s: %w", s.release.Name, err)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *HelmReleaseStep) Explain(ctx step.ExplainContext) step.Explanation {
	version := s.release.Version
	if version == "" {
		version = "latest"
	}
	detail := fmt.Sprintf("Installs chart %s %s from %s into namespace %s.",
		s.release.Chart, version, s.release.RepoURL, s.release.Namespace)
	if ctx.Verbose() && len(s.release.Values) > 0 {
		keys := make([]string, 0, len(s.release.Values))
		for k := range s.release.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		detail += fmt.Sprintf(" Values: %v", keys)
	}
	return step.NewExplanation("Install Helm release", detail, []string{s.release.RepoURL})
}

// ApplyStep server-side applies a rendered manifest.
type ApplyStep struct {
	id       step.StepID
	name     string
	manifest []byte
	cluster  ports.Cluster
}

// NewApplyStep creates a new ApplyStep.
func NewApplyStep(name string, manifest []byte, cluster ports.Cluster) *ApplyStep {
	return &ApplyStep{
		id:       step.MustNewStepID("kube:apply:" + name),
		name:     name,
		manifest: manifest,
		cluster:  cluster,
	}
}

// ID returns the step identifier.
func (s *ApplyStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *ApplyStep) Idempotent() bool {
	return true
}

// Check is satisfied when every object in the manifest exists.
func (s *ApplyStep) Check(ctx step.RunContext) (step.Status, error) {
	applied, err := s.cluster.ManifestApplied(ctx.Context(), s.manifest)
	if err != nil {
		return step.StatusUnknown, err
	}
	if applied {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply applies the manifest.
func (s *ApplyStep) Apply(ctx step.RunContext) error {
	return s.cluster.Apply(ctx.Context(), s.manifest)
}

// Explain provides a human-readable explanation.
func (s *ApplyStep) Explain(ctx step.ExplainContext) step.Explanation {
	detail := fmt.Sprintf("Server-side applies the %s manifest.", s.name)
	if ctx.Verbose() {
		detail += "\n" + string(s.manifest)
	}
	return step.NewExplanation("Apply manifest", detail, nil)
}

// SecretData produces a secret's payload. It is only called when the
// secret is created, so generated passwords never change on re-runs.
type SecretData func() (map[string][]byte, error)

// SecretStep creates a secret if it does not exist.
type SecretStep struct {
	id        step.StepID
	namespace string
	name      string
	data      SecretData
	cluster   ports.Cluster
}

// NewSecretStep creates a new SecretStep.
func NewSecretStep(namespace, name string, data SecretData, cluster ports.Cluster) *SecretStep {
	return &SecretStep{
		id:        step.MustNewStepID("kube:secret:" + name),
		namespace: namespace,
		name:      name,
		data:      data,
		cluster:   cluster,
	}
}

// ID returns the step identifier.
func (s *SecretStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *SecretStep) Idempotent() bool {
	return true
}

// Check looks the secret up.
func (s *SecretStep) Check(ctx step.RunContext) (step.Status, error) {
	exists, err := s.cluster.SecretExists(ctx.Context(), s.namespace, s.name)
	if err != nil {
		return step.StatusUnknown, err
	}
	if exists {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply creates the secret.
func (s *SecretStep) Apply(ctx step.RunContext) error {
	data, err := s.data()
	if err != nil {
		return fmt.Errorf("build secret %s/%s: %w", s.namespace, s.name, err)
	}
	return s.cluster.CreateSecret(ctx.Context(), s.namespace, s.name, data)
}

// Explain provides a human-readable explanation.
func (s *SecretStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Create secret",
		fmt.Sprintf("Creates secret %s/%s unless it exists; existing credentials are never replaced.", s.namespace, s.name),
		nil,
	)
}

// NewWaitPodsStep waits for the pods matching selector to become Ready.
func NewWaitPodsStep(name, namespace, selector string, cluster ports.Cluster, poller *readiness.Poller) *readiness.WaitStep {
	spec := PodWait
	spec.Name = fmt.Sprintf("%s pods (%s in %s)", name, selector, namespace)
	spec.Predicate = func(ctx context.Context) (bool, error) {
		return cluster.PodsReady(ctx, namespace, selector)
	}
	return readiness.NewWaitStep(step.MustNewStepID("wait:"+name), spec, poller, "Wait for "+name)
}

var (
	_ step.Step = (*HelmReleaseStep)(nil)
	_ step.Step = (*ApplyStep)(nil)
	_ step.Step = (*SecretStep)(nil)
)
