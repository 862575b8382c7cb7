package ports

import (
	"context"
	"time"
)

// Cluster is the subset of the Kubernetes API the cluster playbook drives.
type Cluster interface {
	// NodesReady reports whether at least one node exists and every node is Ready.
	NodesReady(ctx context.Context) (bool, error)

	// PodsReady reports whether at least one pod matches the selector and all
	// matching pods are Running with the Ready condition.
	PodsReady(ctx context.Context, namespace, selector string) (bool, error)

	// SecretExists reports whether the named secret exists.
	SecretExists(ctx context.Context, namespace, name string) (bool, error)

	// SecretValue returns one key of a secret.
	SecretValue(ctx context.Context, namespace, name, key string) ([]byte, error)

	// CreateSecret creates an Opaque secret. It fails if the secret exists.
	CreateSecret(ctx context.Context, namespace, name string, data map[string][]byte) error

	// ManifestApplied reports whether every object in a multi-document
	// manifest exists and was last applied from the same rendered content.
	ManifestApplied(ctx context.Context, manifest []byte) (bool, error)

	// Apply server-side applies every object in a multi-document manifest.
	Apply(ctx context.Context, manifest []byte) error

	// ServiceClusterIP returns the ClusterIP of a service.
	ServiceClusterIP(ctx context.Context, namespace, name string) (string, error)
}

// HelmRelease describes a chart installation.
type HelmRelease struct {
	Name      string
	Namespace string
	RepoURL   string
	Chart     string
	Version   string
	Values    map[string]any
	Timeout   time.Duration
}

// Helm installs and inspects Helm releases.
type Helm interface {
	// ReleaseCurrent reports whether the release is deployed from the same
	// chart version and values.
	ReleaseCurrent(ctx context.Context, release HelmRelease) (bool, error)
	InstallOrUpgrade(ctx context.Context, release HelmRelease) error
}
