package mocks

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Cluster is an in-memory ports.Cluster. Manifests are tracked by their
// exact content; readiness answers are queued and the last one repeats.
type Cluster struct {
	mu        sync.Mutex
	nodes     []bool
	pods      map[string][]bool
	secrets   map[string]map[string][]byte
	manifests map[string]bool
	services  map[string]string
	errors    map[string]error
	applied   []string
	calls     map[string]int
}

// Ensure Cluster implements ports.Cluster.
var _ ports.Cluster = (*Cluster)(nil)

// NewCluster creates an empty cluster with no nodes.
func NewCluster() *Cluster {
	return &Cluster{
		pods:      make(map[string][]bool),
		secrets:   make(map[string]map[string][]byte),
		manifests: make(map[string]bool),
		services:  make(map[string]string),
		errors:    make(map[string]error),
		calls:     make(map[string]int),
	}
}

func key(namespace, name string) string {
	return namespace + "/" + name
}

// SetNodesReady queues NodesReady answers.
func (c *Cluster) SetNodesReady(answers ...bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = answers
}

// SetPodsReady queues PodsReady answers for a namespace and selector.
func (c *Cluster) SetPodsReady(namespace, selector string, answers ...bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pods[key(namespace, selector)] = answers
}

// AddSecret stores a secret.
func (c *Cluster) AddSecret(namespace, name string, data map[string][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[key(namespace, name)] = data
}

// AddService registers a service ClusterIP.
func (c *Cluster) AddService(namespace, name, clusterIP string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[key(namespace, name)] = clusterIP
}

// FailOn makes the named method return err.
func (c *Cluster) FailOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[method] = err
}

// Applied returns the manifests passed to Apply, in order.
func (c *Cluster) Applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.applied...)
}

// CallCount returns how often a method was called.
func (c *Cluster) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Cluster) enter(method string) error {
	c.calls[method]++
	return c.errors[method]
}

func next(answers []bool) ([]bool, bool) {
	if len(answers) == 0 {
		return answers, false
	}
	answer := answers[0]
	if len(answers) > 1 {
		answers = answers[1:]
	}
	return answers, answer
}

// NodesReady returns the next queued answer.
func (c *Cluster) NodesReady(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("NodesReady"); err != nil {
		return false, err
	}
	var ready bool
	c.nodes, ready = next(c.nodes)
	return ready, nil
}

// PodsReady returns the next queued answer for the selector.
func (c *Cluster) PodsReady(_ context.Context, namespace, selector string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("PodsReady"); err != nil {
		return false, err
	}
	k := key(namespace, selector)
	var ready bool
	c.pods[k], ready = next(c.pods[k])
	return ready, nil
}

// SecretExists reports whether a secret was stored.
func (c *Cluster) SecretExists(_ context.Context, namespace, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SecretExists"); err != nil {
		return false, err
	}
	_, ok := c.secrets[key(namespace, name)]
	return ok, nil
}

// SecretValue returns one key of a stored secret.
func (c *Cluster) SecretValue(_ context.Context, namespace, name, k string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SecretValue"); err != nil {
		return nil, err
	}
	secret, ok := c.secrets[key(namespace, name)]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s not found", namespace, name)
	}
	value, ok := secret[k]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s has no key %q", namespace, name, k)
	}
	return value, nil
}

// CreateSecret stores a secret, failing if it exists.
func (c *Cluster) CreateSecret(_ context.Context, namespace, name string, data map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CreateSecret"); err != nil {
		return err
	}
	if _, ok := c.secrets[key(namespace, name)]; ok {
		return fmt.Errorf("secret %s/%s already exists", namespace, name)
	}
	c.secrets[key(namespace, name)] = data
	return nil
}

// ManifestApplied reports whether this exact manifest was applied.
func (c *Cluster) ManifestApplied(_ context.Context, manifest []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ManifestApplied"); err != nil {
		return false, err
	}
	return c.manifests[string(manifest)], nil
}

// Apply records the manifest.
func (c *Cluster) Apply(_ context.Context, manifest []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Apply"); err != nil {
		return err
	}
	c.manifests[string(manifest)] = true
	c.applied = append(c.applied, string(manifest))
	return nil
}

// ServiceClusterIP returns a registered ClusterIP.
func (c *Cluster) ServiceClusterIP(_ context.Context, namespace, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("ServiceClusterIP"); err != nil {
		return "", err
	}
	ip, ok := c.services[key(namespace, name)]
	if !ok {
		return "", fmt.Errorf("service %s/%s not found", namespace, name)
	}
	return ip, nil
}

// Helm is an in-memory ports.Helm.
type Helm struct {
	mu       sync.Mutex
	releases map[string]ports.HelmRelease
	installs []ports.HelmRelease
	err      error
}

// Ensure Helm implements ports.Helm.
var _ ports.Helm = (*Helm)(nil)

// NewHelm creates a Helm mock with no releases.
func NewHelm() *Helm {
	return &Helm{releases: make(map[string]ports.HelmRelease)}
}

// AddRelease marks a release as deployed.
func (h *Helm) AddRelease(release ports.HelmRelease) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases[key(release.Namespace, release.Name)] = release
}

// SetError makes every call fail with err.
func (h *Helm) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Installs returns the releases passed to InstallOrUpgrade.
func (h *Helm) Installs() []ports.HelmRelease {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ports.HelmRelease(nil), h.installs...)
}

// ReleaseCurrent reports whether the release was added or installed with
// the same chart version and values.
func (h *Helm) ReleaseCurrent(_ context.Context, release ports.HelmRelease) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return false, h.err
	}
	deployed, ok := h.releases[key(release.Namespace, release.Name)]
	if !ok {
		return false, nil
	}
	return deployed.Version == release.Version && reflect.DeepEqual(deployed.Values, release.Values), nil
}

// InstallOrUpgrade records the release and marks it deployed.
func (h *Helm) InstallOrUpgrade(_ context.Context, release ports.HelmRelease) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.installs = append(h.installs, release)
	h.releases[key(release.Namespace, release.Name)] = release
	return nil
}
