// Package kube implements ports.Cluster on top of k8s.io/client-go.
package kube

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// DefaultKubeconfigPath is where k3s writes its admin kubeconfig.
const DefaultKubeconfigPath = "/etc/rancher/k3s/k3s.yaml"

// FieldManager identifies vpsctl in server-side apply.
const FieldManager = "vpsctl"

// ErrNotConnected is returned when the kubeconfig cannot be read yet.
var ErrNotConnected = errors.New("kubernetes API not reachable")

// Client implements ports.Cluster.
//
// A Client built with New connects lazily: the kubeconfig only exists once
// k3s is installed, which happens in the same run that constructs the client.
type Client struct {
	fs   ports.FileSystem
	path string

	mu            sync.Mutex
	kubeconfig    []byte
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
}

// Ensure Client implements ports.Cluster.
var _ ports.Cluster = (*Client)(nil)

// New creates a Client that reads its kubeconfig from path on first use.
func New(fs ports.FileSystem, path string) *Client {
	if path == "" {
		path = DefaultKubeconfigPath
	}
	return &Client{fs: fs, path: path}
}

// NewFromClients creates a Client from pre-configured clients.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) *Client {
	return &Client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
	}
}

// connect builds the clients from the kubeconfig if that has not happened yet.
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clientset != nil {
		return nil
	}
	if c.fs == nil {
		return ErrNotConnected
	}

	kubeconfig, err := c.fs.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create dynamic client: %w", err)
	}

	mapper, err := discoverMapper(kubeconfig)
	if err != nil {
		return err
	}

	c.kubeconfig = kubeconfig
	c.clientset = clientset
	c.dynamicClient = dynamicClient
	c.mapper = mapper
	return nil
}

func discoverMapper(kubeconfig []byte) (meta.RESTMapper, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}
	return restmapper.NewDiscoveryRESTMapper(groupResources), nil
}

// refreshDiscovery rebuilds the REST mapper to pick up CRDs installed by
// Helm charts earlier in the run. Clients built from fakes keep their mapper.
func (c *Client) refreshDiscovery() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.kubeconfig) == 0 {
		return nil
	}
	mapper, err := discoverMapper(c.kubeconfig)
	if err != nil {
		return err
	}
	c.mapper = mapper
	return nil
}

// NodesReady reports whether at least one node exists and all nodes are Ready.
func (c *Client) NodesReady(ctx context.Context) (bool, error) {
	if err := c.connect(); err != nil {
		return false, err
	}

	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(nodes.Items) == 0 {
		return false, nil
	}

	for i := range nodes.Items {
		if !nodeReady(&nodes.Items[i]) {
			return false, nil
		}
	}
	return true, nil
}

func nodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// PodsReady reports whether at least one pod matches the selector and every
// matching pod is Running with the Ready condition.
func (c *Client) PodsReady(ctx context.Context, namespace, selector string) (bool, error) {
	if err := c.connect(); err != nil {
		return false, err
	}

	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pods in %s (%s): %w", namespace, selector, err)
	}
	if len(pods.Items) == 0 {
		return false, nil
	}

	for i := range pods.Items {
		if !podReady(&pods.Items[i]) {
			return false, nil
		}
	}
	return true, nil
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// SecretExists reports whether the named secret exists.
func (c *Client) SecretExists(ctx context.Context, namespace, name string) (bool, error) {
	if err := c.connect(); err != nil {
		return false, err
	}

	_, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	return true, nil
}

// SecretValue returns one key of a secret.
func (c *Client) SecretValue(ctx context.Context, namespace, name, key string) ([]byte, error) {
	if err := c.connect(); err != nil {
		return nil, err
	}

	secret, err := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}

	value, ok := secret.Data[key]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s has no key %q", namespace, name, key)
	}
	return value, nil
}

// CreateSecret creates an Opaque secret. It fails if the secret exists so
// that generated credentials are never silently replaced.
func (c *Client) CreateSecret(ctx context.Context, namespace, name string, data map[string][]byte) error {
	if namespace == "" {
		return fmt.Errorf("secret namespace is required")
	}
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	if err := c.connect(); err != nil {
		return err
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": FieldManager},
		},
		Type: corev1.SecretTypeOpaque,
		Data: data,
	}

	if _, err := c.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// ServiceClusterIP returns the ClusterIP of a service.
func (c *Client) ServiceClusterIP(ctx context.Context, namespace, name string) (string, error) {
	if err := c.connect(); err != nil {
		return "", err
	}

	svc, err := c.clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get service %s/%s: %w", namespace, name, err)
	}

	ip := svc.Spec.ClusterIP
	if ip == "" || ip == corev1.ClusterIPNone {
		return "", fmt.Errorf("service %s/%s has no cluster IP", namespace, name)
	}
	return ip, nil
}
