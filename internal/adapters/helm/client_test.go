package helm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	kubefake "helm.sh/helm/v3/pkg/kube/fake"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/storage"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/logging"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/testutil/mocks"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
    insecure-skip-tls-verify: true
  name: k3s
contexts:
- context:
    cluster: k3s
    user: admin
  name: default
current-context: default
users:
- name: admin
  user:
    token: test-token
`

func memoryConfiguration() *action.Configuration {
	return &action.Configuration{
		Releases:     storage.Init(driver.NewMemory()),
		KubeClient:   &kubefake.PrintingKubeClient{Out: io.Discard},
		Capabilities: chartutil.DefaultCapabilities,
		Log:          func(string, ...interface{}) {},
	}
}

func newTestClient(cfg *action.Configuration, namespace string) *Client {
	c := NewClient(mocks.NewFileSystem(), "/etc/rancher/k3s/k3s.yaml", logging.NewNopLogger())
	c.configs[namespace] = cfg
	c.load = func(_, name, version string) (*chart.Chart, error) {
		return &chart.Chart{
			Metadata: &chart.Metadata{APIVersion: chart.APIVersionV2, Name: name, Version: version},
		}, nil
	}
	return c
}

func storeRelease(t *testing.T, cfg *action.Configuration, version int, status release.Status, chartVersion string, values map[string]any) {
	t.Helper()
	require.NoError(t, cfg.Releases.Create(&release.Release{
		Name:      "cert-manager",
		Namespace: "cert-manager",
		Version:   version,
		Info:      &release.Info{Status: status},
		Chart:     &chart.Chart{Metadata: &chart.Metadata{Name: "cert-manager", Version: chartVersion}},
		Config:    values,
	}))
}

func certManagerRelease() ports.HelmRelease {
	return ports.HelmRelease{
		Name:      "cert-manager",
		Namespace: "cert-manager",
		Chart:     "cert-manager",
		Version:   "v1.17.1",
		Values:    map[string]any{"crds": map[string]any{"enabled": true}},
	}
}

func TestClient_ReleaseCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	values := map[string]any{"crds": map[string]any{"enabled": true}}

	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *action.Configuration)
		want  bool
	}{
		{
			name:  "no history",
			setup: func(*testing.T, *action.Configuration) {},
			want:  false,
		},
		{
			name: "deployed with same chart and values",
			setup: func(t *testing.T, cfg *action.Configuration) {
				storeRelease(t, cfg, 1, release.StatusDeployed, "v1.17.1", values)
			},
			want: true,
		},
		{
			name: "latest revision failed",
			setup: func(t *testing.T, cfg *action.Configuration) {
				storeRelease(t, cfg, 1, release.StatusSuperseded, "v1.17.1", values)
				storeRelease(t, cfg, 2, release.StatusFailed, "v1.17.1", values)
			},
			want: false,
		},
		{
			name: "older chart version",
			setup: func(t *testing.T, cfg *action.Configuration) {
				storeRelease(t, cfg, 1, release.StatusDeployed, "v1.16.0", values)
			},
			want: false,
		},
		{
			name: "different values",
			setup: func(t *testing.T, cfg *action.Configuration) {
				storeRelease(t, cfg, 1, release.StatusDeployed, "v1.17.1", map[string]any{"crds": map[string]any{"enabled": false}})
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := memoryConfiguration()
			tt.setup(t, cfg)

			current, err := newTestClient(cfg, "cert-manager").ReleaseCurrent(ctx, certManagerRelease())
			require.NoError(t, err)
			assert.Equal(t, tt.want, current)
		})
	}
}

func TestSameValues(t *testing.T) {
	t.Parallel()

	same, err := sameValues(nil, map[string]any{})
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameValues(map[string]any{"replicas": float64(2)}, map[string]any{"replicas": 2})
	require.NoError(t, err)
	assert.True(t, same)

	same, err = sameValues(map[string]any{"replicas": 1}, map[string]any{"replicas": 2})
	require.NoError(t, err)
	assert.False(t, same)
}

func TestClient_InstallOrUpgrade(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(memoryConfiguration(), "ingress-nginx")

	rel := ports.HelmRelease{
		Name:      "ingress-nginx",
		Namespace: "ingress-nginx",
		RepoURL:   "https://kubernetes.github.io/ingress-nginx",
		Chart:     "ingress-nginx",
		Version:   "4.11.3",
	}

	require.NoError(t, c.InstallOrUpgrade(ctx, rel))

	current, err := c.ReleaseCurrent(ctx, rel)
	require.NoError(t, err)
	assert.True(t, current)

	rel.Version = "4.12.1"
	current, err = c.ReleaseCurrent(ctx, rel)
	require.NoError(t, err)
	assert.False(t, current, "pinned version bump needs an upgrade")

	require.NoError(t, c.InstallOrUpgrade(ctx, rel), "second call upgrades")
	current, err = c.ReleaseCurrent(ctx, rel)
	require.NoError(t, err)
	assert.True(t, current)
}

func TestClient_InstallOrUpgrade_ChartLoadFails(t *testing.T) {
	t.Parallel()

	c := newTestClient(memoryConfiguration(), "ingress-nginx")
	c.load = func(string, string, string) (*chart.Chart, error) {
		return nil, errors.New("repo unreachable")
	}

	err := c.InstallOrUpgrade(context.Background(), ports.HelmRelease{Name: "x", Namespace: "ingress-nginx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo unreachable")
}

func TestClient_MissingKubeconfig(t *testing.T) {
	t.Parallel()

	c := NewClient(mocks.NewFileSystem(), "/etc/rancher/k3s/k3s.yaml", logging.NewNopLogger())
	_, err := c.ReleaseCurrent(context.Background(), ports.HelmRelease{Name: "x", Namespace: "default"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read kubeconfig")
}

func TestClient_ConfigurationLogsHelmDebugOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewConsoleLogger(
		logging.WithOutput(&buf),
		logging.WithLevel(ports.LevelDebug),
		logging.WithFormat(logging.FormatText),
	)
	fs := mocks.NewFileSystem()
	fs.AddFile("/etc/rancher/k3s/k3s.yaml", testKubeconfig)

	c := NewClient(fs, "/etc/rancher/k3s/k3s.yaml", logger)
	cfg, err := c.configuration("ingress-nginx")
	require.NoError(t, err)

	cfg.Log("creating %d resource(s)", 3)
	assert.Contains(t, buf.String(), "creating 3 resource(s)")
	assert.Contains(t, buf.String(), "namespace=ingress-nginx")

	again, err := c.configuration("ingress-nginx")
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestRESTClientGetter(t *testing.T) {
	t.Parallel()

	getter := newRESTClientGetter([]byte(testKubeconfig), "cert-manager")

	config1, err := getter.ToRESTConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:6443", config1.Host)
	assert.Equal(t, "test-token", config1.BearerToken)

	config2, err := getter.ToRESTConfig()
	require.NoError(t, err)
	assert.Same(t, config1, config2)

	namespace, _, err := getter.ToRawKubeConfigLoader().Namespace()
	require.NoError(t, err)
	assert.Equal(t, "cert-manager", namespace)
}

func TestRESTClientGetter_InvalidKubeconfig(t *testing.T) {
	t.Parallel()

	_, err := newRESTClientGetter([]byte(`not valid yaml: {{{{`), "default").ToRESTConfig()
	assert.Error(t, err)
}
