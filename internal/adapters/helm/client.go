// Package helm implements ports.Helm with the Helm v3 SDK.
package helm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// DefaultTimeout bounds a single install or upgrade.
const DefaultTimeout = 10 * time.Minute

// Client implements ports.Helm. One action configuration is built per
// namespace, on first use, from the kubeconfig at path.
type Client struct {
	fs     ports.FileSystem
	path   string
	logger ports.Logger

	mu      sync.Mutex
	configs map[string]*action.Configuration
	load    func(repoURL, chartName, version string) (*chart.Chart, error)
}

// Ensure Client implements ports.Helm.
var _ ports.Helm = (*Client)(nil)

// NewClient creates a Helm client reading its kubeconfig from path.
func NewClient(fs ports.FileSystem, path string, logger ports.Logger) *Client {
	return &Client{
		fs:      fs,
		path:    path,
		logger:  logger,
		configs: make(map[string]*action.Configuration),
		load:    loadChart,
	}
}

func (c *Client) configuration(namespace string) (*action.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg, ok := c.configs[namespace]; ok {
		return cfg, nil
	}

	kubeconfig, err := c.fs.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read kubeconfig: %w", err)
	}

	cfg := new(action.Configuration)
	debug := func(format string, v ...interface{}) {
		c.logger.Debug(context.Background(), fmt.Sprintf(format, v...), ports.F("namespace", namespace))
	}
	if err := cfg.Init(newRESTClientGetter(kubeconfig, namespace), namespace, "secret", debug); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	c.configs[namespace] = cfg
	return cfg, nil
}

// ReleaseCurrent reports whether the latest revision of a release is
// deployed from the pinned chart version with the same values. A failed or
// pending release counts as stale so that it gets upgraded.
func (c *Client) ReleaseCurrent(_ context.Context, rel ports.HelmRelease) (bool, error) {
	cfg, err := c.configuration(rel.Namespace)
	if err != nil {
		return false, err
	}

	latest, err := latestRelease(cfg, rel.Name)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.Info == nil || latest.Info.Status != release.StatusDeployed {
		return false, nil
	}
	if rel.Version != "" && chartVersion(latest) != rel.Version {
		return false, nil
	}
	return sameValues(latest.Config, rel.Values)
}

func latestRelease(cfg *action.Configuration, name string) (*release.Release, error) {
	histClient := action.NewHistory(cfg)
	histClient.Max = 1

	releases, err := histClient.Run(name)
	if err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history of release %s: %w", name, err)
	}
	return latestRevision(releases), nil
}

func chartVersion(rel *release.Release) string {
	if rel.Chart == nil || rel.Chart.Metadata == nil {
		return ""
	}
	return rel.Chart.Metadata.Version
}

// sameValues compares user-supplied values in their JSON form, so numbers
// decoded from storage match the ints they were rendered from.
func sameValues(live, want map[string]any) (bool, error) {
	if len(live) == 0 && len(want) == 0 {
		return true, nil
	}
	liveJSON, err := json.Marshal(live)
	if err != nil {
		return false, fmt.Errorf("failed to encode release values: %w", err)
	}
	wantJSON, err := json.Marshal(want)
	if err != nil {
		return false, fmt.Errorf("failed to encode desired values: %w", err)
	}
	return bytes.Equal(liveJSON, wantJSON), nil
}

func latestRevision(releases []*release.Release) *release.Release {
	var latest *release.Release
	for _, r := range releases {
		if latest == nil || r.Version > latest.Version {
			latest = r
		}
	}
	return latest
}

// InstallOrUpgrade installs a chart or upgrades the release if it has any history.
func (c *Client) InstallOrUpgrade(ctx context.Context, rel ports.HelmRelease) error {
	cfg, err := c.configuration(rel.Namespace)
	if err != nil {
		return err
	}

	ch, err := c.load(rel.RepoURL, rel.Chart, rel.Version)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	timeout := rel.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	histClient := action.NewHistory(cfg)
	histClient.Max = 1
	if _, err := histClient.Run(rel.Name); err != nil {
		if !errors.Is(err, driver.ErrReleaseNotFound) {
			return fmt.Errorf("failed to read history of release %s: %w", rel.Name, err)
		}
		return c.install(ctx, cfg, ch, rel, timeout)
	}
	return c.upgrade(ctx, cfg, ch, rel, timeout)
}

func (c *Client) install(ctx context.Context, cfg *action.Configuration, ch *chart.Chart, rel ports.HelmRelease, timeout time.Duration) error {
	installClient := action.NewInstall(cfg)
	installClient.ReleaseName = rel.Name
	installClient.Namespace = rel.Namespace
	installClient.CreateNamespace = true
	installClient.Version = rel.Version
	installClient.Wait = true
	installClient.Timeout = timeout

	c.logger.Info(ctx, "installing helm release",
		ports.F("release", rel.Name), ports.F("chart", rel.Chart), ports.F("version", rel.Version))
	if _, err := installClient.RunWithContext(ctx, ch, rel.Values); err != nil {
		return fmt.Errorf("failed to install release %s: %w", rel.Name, err)
	}
	return nil
}

func (c *Client) upgrade(ctx context.Context, cfg *action.Configuration, ch *chart.Chart, rel ports.HelmRelease, timeout time.Duration) error {
	upgradeClient := action.NewUpgrade(cfg)
	upgradeClient.Namespace = rel.Namespace
	upgradeClient.Version = rel.Version
	upgradeClient.Wait = true
	upgradeClient.Timeout = timeout
	upgradeClient.ReuseValues = false

	c.logger.Info(ctx, "upgrading helm release",
		ports.F("release", rel.Name), ports.F("chart", rel.Chart), ports.F("version", rel.Version))
	if _, err := upgradeClient.RunWithContext(ctx, rel.Name, ch, rel.Values); err != nil {
		return fmt.Errorf("failed to upgrade release %s: %w", rel.Name, err)
	}
	return nil
}

func loadChart(repoURL, chartName, version string) (*chart.Chart, error) {
	settings := cli.New()

	chartPath, err := repo.FindChartInRepoURL(
		repoURL,
		chartName,
		version,
		"", "", "",
		getter.All(settings),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", chartName, repoURL, err)
	}
	defer func() {
		_ = os.Remove(chartPath)
	}()

	return loader.Load(chartPath)
}
