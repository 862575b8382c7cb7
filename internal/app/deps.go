package app

import (
	"github.com/felixgeelhaar/vpsctl/internal/adapters/command"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/filesystem"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/helm"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/kube"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/netprobe"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/postgres"
	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/manifests"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// PasswordFunc generates a random password of length n.
type PasswordFunc func(n int) (string, error)

// Deps are the ports every playbook step is built on.
type Deps struct {
	Runner    ports.CommandRunner
	FS        ports.FileSystem
	Network   ports.Network
	Cluster   ports.Cluster
	Helm      ports.Helm
	Database  ports.Database
	Poller    *readiness.Poller
	Passwords PasswordFunc
}

// NewDeps wires the real adapters. The Kubernetes, Helm and database
// clients connect lazily: the kubeconfig they need is written mid-run.
func NewDeps(logger ports.Logger) Deps {
	fs := filesystem.NewRealFileSystem()
	runner := command.NewRealRunner().WithEnv("DEBIAN_FRONTEND=noninteractive")
	cluster := kube.New(fs, kube.DefaultKubeconfigPath)

	values := manifests.DefaultValues("", "")
	resolver := postgres.ClusterResolver(cluster,
		values.DatabaseNamespace, values.DatabaseName, values.DatabaseSecret,
		values.Superuser, values.PasswordKey)

	return Deps{
		Runner:    runner,
		FS:        fs,
		Network:   netprobe.New(),
		Cluster:   cluster,
		Helm:      helm.NewClient(fs, kube.DefaultKubeconfigPath, logger),
		Database:  postgres.NewClient(resolver),
		Poller:    readiness.NewPoller(logger),
		Passwords: config.GeneratePassword,
	}
}
