package app_test

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/kube"
	"github.com/felixgeelhaar/vpsctl/internal/adapters/logging"
	"github.com/felixgeelhaar/vpsctl/internal/app"
	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/readiness"
	"github.com/felixgeelhaar/vpsctl/internal/manifests"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/apt"
	"github.com/felixgeelhaar/vpsctl/internal/provider/k3s"
	"github.com/felixgeelhaar/vpsctl/internal/provider/shell"
	"github.com/felixgeelhaar/vpsctl/internal/provider/ssh"
	"github.com/felixgeelhaar/vpsctl/internal/provider/system"
	"github.com/felixgeelhaar/vpsctl/internal/testutil"
	"github.com/felixgeelhaar/vpsctl/internal/testutil/mocks"
)

const rootKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAID4+94UgSoUPPsm6y8FDQWpHxqF5XEGqOtpuCYOPx+hF ops@example.com\n"

func hostAnswers() config.Answers {
	a := config.Defaults()
	a.Hostname = "web1"
	a.Domain = "example.com"
	a.Username = "deploy"
	a.Theme = "agnoster"
	return a
}

func clusterAnswers() config.Answers {
	a := config.Defaults()
	a.Domain = "example.com"
	a.Email = "ops@example.com"
	a.Username = "deploy"
	a.DBPassword = "correct-horse-battery"
	return a
}

func ok() (ports.CommandResult, error) {
	return ports.CommandResult{}, nil
}

func exit(code int) ports.CommandResult {
	return ports.CommandResult{ExitCode: code}
}

// fakeHost models a fresh Ubuntu server whose state changes as commands
// run, so a second run observes the first run's effects.
type fakeHost struct {
	fs      *mocks.FileSystem
	runner  *mocks.CommandRunner
	network *mocks.Network
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()

	h := &fakeHost{
		fs:      mocks.NewFileSystem(),
		runner:  mocks.NewCommandRunner(),
		network: mocks.NewNetwork("203.0.113.7"),
	}
	h.fs.AddFile("/etc/os-release", testutil.LoadFixture(t, "os-release"))
	h.fs.AddFile(ssh.RootAuthorizedKeys, rootKey)
	h.fs.AddFile(system.HostsPath, "127.0.0.1 localhost\n127.0.1.1 ubuntu-s-1vcpu ubuntu-s-1vcpu\n")
	h.fs.AddFile(ssh.SSHDConfigPath, testutil.LoadFixture(t, "sshd_config"))
	h.network.AddRecord("example.com", "203.0.113.7")
	return h
}

func (h *fakeHost) deps() app.Deps {
	return app.Deps{
		Runner:    h.runner,
		FS:        h.fs,
		Network:   h.network,
		Cluster:   mocks.NewCluster(),
		Helm:      mocks.NewHelm(),
		Database:  mocks.NewDatabase(),
		Poller:    readiness.NewPoller(logging.NewNopLogger()),
		Passwords: func(n int) (string, error) { return strings.Repeat("x", n), nil },
	}
}

func (h *fakeHost) withHostCommands() *fakeHost {
	r := h.runner

	hostname := "ubuntu-s-1vcpu"
	r.AddHandler("hostname", nil, func() (ports.CommandResult, error) {
		return ports.CommandResult{Stdout: hostname + "\n"}, nil
	})
	r.AddHandler("hostnamectl", []string{"set-hostname", "web1"}, func() (ports.CommandResult, error) {
		hostname = "web1"
		return ok()
	})

	r.AddResult("apt-get", []string{"update", "-q"}, ports.CommandResult{})
	installed := map[string]bool{"ca-certificates": true}
	for _, pkg := range apt.BasePackages {
		r.AddHandler("dpkg-query", []string{"-W", "-f=${Status}", pkg}, func() (ports.CommandResult, error) {
			if installed[pkg] {
				return ports.CommandResult{Stdout: "install ok installed"}, nil
			}
			return exit(1), nil
		})
		r.AddHandler("apt-get", []string{"install", "-y", "-q", "--no-install-recommends", pkg}, func() (ports.CommandResult, error) {
			installed[pkg] = true
			return ok()
		})
	}

	userExists := false
	r.AddHandler("id", []string{"-u", "deploy"}, func() (ports.CommandResult, error) {
		if userExists {
			return ports.CommandResult{Stdout: "1000\n"}, nil
		}
		return exit(1), nil
	})
	r.AddHandler("useradd", []string{"-m", "-s", "/bin/bash", "-G", "sudo", "deploy"}, func() (ports.CommandResult, error) {
		userExists = true
		return ok()
	})
	r.AddResult("visudo", []string{"-cf", "/etc/sudoers.d/.90-vpsctl-deploy.tmp"}, ports.CommandResult{})
	r.AddResult("chown", []string{"-R", "deploy:deploy", "/home/deploy/.ssh"}, ports.CommandResult{})
	r.AddResult("chown", []string{"-R", "deploy:deploy", "/home/deploy/.zshrc"}, ports.CommandResult{})
	r.AddResult("sshd", []string{"-t", "-f", ssh.SSHDConfigPath + ".vpsctl"}, ports.CommandResult{})
	r.AddResult("systemctl", []string{"reload", "ssh"}, ports.CommandResult{})

	var rules []string
	r.AddHandler("ufw", []string{"show", "added"}, func() (ports.CommandResult, error) {
		return ports.CommandResult{Stdout: "Added user rules:\n" + strings.Join(rules, "\n") + "\n"}, nil
	})
	for _, rule := range []string{"OpenSSH", "80/tcp", "443/tcp", "6443/tcp"} {
		r.AddHandler("ufw", []string{"allow", rule}, func() (ports.CommandResult, error) {
			rules = append(rules, "ufw allow "+rule)
			return ok()
		})
	}
	active := false
	r.AddHandler("ufw", []string{"status"}, func() (ports.CommandResult, error) {
		if active {
			return ports.CommandResult{Stdout: "Status: active\n"}, nil
		}
		return ports.CommandResult{Stdout: "Status: inactive\n"}, nil
	})
	r.AddHandler("ufw", []string{"--force", "enable"}, func() (ports.CommandResult, error) {
		active = true
		return ok()
	})

	script := "/tmp/vpsctl-oh-my-zsh-install.sh"
	r.AddHandler("curl", []string{"-fsSL", "-o", script, shell.OhMyZshInstallURL}, func() (ports.CommandResult, error) {
		h.fs.AddFile(script, "#!/bin/sh\n")
		return ok()
	})
	r.AddHandler("runuser", []string{"-u", "deploy", "--", "env", "HOME=/home/deploy", "RUNZSH=no", "CHSH=no", "sh", script, "--unattended"},
		func() (ports.CommandResult, error) {
			h.fs.AddDir("/home/deploy/.oh-my-zsh")
			h.fs.AddFile("/home/deploy/.zshrc", "export ZSH=\"$HOME/.oh-my-zsh\"\nZSH_THEME=\"robbyrussell\"\nplugins=(git)\nsource $ZSH/oh-my-zsh.sh\n")
			return ok()
		})

	loginShell := "/bin/bash"
	r.AddHandler("getent", []string{"passwd", "deploy"}, func() (ports.CommandResult, error) {
		return ports.CommandResult{Stdout: "deploy:x:1000:1000::/home/deploy:" + loginShell + "\n"}, nil
	})
	r.AddHandler("chsh", []string{"-s", shell.ZshPath, "deploy"}, func() (ports.CommandResult, error) {
		loginShell = shell.ZshPath
		return ok()
	})
	return h
}

func (h *fakeHost) withClusterCommands() *fakeHost {
	r := h.runner

	running := false
	r.AddHandler("systemctl", []string{"is-active", "--quiet", "k3s"}, func() (ports.CommandResult, error) {
		if running {
			return ok()
		}
		return exit(3), nil
	})
	script := "/tmp/vpsctl-k3s-install.sh"
	r.AddHandler("curl", []string{"-sfL", "-o", script, k3s.InstallURL}, func() (ports.CommandResult, error) {
		h.fs.AddFile(script, "#!/bin/sh\n")
		return ok()
	})
	r.AddHandler("env", []string{
		"INSTALL_K3S_VERSION=" + config.DefaultK3sVersion,
		"INSTALL_K3S_EXEC=" + k3s.InstallExec,
		"sh", script,
	}, func() (ports.CommandResult, error) {
		running = true
		h.fs.AddFile(kube.DefaultKubeconfigPath, "apiVersion: v1\nkind: Config\n")
		return ok()
	})
	r.AddResult("chown", []string{"-R", "deploy:deploy", "/home/deploy/.kube"}, ports.CommandResult{})
	return h
}

func readyCluster() *mocks.Cluster {
	values := manifests.DefaultValues("example.com", "ops@example.com")
	cluster := mocks.NewCluster()
	cluster.SetNodesReady(true)
	cluster.SetPodsReady(app.IngressNginxChart.Namespace, app.IngressNginxSelector, true)
	cluster.SetPodsReady(app.CertManagerChart.Namespace, app.CertManagerSelector, true)
	cluster.SetPodsReady(values.DatabaseNamespace, values.DatabaseSelector(), true)
	return cluster
}
