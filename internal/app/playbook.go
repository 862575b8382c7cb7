package app

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/manifests"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/apt"
	"github.com/felixgeelhaar/vpsctl/internal/provider/k3s"
	"github.com/felixgeelhaar/vpsctl/internal/provider/kubernetes"
	"github.com/felixgeelhaar/vpsctl/internal/provider/postgres"
	"github.com/felixgeelhaar/vpsctl/internal/provider/shell"
	"github.com/felixgeelhaar/vpsctl/internal/provider/ssh"
	"github.com/felixgeelhaar/vpsctl/internal/provider/system"
	"github.com/felixgeelhaar/vpsctl/internal/provider/ufw"
	"github.com/felixgeelhaar/vpsctl/internal/provider/user"
)

// Charts installed by the cluster playbook.
var (
	IngressNginxChart = ports.HelmRelease{
		Name:      "ingress-nginx",
		Namespace: "ingress-nginx",
		RepoURL:   "https://kubernetes.github.io/ingress-nginx",
		Chart:     "ingress-nginx",
		Version:   "4.12.1",
	}
	CertManagerChart = ports.HelmRelease{
		Name:      "cert-manager",
		Namespace: "cert-manager",
		RepoURL:   "https://charts.jetstack.io",
		Chart:     "cert-manager",
		Version:   "v1.17.1",
	}
)

// Pod selectors waited on after each release.
const (
	IngressNginxSelector = "app.kubernetes.io/name=ingress-nginx,app.kubernetes.io/component=controller"
	CertManagerSelector  = "app.kubernetes.io/instance=cert-manager"
)

// Secret keys holding the application credentials next to the superuser
// password.
const (
	SecretKeyAppUser     = "APP_USER"
	SecretKeyAppPassword = "APP_PASSWORD"
	SecretKeyAppDatabase = "APP_DATABASE"
)

// SuperuserPasswordLength is the length of the generated superuser password.
const SuperuserPasswordLength = 32

// HostPlaybook returns the ordered steps that harden a fresh host and set
// up the sudo user's shell.
func HostPlaybook(answers config.Answers, deps Deps) []step.Step {
	fs, runner := deps.FS, deps.Runner
	name, home := answers.Username, answers.HomeDir()
	account := shell.Account{Name: name, Home: home}

	steps := []step.Step{
		system.NewOSReleaseStep(fs),
		ssh.NewAuthorizedKeyStep(fs),
		system.NewHostnameStep(answers.Hostname, runner),
		system.NewHostsStep(answers.Hostname, answers.FQDN(), fs),
		apt.NewUpdateStep(runner),
	}
	for _, pkg := range apt.BasePackages {
		steps = append(steps, apt.NewPackageStep(pkg, runner))
	}
	steps = append(steps,
		user.NewCreateStep(name, runner),
		user.NewSudoersStep(name, fs, runner),
		user.NewAuthorizedKeysStep(name, home, fs, runner),
		ssh.NewHardenStep(name, fs, runner),
	)
	for _, rule := range ufw.DefaultRules {
		steps = append(steps, ufw.NewAllowStep(rule, runner))
	}
	steps = append(steps,
		ufw.NewEnableStep(runner),
		system.NewClockStep(deps.Network),
		shell.NewOhMyZshStep(account, fs, runner),
		shell.NewThemeStep(account, answers.Theme, fs, runner),
		shell.NewBlockStep(account, answers.Aliases, answers.Env, fs, runner),
		shell.NewLoginShellStep(name, runner),
	)
	return steps
}

// ClusterPlaybook returns the ordered steps that bootstrap k3s, the ingress
// and certificate stack, TimescaleDB and the landing site.
func ClusterPlaybook(answers config.Answers, deps Deps) ([]step.Step, error) {
	values := manifests.DefaultValues(answers.Domain, answers.Email)

	render := func(name string) ([]byte, error) {
		data, err := manifests.Render(name, values)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		return data, nil
	}

	ingress := IngressNginxChart
	ingressValues, err := manifests.HelmValues(manifests.IngressNginxValues, values)
	if err != nil {
		return nil, err
	}
	ingress.Values = ingressValues

	certManager := CertManagerChart
	certManagerValues, err := manifests.HelmValues(manifests.CertManagerValues, values)
	if err != nil {
		return nil, err
	}
	certManager.Values = certManagerValues

	issuer, err := render(manifests.ClusterIssuer)
	if err != nil {
		return nil, err
	}
	namespace, err := render(manifests.DatabaseNamespace)
	if err != nil {
		return nil, err
	}
	database, err := render(manifests.TimescaleDB)
	if err != nil {
		return nil, err
	}
	web, err := render(manifests.Web)
	if err != nil {
		return nil, err
	}

	fs, runner, cluster, poller, db := deps.FS, deps.Runner, deps.Cluster, deps.Poller, deps.Database

	return []step.Step{
		system.NewOSReleaseStep(fs),
		system.NewDNSStep(strings.ToLower(answers.Domain), deps.Network),
		k3s.NewInstallStep(answers.K3sVersion, fs, runner),
		k3s.NewWaitKubeconfigStep(fs, poller),
		k3s.NewWaitNodeStep(cluster, poller),
		k3s.NewKubeconfigStep(answers.Username, answers.HomeDir(), fs, runner),
		kubernetes.NewHelmReleaseStep(ingress, deps.Helm),
		kubernetes.NewWaitPodsStep(ingress.Name, ingress.Namespace, IngressNginxSelector, cluster, poller),
		kubernetes.NewHelmReleaseStep(certManager, deps.Helm),
		kubernetes.NewWaitPodsStep(certManager.Name, certManager.Namespace, CertManagerSelector, cluster, poller),
		kubernetes.NewApplyStep(manifests.ClusterIssuer, issuer, cluster),
		kubernetes.NewApplyStep(manifests.DatabaseNamespace, namespace, cluster),
		kubernetes.NewSecretStep(values.DatabaseNamespace, values.DatabaseSecret, databaseSecret(answers, values, deps.Passwords), cluster),
		kubernetes.NewApplyStep(manifests.TimescaleDB, database, cluster),
		kubernetes.NewWaitPodsStep(values.DatabaseName+"-pod", values.DatabaseNamespace, values.DatabaseSelector(), cluster, poller),
		postgres.NewWaitQueryStep(values.DatabaseName, db, poller),
		postgres.NewRoleStep(answers.DBUser, answers.DBPassword, db),
		postgres.NewDatabaseStep(answers.DBName, answers.DBUser, db),
		postgres.NewExtensionStep(answers.DBName, "timescaledb", db),
		kubernetes.NewApplyStep(manifests.Web, web, cluster),
	}, nil
}

func databaseSecret(answers config.Answers, values manifests.Values, passwords PasswordFunc) kubernetes.SecretData {
	return func() (map[string][]byte, error) {
		superuser, err := passwords(SuperuserPasswordLength)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{
			values.PasswordKey:   []byte(superuser),
			SecretKeyAppUser:     []byte(answers.DBUser),
			SecretKeyAppPassword: []byte(answers.DBPassword),
			SecretKeyAppDatabase: []byte(answers.DBName),
		}, nil
	}
}
