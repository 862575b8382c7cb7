package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/metrics"
	"github.com/felixgeelhaar/vpsctl/internal/app"
	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/execution"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Harden the host and set up the sudo user",
	Long: `Host runs the host playbook:
  - require a Debian-family OS and a root SSH key
  - set the hostname and /etc/hosts entry
  - install base packages
  - create the sudo user and copy root's authorized keys
  - disable root and password SSH logins
  - enable ufw for SSH, HTTP, HTTPS and the Kubernetes API
  - install Oh My Zsh for the sudo user`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPlaybook(cmd, config.RunHost)
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Install k3s, ingress, certificates and TimescaleDB",
	Long: `Cluster runs the cluster playbook:
  - check that the domain resolves to this host
  - install k3s and copy the kubeconfig to the sudo user
  - install ingress-nginx and cert-manager with Helm
  - create the Let's Encrypt ClusterIssuer
  - deploy TimescaleDB and create the application role and database
  - publish a landing page on the domain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPlaybook(cmd, config.RunCluster)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd, clusterCmd)
}

type playbookRunner interface {
	Run(ctx context.Context, kind config.RunKind, answers config.Answers) (*execution.Report, error)
	Plan(ctx context.Context, kind config.RunKind, answers config.Answers) (*execution.Plan, error)
}

// Replaced in tests.
var (
	newRunner = func(logger ports.Logger, opts ...app.Option) playbookRunner {
		return app.New(app.NewDeps(logger), logger, opts...)
	}
	effectiveUID  = os.Geteuid
	isInteractive = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

// errAborted is returned when the user declines the confirmation.
var errAborted = errors.New("aborted by user")

func requireRoot() error {
	if effectiveUID() != 0 {
		return step.MissingPrecondition("vpsctl must run as root",
			"Re-run with sudo, or log in as root on the fresh server.")
	}
	return nil
}

func requireTerminal() error {
	if !isInteractive() {
		return step.MissingPrecondition("no interactive terminal on stdin",
			"Run vpsctl from an SSH session with a TTY (ssh -t).")
	}
	return nil
}

// gatherAnswers loads defaults from the answers file and environment and
// lets the user confirm or change them.
func gatherAnswers(ctx context.Context, kind config.RunKind) (config.Answers, error) {
	answers, err := loadAnswers(answersFile, os.LookupEnv)
	if err != nil {
		return config.Answers{}, err
	}

	switch kind {
	case config.RunHost:
		err = promptHost(ctx, &answers)
	case config.RunCluster:
		err = promptCluster(ctx, &answers)
	default:
		err = fmt.Errorf("unknown playbook %q", kind)
	}
	if err != nil {
		return config.Answers{}, err
	}

	if err := answers.Validate(kind); err != nil {
		return config.Answers{}, fmt.Errorf("invalid answers: %w", err)
	}
	return answers, nil
}

func describe(kind config.RunKind, answers config.Answers) string {
	if kind == config.RunCluster {
		return fmt.Sprintf("Installs k3s %s and serves https://%s; kubeconfig goes to %s.",
			answers.K3sVersion, answers.Domain, answers.Username)
	}
	return fmt.Sprintf("Hardens SSH on %s, creates %s and enables the firewall. Root login is disabled afterwards.",
		answers.FQDN(), answers.Username)
}

func runPlaybook(cmd *cobra.Command, kind config.RunKind) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := requireRoot(); err != nil {
		return err
	}
	if err := requireTerminal(); err != nil {
		return err
	}

	answers, err := gatherAnswers(ctx, kind)
	if err != nil {
		return err
	}

	confirmed, err := confirmRun(ctx, kind, describe(kind, answers))
	if err != nil {
		return err
	}
	if !confirmed {
		return errAborted
	}

	logger := newLogger(os.Stderr)
	var opts []app.Option
	if metricsFile != "" {
		opts = append(opts, app.WithObserver(metrics.NewObserver(string(kind), metricsFile, logger)))
	}

	report, err := newRunner(logger, opts...).Run(ctx, kind, answers)
	if report != nil {
		printReport(cmd.OutOrStdout(), kind, report)
	}
	return err
}
