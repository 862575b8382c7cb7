package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/logging"
	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

var (
	// Global flags
	verbose     bool
	logFormat   string
	answersFile string
	metricsFile string
	yesFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "vpsctl",
	Short: "Provision a fresh VPS into a hardened single-node k3s host",
	Long: `vpsctl turns a fresh Debian or Ubuntu server into a hardened host
running k3s, ingress-nginx, cert-manager and TimescaleDB.

Every step checks its precondition first, so running a playbook again
only changes what drifted:
  vpsctl host      harden SSH, create the sudo user, firewall, shell
  vpsctl cluster   install k3s and the platform services`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !logging.ValidFormat(logFormat) {
			return fmt.Errorf("unknown --log-format %q (want tint, text or json)", logFormat)
		}
		return loadDotEnv(".env")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatTint, "log format (tint, text, json)")
	rootCmd.PersistentFlags().StringVar(&answersFile, "answers", "", "YAML or TOML file pre-filling the prompts")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip the final confirmation prompt")

	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// Exit codes.
const (
	exitFailure             = 1
	exitMissingPrecondition = 2
	exitReadinessTimeout    = 3
)

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch step.Classify(err) {
	case step.ErrCodeMissingPrecondition:
		return exitMissingPrecondition
	case step.ErrCodeReadinessTimeout:
		return exitReadinessTimeout
	default:
		return exitFailure
	}
}

// formatError returns a user-friendly error message.
// With verbose=false: shows the message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var stepErr *step.StepError
	if !errors.As(err, &stepErr) {
		return err.Error()
	}

	// The sequencer wraps step errors in CHECK_FAILED or APPLY_FAILED;
	// report the innermost one under the outer step ID.
	stepID := stepErr.StepID
	for {
		var inner *step.StepError
		if stepErr.Underlying == nil || !errors.As(stepErr.Underlying, &inner) {
			break
		}
		if inner.StepID != "" {
			stepID = inner.StepID
		}
		stepErr = inner
	}

	msg := stepErr.Message
	if stepID != "" {
		msg += fmt.Sprintf(" (at %s)", stepID)
	}
	if stepErr.Suggestion != "" {
		msg += fmt.Sprintf("\n\nSuggestion: %s", stepErr.Suggestion)
	}
	if verbose && stepErr.Underlying != nil {
		msg += fmt.Sprintf("\n\nTechnical details: %v", stepErr.Underlying)
	}
	return msg
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// newLogger builds the console logger selected by the global flags.
// --verbose wins over VPSCTL_LOG_LEVEL.
func newLogger(w *os.File) ports.Logger {
	level := ports.ParseLevel(os.Getenv(config.EnvLogLevel))
	if verbose {
		level = ports.LevelDebug
	}
	return logging.NewConsoleLogger(
		logging.WithOutput(w),
		logging.WithLevel(level),
		logging.WithFormat(logFormat),
		logging.WithColor(isatty.IsTerminal(w.Fd())),
	)
}

// loadDotEnv exports variables from path without overriding the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadAnswers merges defaults, the answers file and VPSCTL_* variables,
// later sources winning. The result pre-fills the prompts.
func loadAnswers(path string, lookup func(string) (string, bool)) (config.Answers, error) {
	answers := config.Defaults()
	if path != "" {
		fromFile, err := config.Load(path)
		if err != nil {
			return config.Answers{}, err
		}
		answers = config.Merge(answers, fromFile)
	}
	return config.Merge(answers, config.FromEnv(lookup)), nil
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("answers", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"tint\tColored human-readable logs",
			"text\tlogfmt-style key=value logs",
			"json\tOne JSON object per line",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}
