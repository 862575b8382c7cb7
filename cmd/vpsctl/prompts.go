package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
	"github.com/felixgeelhaar/vpsctl/internal/validation"
)

// runForm runs a huh form. Tests replace it to accept the pre-filled values.
var runForm = func(ctx context.Context, form *huh.Form) error {
	return form.RunWithContext(ctx)
}

func optional(validate func(string) error) func(string) error {
	return func(s string) error {
		if s == "" {
			return nil
		}
		return validate(s)
	}
}

func usernameInput(answers *config.Answers) *huh.Input {
	return huh.NewInput().
		Title("Sudo Username").
		Description("Login user; root login over SSH is disabled").
		Placeholder("deploy").
		Value(&answers.Username).
		Validate(validation.ValidateUsername)
}

// promptHost asks for the host playbook parameters.
func promptHost(ctx context.Context, answers *config.Answers) error {
	return runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hostname").
				Description("Short hostname, e.g. web1").
				Value(&answers.Hostname).
				Validate(validation.ValidateHostname),
			huh.NewInput().
				Title("Domain (Optional)").
				Description("Appended to the hostname in /etc/hosts").
				Placeholder("example.com").
				Value(&answers.Domain).
				Validate(optional(validation.ValidateDomain)),
		).Title("Host Identity"),
		huh.NewGroup(
			usernameInput(answers),
			huh.NewInput().
				Title("Oh My Zsh Theme").
				Placeholder(config.DefaultTheme).
				Value(&answers.Theme).
				Validate(validation.ValidateTheme),
		).Title("User"),
	))
}

// promptCluster asks for the cluster playbook parameters. An empty
// database password is replaced by a generated one the user can keep.
func promptCluster(ctx context.Context, answers *config.Answers) error {
	if answers.DBPassword == "" {
		password, err := config.GeneratePassword(24)
		if err != nil {
			return fmt.Errorf("generate database password: %w", err)
		}
		answers.DBPassword = password
	}

	return runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Domain").
				Description("Must resolve to this server for TLS certificates to issue").
				Placeholder("example.com").
				Value(&answers.Domain).
				Validate(validation.ValidateDomain),
			huh.NewInput().
				Title("ACME Email").
				Description("Let's Encrypt expiry notices go here").
				Value(&answers.Email).
				Validate(validation.ValidateEmail),
			usernameInput(answers),
		).Title("Cluster"),
		huh.NewGroup(
			huh.NewInput().
				Title("Database Name").
				Value(&answers.DBName).
				Validate(validation.ValidateIdentifier),
			huh.NewInput().
				Title("Database User").
				Value(&answers.DBUser).
				Validate(validation.ValidateIdentifier),
			huh.NewInput().
				Title("Database Password").
				Description("Pre-filled with a generated password").
				EchoMode(huh.EchoModePassword).
				Value(&answers.DBPassword).
				Validate(validation.ValidatePassword),
		).Title("TimescaleDB"),
	))
}

// confirmRun asks before a playbook changes the host.
func confirmRun(ctx context.Context, kind config.RunKind, summary string) (bool, error) {
	if yesFlag {
		return true, nil
	}

	confirmed := false
	err := runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Run the %s playbook?", kind)).
				Description(summary).
				Affirmative("Run").
				Negative("Cancel").
				Value(&confirmed),
		),
	))
	return confirmed, err
}
