// Package config holds the run parameters ("answers") gathered from
// prompts, answers files and VPSCTL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/validation"
)

// Defaults for optional answers.
const (
	DefaultTheme      = "robbyrussell"
	DefaultK3sVersion = "v1.31.4+k3s1"
	DefaultDBName     = "app"
	DefaultDBUser     = "app"
)

// RunKind selects which playbook the answers are for.
type RunKind string

// Run kinds.
const (
	RunHost    RunKind = "host"
	RunCluster RunKind = "cluster"
)

// Answers are the parameters of one provisioning run.
type Answers struct {
	Hostname   string            `yaml:"hostname,omitempty" toml:"hostname,omitempty"`
	Domain     string            `yaml:"domain,omitempty" toml:"domain,omitempty"`
	Email      string            `yaml:"email,omitempty" toml:"email,omitempty"`
	Username   string            `yaml:"username,omitempty" toml:"username,omitempty"`
	Theme      string            `yaml:"theme,omitempty" toml:"theme,omitempty"`
	DBName     string            `yaml:"db_name,omitempty" toml:"db_name,omitempty"`
	DBUser     string            `yaml:"db_user,omitempty" toml:"db_user,omitempty"`
	DBPassword string            `yaml:"db_password,omitempty" toml:"db_password,omitempty"`
	K3sVersion string            `yaml:"k3s_version,omitempty" toml:"k3s_version,omitempty"`
	Aliases    map[string]string `yaml:"aliases,omitempty" toml:"aliases,omitempty"`
	Env        map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
}

// Defaults returns the answers used when nothing else is provided.
func Defaults() Answers {
	return Answers{
		Theme:      DefaultTheme,
		K3sVersion: DefaultK3sVersion,
		DBName:     DefaultDBName,
		DBUser:     DefaultDBUser,
		Aliases: map[string]string{
			"k":  "kubectl",
			"ll": "ls -alF",
		},
	}
}

// FQDN returns hostname.domain, or the bare hostname without a domain.
func (a Answers) FQDN() string {
	if a.Domain == "" {
		return a.Hostname
	}
	return a.Hostname + "." + a.Domain
}

// HomeDir returns the sudo user's home directory.
func (a Answers) HomeDir() string {
	return "/home/" + a.Username
}

// Merge overlays the non-empty fields of override onto base.
// Map entries are merged key by key.
func Merge(base, override Answers) Answers {
	out := base
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&out.Hostname, override.Hostname)
	set(&out.Domain, override.Domain)
	set(&out.Email, override.Email)
	set(&out.Username, override.Username)
	set(&out.Theme, override.Theme)
	set(&out.DBName, override.DBName)
	set(&out.DBUser, override.DBUser)
	set(&out.DBPassword, override.DBPassword)
	set(&out.K3sVersion, override.K3sVersion)
	out.Aliases = mergeMap(base.Aliases, override.Aliases)
	out.Env = mergeMap(base.Env, override.Env)
	return out
}

func mergeMap(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// FieldError reports an invalid answer.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Validate checks the answers a run kind needs. All problems are
// reported together.
func (a Answers) Validate(kind RunKind) error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, &FieldError{Field: field, Err: err})
		}
	}

	check("username", validation.ValidateUsername(a.Username))

	switch kind {
	case RunHost:
		check("hostname", validation.ValidateHostname(a.Hostname))
		if a.Domain != "" {
			check("domain", validation.ValidateDomain(a.Domain))
		}
		check("theme", validation.ValidateTheme(a.Theme))
		for name, value := range a.Aliases {
			check("aliases."+name, validateShellWord(name, value))
		}
		for name, value := range a.Env {
			check("env."+name, validateShellWord(name, value))
		}
	case RunCluster:
		check("domain", validation.ValidateDomain(a.Domain))
		check("email", validation.ValidateEmail(a.Email))
		check("db_name", validation.ValidateIdentifier(a.DBName))
		check("db_user", validation.ValidateIdentifier(a.DBUser))
		check("db_password", validation.ValidatePassword(a.DBPassword))
		check("k3s_version", validation.ValidateK3sVersion(a.K3sVersion))
	default:
		errs = append(errs, fmt.Errorf("unknown run kind %q", kind))
	}

	return errors.Join(errs...)
}

// validateShellWord keeps alias/env entries on one line and their names
// usable as shell identifiers.
func validateShellWord(name, value string) error {
	if name == "" || strings.ContainsAny(name, " =\t\n'\"$`;") {
		return fmt.Errorf("invalid name %q", name)
	}
	if strings.ContainsAny(value, "\n\r'") {
		return fmt.Errorf("value for %q must be a single line without single quotes", name)
	}
	return nil
}
