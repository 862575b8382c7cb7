// Package validation provides input validation utilities to prevent security vulnerabilities
// such as command injection, config-line injection, and malformed identifiers reaching
// shell commands, SQL statements, or system files.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Common validation errors.
var (
	ErrEmptyInput         = errors.New("input cannot be empty")
	ErrInvalidPackageName = errors.New("invalid package name")
	ErrCommandInjection   = errors.New("potential command injection detected")
	ErrInvalidHostname    = errors.New("invalid hostname")
	ErrInvalidDomain      = errors.New("invalid domain name")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidTheme       = errors.New("invalid shell theme")
	ErrInvalidVersion     = errors.New("invalid version")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// MinPasswordLength is the shortest accepted database password.
const MinPasswordLength = 12

// Compiled regex patterns for validation (compiled once for performance).
var (
	// packageNameRegex matches valid package names: alphanumeric, hyphens, underscores, dots, plus
	// Examples: "git", "ca-certificates", "g++"
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// labelRegex matches a single RFC 1123 DNS label.
	labelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	// usernameRegex matches portable POSIX account names as accepted by useradd.
	// Examples: "deploy", "app_admin", "ci-runner"
	usernameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// identifierRegex matches unquoted PostgreSQL identifiers.
	// Examples: "app", "app_db", "metrics2"
	identifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

	// themeRegex matches oh-my-zsh theme names.
	// Examples: "robbyrussell", "agnoster", "powerlevel10k/powerlevel10k"
	themeRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._-]*)?$`)

	// configSafeRegex matches values without control characters
	configSafeRegex = regexp.MustCompile(`^[^\x00-\x1f\x7f]*$`)

	// shellMetaChars contains shell metacharacters that could enable injection
	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}

	// reservedUsernames cannot be used for the provisioned sudo account.
	reservedUsernames = map[string]bool{
		"root": true, "daemon": true, "bin": true, "sys": true, "sync": true,
		"nobody": true, "sshd": true, "www-data": true, "postgres": true,
	}
)

// ValidatePackageName validates an apt package name.
// Returns an error if the name is empty or contains invalid characters.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 256 {
		return fmt.Errorf("%w: name too long (max 256 characters)", ErrInvalidPackageName)
	}

	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPackageName, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateHostname validates a short host name (a single DNS label).
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return ErrEmptyInput
	}

	if containsShellMeta(hostname) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, hostname)
	}

	if !labelRegex.MatchString(hostname) {
		return fmt.Errorf("%w: %q must be a single label of letters, digits and hyphens", ErrInvalidHostname, hostname)
	}

	return nil
}

// ValidateDomain validates a fully qualified domain name with at least two labels.
func ValidateDomain(domain string) error {
	if domain == "" {
		return ErrEmptyInput
	}

	domain = strings.TrimSuffix(domain, ".")
	if len(domain) > 253 {
		return fmt.Errorf("%w: domain too long", ErrInvalidDomain)
	}

	if containsShellMeta(domain) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, domain)
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("%w: %q needs at least two labels", ErrInvalidDomain, domain)
	}
	for _, label := range labels {
		if !labelRegex.MatchString(label) {
			return fmt.Errorf("%w: %q has an invalid label %q", ErrInvalidDomain, domain, label)
		}
	}

	return nil
}

// ValidateEmail validates a bare email address as used for ACME registration.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyInput
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	at := strings.LastIndex(email, "@")
	if err := ValidateDomain(email[at+1:]); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEmail, email, err)
	}

	return nil
}

// ValidateUsername validates a local account name for the sudo user.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a lowercase letter or underscore and contain only [a-z0-9_-]", ErrInvalidUsername, name)
	}

	if reservedUsernames[name] {
		return fmt.Errorf("%w: %q is a reserved system account", ErrInvalidUsername, name)
	}

	return nil
}

// ValidateIdentifier validates a PostgreSQL role or database name.
func ValidateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must match [a-z_][a-z0-9_]*", ErrInvalidIdentifier, name)
	}

	if strings.HasPrefix(name, "pg_") {
		return fmt.Errorf("%w: %q uses the reserved pg_ prefix", ErrInvalidIdentifier, name)
	}

	return nil
}

// ValidateTheme validates an oh-my-zsh theme name.
func ValidateTheme(theme string) error {
	if theme == "" {
		return ErrEmptyInput
	}

	if len(theme) > 128 {
		return fmt.Errorf("%w: theme name too long", ErrInvalidTheme)
	}

	if containsShellMeta(theme) || strings.ContainsAny(theme, `"'`) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, theme)
	}

	if !themeRegex.MatchString(theme) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidTheme, theme)
	}

	return nil
}

// ValidateK3sVersion validates a pinned k3s release such as "v1.31.4+k3s1".
func ValidateK3sVersion(version string) error {
	if version == "" {
		return ErrEmptyInput
	}

	if !semver.IsValid(version) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrInvalidVersion, version)
	}

	if semver.Prerelease(version) != "" {
		return fmt.Errorf("%w: %q is a pre-release", ErrInvalidVersion, version)
	}

	if !strings.Contains(semver.Build(version), "k3s") {
		return fmt.Errorf("%w: %q lacks the +k3sN build suffix", ErrInvalidVersion, version)
	}

	return nil
}

// ValidatePassword checks a database password for length and for
// characters that would break config files or SQL literals.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrEmptyInput
	}

	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, MinPasswordLength)
	}

	if !configSafeRegex.MatchString(password) {
		return fmt.Errorf("%w: contains control characters", ErrWeakPassword)
	}

	return nil
}



// containsShellMeta checks if a string contains shell metacharacters.
func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

