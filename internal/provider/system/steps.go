// Package system provides host identity and environment steps: OS gate,
// hostname, /etc/hosts, clock skew and DNS checks.
package system

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/adapters/hostinfo"
	"github.com/felixgeelhaar/vpsctl/internal/domain/step"
	"github.com/felixgeelhaar/vpsctl/internal/ports"
	"github.com/felixgeelhaar/vpsctl/internal/provider/commandutil"
)

// HostsPath is the static host table.
const HostsPath = "/etc/hosts"

// MaxClockOffset is the largest clock offset that does not warn.
const MaxClockOffset = 500 * time.Millisecond

// OSReleaseStep requires a Debian-family OS. It never changes anything:
// Apply only reports the missing precondition.
type OSReleaseStep struct {
	id step.StepID
	fs ports.FileSystem
}

// NewOSReleaseStep creates a new OSReleaseStep.
func NewOSReleaseStep(fs ports.FileSystem) *OSReleaseStep {
	return &OSReleaseStep{id: step.MustNewStepID("system:os-release"), fs: fs}
}

// ID returns the step identifier.
func (s *OSReleaseStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *OSReleaseStep) Idempotent() bool {
	return true
}

// Check is satisfied on Debian and its derivatives. A missing or malformed
// os-release needs apply; an unreadable one is a probe error.
func (s *OSReleaseStep) Check(_ step.RunContext) (step.Status, error) {
	release, err := hostinfo.ReadOSRelease(s.fs)
	if err != nil {
		if errors.Is(err, hostinfo.ErrNoOSRelease) || errors.Is(err, hostinfo.ErrInvalidOSRelease) {
			return step.StatusNeedsApply, nil
		}
		return step.StatusUnknown, err
	}
	if !hostinfo.DebianFamily(release) {
		return step.StatusNeedsApply, nil
	}
	return step.StatusSatisfied, nil
}

// Apply reports why the host is unsupported.
func (s *OSReleaseStep) Apply(_ step.RunContext) error {
	release, err := hostinfo.ReadOSRelease(s.fs)
	if err != nil {
		return step.MissingPrecondition("cannot identify the operating system",
			"vpsctl supports Debian and Ubuntu hosts.").WithUnderlying(err)
	}
	if !hostinfo.DebianFamily(release) {
		return step.MissingPrecondition(
			fmt.Sprintf("unsupported operating system %s", hostinfo.Describe(release)),
			"vpsctl supports Debian and Ubuntu hosts.")
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *OSReleaseStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Require Debian-family OS",
		"Reads /etc/os-release and stops the run unless the host is Debian or derived from it.",
		nil,
	)
}

// HostnameStep sets the static hostname.
type HostnameStep struct {
	id       step.StepID
	hostname string
	runner   ports.CommandRunner
}

// NewHostnameStep creates a new HostnameStep.
func NewHostnameStep(hostname string, runner ports.CommandRunner) *HostnameStep {
	return &HostnameStep{
		id:       step.MustNewStepID("system:hostname"),
		hostname: hostname,
		runner:   runner,
	}
}

// ID returns the step identifier.
func (s *HostnameStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *HostnameStep) Idempotent() bool {
	return true
}

// Check compares the running hostname.
func (s *HostnameStep) Check(ctx step.RunContext) (step.Status, error) {
	result, err := s.runner.Run(ctx.Context(), "hostname")
	if err != nil {
		return step.StatusUnknown, fmt.Errorf("probe hostname: %w", err)
	}
	if result.Success() && strings.TrimSpace(result.Stdout) == s.hostname {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply runs hostnamectl.
func (s *HostnameStep) Apply(ctx step.RunContext) error {
	_, err := commandutil.Run(ctx.Context(), s.runner, "hostnamectl", "set-hostname", s.hostname)
	return err
}

// Explain provides a human-readable explanation.
func (s *HostnameStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Set hostname",
		fmt.Sprintf("Sets the static hostname to %s with hostnamectl.", s.hostname),
		nil,
	)
}

// HostsStep maps the hostname to 127.0.1.1, the Debian convention for
// hosts without a permanent address in /etc/hosts.
type HostsStep struct {
	id   step.StepID
	line string
	fs   ports.FileSystem
}

// NewHostsStep creates a new HostsStep. fqdn may equal hostname.
func NewHostsStep(hostname, fqdn string, fs ports.FileSystem) *HostsStep {
	names := fqdn
	if fqdn != hostname {
		names = fqdn + " " + hostname
	}
	return &HostsStep{
		id:   step.MustNewStepID("system:hosts"),
		line: "127.0.1.1 " + names,
		fs:   fs,
	}
}

// ID returns the step identifier.
func (s *HostsStep) ID() step.StepID {
	return s.id
}

// Idempotent returns true.
func (s *HostsStep) Idempotent() bool {
	return true
}

// Check looks for the exact line.
func (s *HostsStep) Check(_ step.RunContext) (step.Status, error) {
	data, err := s.fs.ReadFile(HostsPath)
	if err != nil {
		return step.StatusUnknown, fmt.Errorf("read %s: %w", HostsPath, err)
	}
	if slices.Contains(strings.Split(string(data), "\n"), s.line) {
		return step.StatusSatisfied, nil
	}
	return step.StatusNeedsApply, nil
}

// Apply replaces any 127.0.1.1 entry with the managed line.
func (s *HostsStep) Apply(_ step.RunContext) error {
	data, err := s.fs.ReadFile(HostsPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", HostsPath, err)
	}
	if err := s.fs.WriteFile(HostsPath, []byte(replaceLoopbackEntry(string(data), s.line)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", HostsPath, err)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *HostsStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Map hostname in /etc/hosts",
		fmt.Sprintf("Ensures %q is the 127.0.1.1 entry of /etc/hosts.", s.line),
		nil,
	)
}

func replaceLoopbackEntry(content, line string) string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	out := make([]string, 0, len(lines)+1)
	inserted := false
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) > 0 && fields[0] == "127.0.1.1" {
			if !inserted {
				out = append(out, line)
				inserted = true
			}
			continue
		}
		out = append(out, l)
	}
	if !inserted {
		out = insertAfterLocalhost(out, line)
	}
	return strings.Join(out, "\n") + "\n"
}

func insertAfterLocalhost(lines []string, line string) []string {
	for i, l := range lines {
		fields := strings.Fields(l)
		if len(fields) > 0 && fields[0] == "127.0.0.1" {
			return slices.Insert(lines, i+1, line)
		}
	}
	return append(lines, line)
}

// ClockStep warns when the clock drifts from NTP. ACME and TLS fail in
// confusing ways on a skewed clock.
type ClockStep struct {
	id      step.StepID
	network ports.Network
}

// NewClockStep creates a new ClockStep.
func NewClockStep(network ports.Network) *ClockStep {
	return &ClockStep{id: step.MustNewStepID("system:clock"), network: network}
}

// ID returns the step identifier.
func (s *ClockStep) ID() step.StepID {
	return s.id
}

// Idempotent returns false; the offset is measured on every run.
func (s *ClockStep) Idempotent() bool {
	return false
}

// Check always needs a measurement.
func (s *ClockStep) Check(_ step.RunContext) (step.Status, error) {
	return step.StatusNeedsApply, nil
}

// Apply measures the offset. Every problem is a soft warning.
func (s *ClockStep) Apply(ctx step.RunContext) error {
	offset, err := s.network.ClockOffset(ctx.Context())
	if err != nil {
		return step.Warn(fmt.Errorf("cannot measure clock offset: %w", err))
	}
	if offset.Abs() > MaxClockOffset {
		return step.Warnf("clock is off by %s; enable time sync with timedatectl set-ntp true", offset.Round(time.Millisecond))
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ClockStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Check clock offset",
		fmt.Sprintf("Queries an NTP pool and warns if the local clock is off by more than %s.", MaxClockOffset),
		nil,
	)
}

// DNSStep checks that the domain resolves to this host. A mismatch is a
// warning: certificates will fail to issue until DNS catches up, but the
// rest of the cluster can be provisioned.
type DNSStep struct {
	id      step.StepID
	domain  string
	network ports.Network
}

// NewDNSStep creates a new DNSStep.
func NewDNSStep(domain string, network ports.Network) *DNSStep {
	return &DNSStep{id: step.MustNewStepID("dns:resolve"), domain: domain, network: network}
}

// ID returns the step identifier.
func (s *DNSStep) ID() step.StepID {
	return s.id
}

// Idempotent returns false; DNS is re-checked on every run.
func (s *DNSStep) Idempotent() bool {
	return false
}

// Check always needs a lookup.
func (s *DNSStep) Check(_ step.RunContext) (step.Status, error) {
	return step.StatusNeedsApply, nil
}

// Apply compares the A records with the egress address.
func (s *DNSStep) Apply(ctx step.RunContext) error {
	external, err := s.network.ExternalIPv4(ctx.Context())
	if err != nil {
		return step.Warn(fmt.Errorf("cannot determine external IPv4: %w", err))
	}

	ips, err := s.network.LookupIPv4(ctx.Context(), s.domain)
	if err != nil {
		return step.Warn(fmt.Errorf("%s does not resolve: %w", s.domain, err))
	}
	if !slices.Contains(ips, external) {
		return step.Warnf("%s resolves to %s, not to this host (%s); TLS certificates will not issue until the A record is fixed",
			s.domain, strings.Join(ips, ", "), external)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *DNSStep) Explain(_ step.ExplainContext) step.Explanation {
	return step.NewExplanation(
		"Check DNS",
		fmt.Sprintf("Warns unless an A record of %s points at this host's external IPv4 address.", s.domain),
		nil,
	)
}

var (
	_ step.Step = (*OSReleaseStep)(nil)
	_ step.Step = (*HostnameStep)(nil)
	_ step.Step = (*HostsStep)(nil)
	_ step.Step = (*ClockStep)(nil)
	_ step.Step = (*DNSStep)(nil)
)
