// Package netprobe implements ports.Network with DNS lookups, an HTTP
// echo service for the egress address and an NTP query for clock skew.
package netprobe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/ntp"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

const (
	defaultIPEchoURL = "https://api.ipify.org"
	defaultNTPPool   = "pool.ntp.org"
	defaultTimeout   = 5 * time.Second
)

// Prober implements ports.Network.
type Prober struct {
	resolver *net.Resolver
	client   *http.Client
	echoURL  string
	ntpPool  string
	query    func(host string, opt ntp.QueryOptions) (*ntp.Response, error)
}

// Ensure Prober implements ports.Network.
var _ ports.Network = (*Prober)(nil)

// Option configures a Prober.
type Option func(*Prober)

// WithEchoURL sets the service that echoes the caller's IPv4 address.
func WithEchoURL(url string) Option {
	return func(p *Prober) { p.echoURL = url }
}

// WithNTPPool sets the NTP server queried for the clock offset.
func WithNTPPool(host string) Option {
	return func(p *Prober) { p.ntpPool = host }
}

// WithResolver sets the DNS resolver.
func WithResolver(r *net.Resolver) Option {
	return func(p *Prober) { p.resolver = r }
}

// WithHTTPClient sets the HTTP client used for the echo service.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// New creates a Prober with public defaults.
func New(opts ...Option) *Prober {
	p := &Prober{
		resolver: net.DefaultResolver,
		client:   &http.Client{Timeout: defaultTimeout},
		echoURL:  defaultIPEchoURL,
		ntpPool:  defaultNTPPool,
		query:    ntp.QueryWithOptions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LookupIPv4 resolves the A records of host.
func (p *Prober) LookupIPv4(ctx context.Context, host string) ([]string, error) {
	addrs, err := p.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	ips := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.String())
	}
	return ips, nil
}

// ExternalIPv4 asks the echo service which address this host egresses from.
func (p *Prober) ExternalIPv4(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.echoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", p.echoURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", p.echoURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	ip := net.ParseIP(strings.TrimSpace(string(body)))
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("%s returned %q, not an IPv4 address", p.echoURL, strings.TrimSpace(string(body)))
	}
	return ip.String(), nil
}

// ClockOffset returns the local clock offset against the NTP pool.
func (p *Prober) ClockOffset(ctx context.Context) (time.Duration, error) {
	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	resp, err := p.query(p.ntpPool, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", p.ntpPool, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid response from %s: %w", p.ntpPool, err)
	}
	return resp.ClockOffset, nil
}
