package ports

import (
	"context"
	"time"
)

// Network answers questions about how the host is seen from outside.
type Network interface {
	// LookupIPv4 resolves the A records of a host name.
	LookupIPv4(ctx context.Context, host string) ([]string, error)

	// ExternalIPv4 returns the address the host egresses from.
	ExternalIPv4(ctx context.Context) (string, error)

	// ClockOffset returns the local clock offset against an NTP pool.
	ClockOffset(ctx context.Context) (time.Duration, error)
}

// OSRelease holds the identifying fields of /etc/os-release.
type OSRelease struct {
	ID        string
	IDLike    []string
	VersionID string
	Pretty    string
}
