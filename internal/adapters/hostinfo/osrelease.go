// Package hostinfo reads facts about the local host.
package hostinfo

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Errors returned when the OS cannot be identified from os-release.
var (
	ErrNoOSRelease      = errors.New("no os-release file found")
	ErrInvalidOSRelease = errors.New("invalid os-release")
)

// Paths searched for os-release, in order.
var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// ParseOSRelease parses the KEY="value" format of os-release(5).
func ParseOSRelease(data []byte) (ports.OSRelease, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return ports.OSRelease{}, fmt.Errorf("%w: %w", ErrInvalidOSRelease, err)
	}

	section := cfg.Section(ini.DefaultSection)
	release := ports.OSRelease{
		ID:        strings.ToLower(section.Key("ID").String()),
		VersionID: section.Key("VERSION_ID").String(),
		Pretty:    section.Key("PRETTY_NAME").String(),
	}
	if like := section.Key("ID_LIKE").String(); like != "" {
		release.IDLike = strings.Fields(strings.ToLower(like))
	}
	if release.ID == "" {
		return ports.OSRelease{}, fmt.Errorf("%w: no ID", ErrInvalidOSRelease)
	}
	return release, nil
}

// ReadOSRelease reads and parses the first os-release file found.
func ReadOSRelease(fs ports.FileSystem) (ports.OSRelease, error) {
	for _, path := range osReleasePaths {
		if !fs.Exists(path) {
			continue
		}
		data, err := fs.ReadFile(path)
		if err != nil {
			return ports.OSRelease{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return ParseOSRelease(data)
	}
	return ports.OSRelease{}, fmt.Errorf("%w in %s", ErrNoOSRelease, strings.Join(osReleasePaths, ", "))
}

// DebianFamily reports whether the release is Debian, Ubuntu, or derived
// from either. Minimal images often ship without ID_LIKE.
func DebianFamily(release ports.OSRelease) bool {
	switch release.ID {
	case "debian", "ubuntu":
		return true
	}
	return slices.Contains(release.IDLike, "debian") || slices.Contains(release.IDLike, "ubuntu")
}

// Describe returns the pretty name, falling back to ID and version.
func Describe(release ports.OSRelease) string {
	if release.Pretty != "" {
		return release.Pretty
	}
	return strings.TrimSpace(release.ID + " " + release.VersionID)
}
