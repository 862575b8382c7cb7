// Package ssh provides the SSH steps: the root key gate, per-user
// authorized keys and sshd hardening.
package ssh

import (
	"bytes"
	"fmt"
	"strings"

	gossh "golang.org/x/crypto/ssh"
)

// Paths of the files this package reads and writes.
const (
	SSHDConfigPath     = "/etc/ssh/sshd_config"
	RootAuthorizedKeys = "/root/.ssh/authorized_keys"
)

const (
	blockStart = "# >>> vpsctl hardening >>>"
	blockEnd   = "# <<< vpsctl hardening <<<"
)

// Directive is one sshd_config keyword and its value.
type Directive struct {
	Keyword string
	Value   string
}

// HardeningDirectives returns the directives enforced for a sudo user.
func HardeningDirectives(user string) []Directive {
	return []Directive{
		{Keyword: "PermitRootLogin", Value: "no"},
		{Keyword: "PasswordAuthentication", Value: "no"},
		{Keyword: "KbdInteractiveAuthentication", Value: "no"},
		{Keyword: "PubkeyAuthentication", Value: "yes"},
		{Keyword: "AllowUsers", Value: user},
	}
}

// EffectiveValues returns the first value of every keyword in the global
// section of an sshd_config. sshd uses the first value it reads, and
// everything after a Match line is conditional.
func EffectiveValues(content []byte) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(string(content), "\n") {
		keyword, value, ok := splitDirective(line)
		if !ok {
			continue
		}
		lower := strings.ToLower(keyword)
		if lower == "match" {
			break
		}
		if _, seen := values[lower]; !seen {
			values[lower] = value
		}
	}
	return values
}

// Satisfied reports whether every directive is in effect.
func Satisfied(content []byte, directives []Directive) bool {
	values := EffectiveValues(content)
	for _, d := range directives {
		if values[strings.ToLower(d.Keyword)] != d.Value {
			return false
		}
	}
	return true
}

// Harden returns content with the managed block at the top of the file,
// ahead of any Include, so its values win. Global occurrences of the same
// keywords elsewhere are commented out.
func Harden(content []byte, directives []Directive) []byte {
	managed := make(map[string]bool, len(directives))
	for _, d := range directives {
		managed[strings.ToLower(d.Keyword)] = true
	}

	var buf bytes.Buffer
	buf.WriteString(blockStart + "\n")
	for _, d := range directives {
		fmt.Fprintf(&buf, "%s %s\n", d.Keyword, d.Value)
	}
	buf.WriteString(blockEnd + "\n")

	inBlock := false
	inMatch := false
	rest := strings.TrimRight(string(content), "\n")
	for _, line := range strings.Split(rest, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == blockStart:
			inBlock = true
			continue
		case trimmed == blockEnd:
			inBlock = false
			continue
		case inBlock:
			continue
		}

		keyword, _, ok := splitDirective(line)
		if ok && strings.EqualFold(keyword, "match") {
			inMatch = true
		}
		if ok && !inMatch && managed[strings.ToLower(keyword)] {
			line = "# " + line + " # disabled by vpsctl"
		}
		buf.WriteString(line + "\n")
	}
	return buf.Bytes()
}

func splitDirective(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	fields := strings.Fields(trimmed)
	keyword := fields[0]
	value := strings.TrimSpace(strings.TrimPrefix(trimmed, keyword))
	if k, v, found := strings.Cut(keyword, "="); found {
		keyword, value = k, strings.TrimSpace(v+" "+value)
	}
	value = strings.TrimSpace(strings.TrimPrefix(value, "="))
	return keyword, value, true
}

// ParseAuthorizedKeys parses every key in an authorized_keys file.
// Comments and blank lines are skipped; a malformed line is an error.
func ParseAuthorizedKeys(data []byte) ([]gossh.PublicKey, error) {
	var keys []gossh.PublicKey
	for i, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		key, _, _, _, err := gossh.ParseAuthorizedKey(trimmed)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid authorized key: %w", i+1, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Fingerprints returns the SHA256 fingerprints of keys.
func Fingerprints(keys []gossh.PublicKey) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = gossh.FingerprintSHA256(key)
	}
	return out
}
