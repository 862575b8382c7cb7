package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for answers files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported answers file format")

// Load reads an answers file. The format is chosen by extension:
// .yaml/.yml or .toml. Unknown keys are rejected.
func Load(path string) (Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Answers{}, fmt.Errorf("read answers file: %w", err)
	}
	return Parse(filepath.Ext(path), data)
}

// Parse decodes answers in the format named by ext (".yaml", ".yml", ".toml").
func Parse(ext string, data []byte) (Answers, error) {
	var a Answers

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&a); err != nil && !errors.Is(err, io.EOF) {
			return Answers{}, fmt.Errorf("parse YAML answers: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&a); err != nil {
			return Answers{}, fmt.Errorf("parse TOML answers: %w", err)
		}
	default:
		return Answers{}, fmt.Errorf("%w: %q (use .yaml, .yml or .toml)", ErrUnsupportedFormat, ext)
	}

	return a, nil
}

// Environment variable names read by FromEnv.
const (
	EnvHostname   = "VPSCTL_HOSTNAME"
	EnvDomain     = "VPSCTL_DOMAIN"
	EnvEmail      = "VPSCTL_EMAIL"
	EnvUsername   = "VPSCTL_USERNAME"
	EnvTheme      = "VPSCTL_THEME"
	EnvDBName     = "VPSCTL_DB_NAME"
	EnvDBUser     = "VPSCTL_DB_USER"
	EnvDBPassword = "VPSCTL_DB_PASSWORD"
	EnvK3sVersion = "VPSCTL_K3S_VERSION"
)

// EnvLogLevel selects the console log level (debug, info, warn, error).
const EnvLogLevel = "VPSCTL_LOG_LEVEL"

// FromEnv reads VPSCTL_* variables through lookup (usually os.LookupEnv).
func FromEnv(lookup func(string) (string, bool)) Answers {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	return Answers{
		Hostname:   get(EnvHostname),
		Domain:     get(EnvDomain),
		Email:      get(EnvEmail),
		Username:   get(EnvUsername),
		Theme:      get(EnvTheme),
		DBName:     get(EnvDBName),
		DBUser:     get(EnvDBUser),
		DBPassword: get(EnvDBPassword),
		K3sVersion: get(EnvK3sVersion),
	}
}
