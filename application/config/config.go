// Package config loads the bridge configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied before a config file is decoded.
const (
	DefaultHostModule     = "bridge_host"
	DefaultWireFormat     = "json"
	DefaultEntryPrefix    = "native_"
	DefaultLogLevel       = "info"
	DefaultMaxPayloadSize = 16 << 20
)

// validate is a package-level singleton; creating a validator per call is expensive.
var validate = validator.New()

// Config is the bridge configuration.
type Config struct {
	// Env is passed to the native module as its WASI environment.
	Env map[string]string `yaml:"env,omitempty" toml:"env"`

	// Module is the path of the native module (.wasm).
	Module string `yaml:"module" toml:"module" validate:"required"`

	// Manifest is the optional path of the binding manifest.
	Manifest string `yaml:"manifest,omitempty" toml:"manifest"`

	// HostModule is the import module name of the bridge's host exports.
	HostModule string `yaml:"host_module" toml:"host_module" validate:"required"`

	WireFormat  string `yaml:"wire_format" toml:"wire_format" validate:"oneof=json cbor"`
	EntryPrefix string `yaml:"entry_prefix" toml:"entry_prefix"`
	LogLevel    string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`

	// MaxPayloadSize bounds payloads the host reads from native memory.
	MaxPayloadSize uint32 `yaml:"max_payload_size" toml:"max_payload_size" validate:"gt=0"`

	// Metrics enables the Prometheus collectors.
	Metrics bool `yaml:"metrics" toml:"metrics"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		HostModule:     DefaultHostModule,
		WireFormat:     DefaultWireFormat,
		EntryPrefix:    DefaultEntryPrefix,
		LogLevel:       DefaultLogLevel,
		MaxPayloadSize: DefaultMaxPayloadSize,
	}
}

// Validate checks the config against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) config file. Defaults are
// applied first, so the file only needs the settings it changes. A relative
// Module or Manifest path is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: config path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	case ".toml":
		err = decodeTOML(data, &cfg)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.Module = resolvePath(dir, cfg.Module)
	cfg.Manifest = resolvePath(dir, cfg.Manifest)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
