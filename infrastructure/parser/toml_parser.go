package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/domain/ports"
)

// TomlManifestParser implements ManifestParser for TOML.
type TomlManifestParser struct{}

// NewTomlManifestParser creates a new TomlManifestParser.
func NewTomlManifestParser() ports.ManifestParser {
	return &TomlManifestParser{}
}

// Parse unmarshals TOML bytes into a Manifest. Unknown keys are rejected.
func (p *TomlManifestParser) Parse(data []byte) (*entities.Manifest, error) {
	var manifest entities.Manifest
	md, err := toml.Decode(string(data), &manifest)
	if err != nil {
		return nil, fmt.Errorf("parse toml manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse toml manifest: unknown key %q", undecoded[0].String())
	}
	return &manifest, nil
}

// ForPath returns the parser matching the file extension of path.
func ForPath(path string) (ports.ManifestParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlManifestParser(), nil
	case ".toml":
		return NewTomlManifestParser(), nil
	}
	return nil, fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
}

// Load reads and parses the manifest file at path.
func Load(path string) (*entities.Manifest, error) {
	p, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
