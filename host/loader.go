package host

import (
	"fmt"

	"github.com/reglet-dev/ffibridge/application/schema"
	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/infrastructure/parser"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	parser ports.ManifestParser
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser: parser.NewYamlManifestParser(),
	}
}

// Loader orchestrates the manifest pipeline: parse, validate, and resolve
// into bind-time descriptors.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom manifest parser. The default parses YAML.
func WithParser(p ports.ManifestParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// LoadManifest parses a manifest.
func (l *Loader) LoadManifest(raw []byte) (*entities.Manifest, error) {
	manifest, err := l.config.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return manifest, nil
}

// Resolve parses a manifest and resolves it against invokers.
func (l *Loader) Resolve(raw []byte, invokers schema.Invokers) (*schema.Bindings, error) {
	manifest, err := l.LoadManifest(raw)
	if err != nil {
		return nil, err
	}
	return resolve(manifest, invokers)
}

// ResolveFile loads the manifest at path, choosing the parser by extension,
// and resolves it against invokers.
func ResolveFile(path string, invokers schema.Invokers) (*schema.Bindings, error) {
	manifest, err := parser.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return resolve(manifest, invokers)
}

func resolve(manifest *entities.Manifest, invokers schema.Invokers) (*schema.Bindings, error) {
	b, err := schema.Resolve(manifest, invokers)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifest.Module, err)
	}
	return b, nil
}
