package ports

import "github.com/reglet-dev/ffibridge/domain/entities"

// ManifestParser parses raw bytes into a binding Manifest.
type ManifestParser interface {
	// Parse unmarshals the bytes into a Manifest struct.
	Parse(data []byte) (*entities.Manifest, error)
}
