// Package wireformat implements the self-describing payload encodings shared
// by the host and the native module. These formats define the ABI contract
// for aggregates and must remain stable and backward compatible.
package wireformat

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/ffibridge/domain/ports"
)

// Format names accepted by ByName.
const (
	NameJSON = "json"
	NameCBOR = "cbor"
)

// ByName returns the wire format with the given name.
func ByName(name string) (ports.WireFormat, error) {
	switch strings.ToLower(name) {
	case "", NameJSON:
		return JSON(), nil
	case NameCBOR:
		return CBOR(), nil
	}
	return nil, fmt.Errorf("unknown wire format %q", name)
}
