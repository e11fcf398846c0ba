package wireformat

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/reglet-dev/ffibridge/domain/ports"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wireformat: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wireformat: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

type cborFormat struct{}

// CBOR returns the binary wire format. Encoding is canonical so equal trees
// always produce identical payloads.
func CBOR() ports.WireFormat {
	return cborFormat{}
}

func (cborFormat) Name() string {
	return NameCBOR
}

func (cborFormat) Marshal(tree any) ([]byte, error) {
	data, err := cborEncMode.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	return data, nil
}

func (cborFormat) Unmarshal(data []byte) (any, error) {
	var tree any
	if err := cborDecMode.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("cbor: %w", err)
	}
	return tree, nil
}

func (cborFormat) AllowsNonFinite() bool {
	return true
}
