package codec

import (
	"fmt"
	"reflect"

	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/tetratelabs/wazero/api"
)

// EncodeScalar converts a scalar host value into the raw ABI word passed to a
// native export. Booleans cross as canonical 0/1. Values outside the declared
// width fail with a RangeError.
func EncodeScalar(value any, schema *entities.Schema) (uint64, error) {
	if !schema.Kind.IsScalar() {
		return 0, fmt.Errorf("codec: %s is not a scalar schema", schema)
	}
	v := indirect(reflect.ValueOf(value))
	if !v.IsValid() {
		return 0, mismatch(rootPath, schema, "nil")
	}

	switch {
	case schema.Kind == entities.KindBool:
		if v.Kind() != reflect.Bool {
			return 0, mismatch(rootPath, schema, v.Type().String())
		}
		if v.Bool() {
			return 1, nil
		}
		return 0, nil

	case schema.Kind.IsFloat():
		f, err := floatValue(v, schema, rootPath)
		if err != nil {
			return 0, err
		}
		if schema.Kind == entities.KindF32 {
			return api.EncodeF32(float32(f)), nil
		}
		return api.EncodeF64(f), nil
	}

	n, err := integerValue(v, schema, rootPath)
	if err != nil {
		return 0, err
	}
	switch t := n.(type) {
	case int64:
		if schema.Kind == entities.KindI64 {
			return uint64(t), nil
		}
		return api.EncodeI32(int32(t)), nil //nolint:gosec // G115: width checked above
	case uint64:
		if schema.Kind == entities.KindU64 {
			return t, nil
		}
		return api.EncodeU32(uint32(t)), nil //nolint:gosec // G115: width checked above
	}
	return 0, fmt.Errorf("codec: unexpected integer %T", n)
}

// DecodeScalar stores the raw ABI word returned by a native export into dst.
// Any nonzero bool word decodes to true.
func DecodeScalar(word uint64, schema *entities.Schema, dst any) error {
	var tree any
	switch schema.Kind {
	case entities.KindBool:
		tree = uint32(word) != 0
	case entities.KindI8, entities.KindI16, entities.KindI32:
		tree = int64(api.DecodeI32(word))
	case entities.KindI64:
		tree = int64(word)
	case entities.KindU8, entities.KindU16, entities.KindU32:
		tree = uint64(api.DecodeU32(word))
	case entities.KindU64:
		tree = word
	case entities.KindF32:
		tree = float64(api.DecodeF32(word))
	case entities.KindF64:
		tree = api.DecodeF64(word)
	default:
		return fmt.Errorf("codec: %s is not a scalar schema", schema)
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: destination must be a non-nil pointer, got %T", dst)
	}
	// The scalar path never consults the wire format, so any codec will do.
	return scalarCodec.fromWire(tree, schema, rv.Elem(), rootPath)
}

var scalarCodec = New()
