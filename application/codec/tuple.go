package codec

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
)

// EncodeTuple encodes ordered arguments as one wire tuple: scalars in ABI form
// (booleans as 0/1), aggregates as nested values, callbacks as handles.
func (c *Codec) EncodeTuple(params []entities.Param, values ...any) ([]byte, error) {
	if len(values) != len(params) {
		return nil, fmt.Errorf("codec: tuple expects %d values, got %d", len(params), len(values))
	}
	tuple := make([]any, len(values))
	for i, p := range params {
		w, err := c.toTupleElem(reflect.ValueOf(values[i]), p.Schema, indexPath(rootPath, i))
		if err != nil {
			return nil, err
		}
		tuple[i] = w
	}
	data, err := c.format.Marshal(tuple)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal argument tuple: %w", err)
	}
	return data, nil
}

// ToTupleElem converts value to the wire tree of one tuple element. It differs
// from ToWire only for booleans, which cross as 0/1 words.
func (c *Codec) ToTupleElem(value any, schema *entities.Schema) (any, error) {
	return c.toTupleElem(reflect.ValueOf(value), schema, rootPath)
}

func (c *Codec) toTupleElem(v reflect.Value, s *entities.Schema, path string) (any, error) {
	if s.Kind != entities.KindBool {
		return c.toWire(v, s, path)
	}
	v = indirect(v)
	if !v.IsValid() || v.Kind() != reflect.Bool {
		got := "nil"
		if v.IsValid() {
			got = v.Type().String()
		}
		return nil, mismatch(path, s, got)
	}
	if v.Bool() {
		return uint64(1), nil
	}
	return uint64(0), nil
}

// DecodeTuple splits a wire tuple into its elements, checking the arity
// against params. Elements are left as wire trees for FromWire.
func (c *Codec) DecodeTuple(payload []byte, params []entities.Param) ([]any, error) {
	if len(payload) == 0 {
		if len(params) == 0 {
			return []any{}, nil
		}
		return nil, &domainerrors.SchemaMismatchError{Path: rootPath, Expected: tupleName(len(params)), Got: "empty payload"}
	}
	tree, err := c.format.Unmarshal(payload)
	if err != nil {
		return nil, &domainerrors.SchemaMismatchError{Path: rootPath, Expected: tupleName(len(params)), Got: "malformed payload", Err: err}
	}
	items, ok := tree.([]any)
	if !ok {
		return nil, &domainerrors.SchemaMismatchError{Path: rootPath, Expected: tupleName(len(params)), Got: wireTypeName(tree)}
	}
	if len(items) != len(params) {
		return nil, &domainerrors.SchemaMismatchError{Path: rootPath, Expected: tupleName(len(params)), Got: tupleName(len(items))}
	}
	return items, nil
}

// FromTupleElem decodes element i of a tuple produced by DecodeTuple.
func (c *Codec) FromTupleElem(items []any, i int, schema *entities.Schema, dst any) error {
	if i < 0 || i >= len(items) {
		return fmt.Errorf("codec: tuple index %d out of range [0,%d)", i, len(items))
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: destination must be a non-nil pointer, got %T", dst)
	}
	if err := c.fromWire(items[i], schema, rv.Elem(), indexPath(rootPath, i)); err != nil {
		return err
	}
	return c.validateStruct(rv)
}

func tupleName(n int) string {
	return "tuple of " + strconv.Itoa(n)
}

// AssignCallback stores a resolved host callback object into dst, which must
// be a non-nil pointer to a type the object is assignable to.
func AssignCallback(cb any, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: destination must be a non-nil pointer, got %T", dst)
	}
	cv := reflect.ValueOf(cb)
	if !cv.IsValid() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		return nil
	}
	if !cv.Type().AssignableTo(rv.Elem().Type()) {
		return &domainerrors.SchemaMismatchError{
			Path:     rootPath,
			Expected: rv.Elem().Type().String(),
			Got:      cv.Type().String(),
		}
	}
	rv.Elem().Set(cv)
	return nil
}
