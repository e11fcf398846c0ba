package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
)

// dynamicTypes are the Go types produced when decoding into an empty interface.
var dynamicTypes = map[entities.Kind]reflect.Type{
	entities.KindBool:     reflect.TypeOf(false),
	entities.KindI8:       reflect.TypeOf(int8(0)),
	entities.KindI16:      reflect.TypeOf(int16(0)),
	entities.KindI32:      reflect.TypeOf(int32(0)),
	entities.KindI64:      reflect.TypeOf(int64(0)),
	entities.KindU8:       reflect.TypeOf(uint8(0)),
	entities.KindU16:      reflect.TypeOf(uint16(0)),
	entities.KindU32:      reflect.TypeOf(uint32(0)),
	entities.KindU64:      reflect.TypeOf(uint64(0)),
	entities.KindF32:      reflect.TypeOf(float32(0)),
	entities.KindF64:      reflect.TypeOf(float64(0)),
	entities.KindString:   reflect.TypeOf(""),
	entities.KindCallback: handleType,
}

func (c *Codec) fromWire(tree any, s *entities.Schema, dst reflect.Value, path string) error {
	if s.Kind == entities.KindVoid {
		return nil
	}

	if dst.Kind() == reflect.Interface && dst.NumMethod() == 0 {
		val, err := c.dynamic(tree, s, path)
		if err != nil {
			return err
		}
		if val == nil {
			dst.Set(reflect.Zero(dst.Type()))
		} else {
			dst.Set(reflect.ValueOf(val))
		}
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return c.fromWire(tree, s, dst.Elem(), path)
	}

	switch {
	case s.Kind == entities.KindBool:
		b, err := wireBool(tree, s, path)
		if err != nil {
			return err
		}
		if dst.Kind() != reflect.Bool {
			return badDestination(path, s, dst)
		}
		dst.SetBool(b)
		return nil

	case s.Kind.IsInteger():
		n, err := wireInteger(tree, s, path)
		if err != nil {
			return err
		}
		return setInteger(dst, n, s, path)

	case s.Kind.IsFloat():
		f, err := wireFloat(tree, s, path)
		if err != nil {
			return err
		}
		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			if !math.IsInf(f, 0) && dst.OverflowFloat(f) {
				return rangeErr(path, s.Kind, strconv.FormatFloat(f, 'g', -1, 64))
			}
			dst.SetFloat(f)
			return nil
		}
		return badDestination(path, s, dst)

	case s.Kind == entities.KindString:
		str, ok := tree.(string)
		if !ok {
			return mismatch(path, s, wireTypeName(tree))
		}
		if dst.Kind() != reflect.String {
			return badDestination(path, s, dst)
		}
		dst.SetString(str)
		return nil

	case s.Kind == entities.KindArray:
		return c.arrayFromWire(tree, s, dst, path)

	case s.Kind == entities.KindStruct:
		return c.structFromWire(tree, s, dst, path)

	case s.Kind == entities.KindCallback:
		h, err := wireHandle(tree, s, path)
		if err != nil {
			return err
		}
		switch dst.Kind() {
		case reflect.Uint, reflect.Uint64:
			dst.SetUint(uint64(h))
			return nil
		}
		return badDestination(path, s, dst)
	}
	return fmt.Errorf("codec: unsupported schema kind %s at %s", s.Kind, path)
}

func (c *Codec) arrayFromWire(tree any, s *entities.Schema, dst reflect.Value, path string) error {
	items, ok := tree.([]any)
	if !ok {
		return mismatch(path, s, wireTypeName(tree))
	}
	switch dst.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := c.fromWire(item, s.Elem, out.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		if dst.Len() != len(items) {
			return mismatch(path, s, fmt.Sprintf("%d elements for [%d] destination", len(items), dst.Len()))
		}
		for i, item := range items {
			if err := c.fromWire(item, s.Elem, dst.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	return badDestination(path, s, dst)
}

func (c *Codec) structFromWire(tree any, s *entities.Schema, dst reflect.Value, path string) error {
	m, ok := tree.(map[string]any)
	if !ok {
		return mismatch(path, s, wireTypeName(tree))
	}

	switch dst.Kind() {
	case reflect.Struct:
		fields := fieldsOf(dst.Type())
		for _, f := range s.Fields {
			raw, err := requireField(m, f, path)
			if err != nil {
				return err
			}
			idx, ok := fields[f.Name]
			if !ok {
				return &domainerrors.SchemaMismatchError{
					Path:     fieldPath(path, f.Name),
					Expected: f.Schema.String(),
					Got:      "no field in " + dst.Type().String(),
				}
			}
			if err := c.fromWire(raw, f.Schema, fieldByIndexAlloc(dst, idx), fieldPath(path, f.Name)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if dst.Type().Key().Kind() != reflect.String {
			return badDestination(path, s, dst)
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), len(s.Fields)))
		}
		for _, f := range s.Fields {
			raw, err := requireField(m, f, path)
			if err != nil {
				return err
			}
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := c.fromWire(raw, f.Schema, elem, fieldPath(path, f.Name)); err != nil {
				return err
			}
			dst.SetMapIndex(reflect.ValueOf(f.Name).Convert(dst.Type().Key()), elem)
		}
		return nil
	}
	return badDestination(path, s, dst)
}

// dynamic decodes tree into sized Go scalars, []any and map[string]any.
func (c *Codec) dynamic(tree any, s *entities.Schema, path string) (any, error) {
	switch s.Kind {
	case entities.KindVoid:
		return nil, nil
	case entities.KindArray:
		items, ok := tree.([]any)
		if !ok {
			return nil, mismatch(path, s, wireTypeName(tree))
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := c.dynamic(item, s.Elem, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case entities.KindStruct:
		out := make(map[string]any, len(s.Fields))
		if err := c.structFromWire(tree, s, reflect.ValueOf(&out).Elem(), path); err != nil {
			return nil, err
		}
		return out, nil
	}

	t, ok := dynamicTypes[s.Kind]
	if !ok {
		return nil, fmt.Errorf("codec: unsupported schema kind %s at %s", s.Kind, path)
	}
	ptr := reflect.New(t)
	if err := c.fromWire(tree, s, ptr.Elem(), path); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func requireField(m map[string]any, f entities.Field, path string) (any, error) {
	raw, ok := m[f.Name]
	if !ok {
		return nil, &domainerrors.SchemaMismatchError{Path: fieldPath(path, f.Name), Expected: f.Schema.String(), Got: "missing"}
	}
	return raw, nil
}

// fieldByIndexAlloc is reflect.Value.FieldByIndex, allocating nil embedded pointers.
func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

func wireBool(tree any, s *entities.Schema, path string) (bool, error) {
	switch t := tree.(type) {
	case bool:
		return t, nil
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return false, mismatch(path, s, "number "+strconv.Quote(string(t)))
		}
		return f != 0, nil
	case int64:
		return t != 0, nil
	case uint64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	}
	return false, mismatch(path, s, wireTypeName(tree))
}

// wireInteger returns a range-checked int64 or uint64.
func wireInteger(tree any, s *entities.Schema, path string) (any, error) {
	switch t := tree.(type) {
	case json.Number:
		return parseInteger(string(t), s, path)
	case int64, uint64, int, int32, uint32:
		return integerValue(reflect.ValueOf(t), s, path)
	case float64:
		return parseInteger(strconv.FormatFloat(t, 'f', -1, 64), s, path)
	case float32:
		return parseInteger(strconv.FormatFloat(float64(t), 'f', -1, 32), s, path)
	}
	return nil, mismatch(path, s, wireTypeName(tree))
}

func wireFloat(tree any, s *entities.Schema, path string) (float64, error) {
	var f float64
	switch t := tree.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return 0, rangeErr(path, s.Kind, string(t))
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	default:
		return 0, mismatch(path, s, wireTypeName(tree))
	}
	if s.Kind == entities.KindF32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, rangeErr(path, s.Kind, strconv.FormatFloat(f, 'g', -1, 64))
	}
	return f, nil
}

func wireHandle(tree any, s *entities.Schema, path string) (entities.Handle, error) {
	n, err := wireInteger(tree, entities.U64, path)
	if err != nil {
		return 0, mismatch(path, s, wireTypeName(tree))
	}
	h := entities.Handle(n.(uint64))
	if !h.Valid() {
		return 0, mismatch(path, s, "handle 0")
	}
	return h, nil
}

func setInteger(dst reflect.Value, n any, s *entities.Schema, path string) error {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch t := n.(type) {
		case int64:
			i = t
		case uint64:
			if t > math.MaxInt64 {
				return rangeErr(path, s.Kind, strconv.FormatUint(t, 10))
			}
			i = int64(t)
		}
		if dst.OverflowInt(i) {
			return rangeErr(path, s.Kind, strconv.FormatInt(i, 10))
		}
		dst.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		switch t := n.(type) {
		case int64:
			if t < 0 {
				return rangeErr(path, s.Kind, strconv.FormatInt(t, 10))
			}
			u = uint64(t)
		case uint64:
			u = t
		}
		if dst.OverflowUint(u) {
			return rangeErr(path, s.Kind, strconv.FormatUint(u, 10))
		}
		dst.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		switch t := n.(type) {
		case int64:
			dst.SetFloat(float64(t))
		case uint64:
			dst.SetFloat(float64(t))
		}
		return nil
	}
	return badDestination(path, s, dst)
}

func badDestination(path string, s *entities.Schema, dst reflect.Value) error {
	return &domainerrors.SchemaMismatchError{Path: path, Expected: s.String(), Got: "destination " + dst.Type().String()}
}

func wireTypeName(tree any) string {
	switch tree.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "map"
	case json.Number, int64, uint64, float64, float32, int:
		return "number"
	}
	return fmt.Sprintf("%T", tree)
}
