package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
)

const rootPath = "$"

var (
	handleType     = reflect.TypeOf(entities.Handle(0))
	jsonNumberType = reflect.TypeOf(json.Number(""))
)

func (c *Codec) toWire(v reflect.Value, s *entities.Schema, path string) (any, error) {
	v = indirect(v)

	if !v.IsValid() {
		switch s.Kind {
		case entities.KindArray:
			return []any{}, nil
		case entities.KindVoid:
			return nil, nil
		}
		return nil, mismatch(path, s, "nil")
	}

	switch {
	case s.Kind == entities.KindVoid:
		return nil, nil
	case s.Kind == entities.KindBool:
		if v.Kind() != reflect.Bool {
			return nil, mismatch(path, s, v.Type().String())
		}
		return v.Bool(), nil
	case s.Kind.IsInteger():
		return integerValue(v, s, path)
	case s.Kind.IsFloat():
		f, err := floatValue(v, s, path)
		if err != nil {
			return nil, err
		}
		if (math.IsNaN(f) || math.IsInf(f, 0)) && !c.format.AllowsNonFinite() {
			return nil, rangeErr(path, s.Kind, strconv.FormatFloat(f, 'g', -1, 64))
		}
		if s.Kind == entities.KindF32 {
			return float32(f), nil
		}
		return f, nil
	case s.Kind == entities.KindString:
		if v.Kind() != reflect.String {
			return nil, mismatch(path, s, v.Type().String())
		}
		str := v.String()
		if !utf8.ValidString(str) {
			return nil, rangeErr(path, s.Kind, strconv.Quote(str))
		}
		return str, nil
	case s.Kind == entities.KindArray:
		return c.arrayToWire(v, s, path)
	case s.Kind == entities.KindStruct:
		return c.structToWire(v, s, path)
	case s.Kind == entities.KindCallback:
		h, err := handleValue(v, s, path)
		if err != nil {
			return nil, err
		}
		return uint64(h), nil
	}
	return nil, fmt.Errorf("codec: unsupported schema kind %s at %s", s.Kind, path)
}

func (c *Codec) arrayToWire(v reflect.Value, s *entities.Schema, path string) (any, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, mismatch(path, s, v.Type().String())
	}
	out := make([]any, v.Len())
	for i := range out {
		elem, err := c.toWire(v.Index(i), s.Elem, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func (c *Codec) structToWire(v reflect.Value, s *entities.Schema, path string) (any, error) {
	out := make(map[string]any, len(s.Fields))
	switch v.Kind() {
	case reflect.Struct:
		fields := fieldsOf(v.Type())
		for _, f := range s.Fields {
			idx, ok := fields[f.Name]
			if !ok {
				return nil, &domainerrors.SchemaMismatchError{
					Path:     fieldPath(path, f.Name),
					Expected: f.Schema.String(),
					Got:      "no field in " + v.Type().String(),
				}
			}
			fv, err := v.FieldByIndexErr(idx)
			if err != nil {
				// nil embedded pointer
				fv = reflect.Value{}
			}
			w, err := c.toWire(fv, f.Schema, fieldPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			out[f.Name] = w
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, mismatch(path, s, v.Type().String())
		}
		for _, f := range s.Fields {
			fv := v.MapIndex(reflect.ValueOf(f.Name).Convert(v.Type().Key()))
			if !fv.IsValid() {
				return nil, &domainerrors.SchemaMismatchError{Path: fieldPath(path, f.Name), Expected: f.Schema.String(), Got: "missing"}
			}
			w, err := c.toWire(fv, f.Schema, fieldPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			out[f.Name] = w
		}
	default:
		return nil, mismatch(path, s, v.Type().String())
	}
	return out, nil
}

// integerValue returns v as an int64 (signed kinds) or uint64 (unsigned kinds)
// after checking it fits the declared width.
func integerValue(v reflect.Value, s *entities.Schema, path string) (any, error) {
	var (
		neg bool
		mag uint64
		txt string
	)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		txt = strconv.FormatInt(i, 10)
		if i < 0 {
			neg, mag = true, uint64(-(i+1))+1
		} else {
			mag = uint64(i)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		mag = v.Uint()
		txt = strconv.FormatUint(mag, 10)
	case reflect.String:
		if v.Type() != jsonNumberType {
			return nil, mismatch(path, s, v.Type().String())
		}
		return parseInteger(v.String(), s, path)
	default:
		return nil, mismatch(path, s, v.Type().String())
	}
	return checkInteger(neg, mag, txt, s.Kind, path)
}

func parseInteger(txt string, s *entities.Schema, path string) (any, error) {
	if i, err := strconv.ParseInt(txt, 10, 64); err == nil {
		return integerValue(reflect.ValueOf(i), s, path)
	}
	if u, err := strconv.ParseUint(txt, 10, 64); err == nil {
		return integerValue(reflect.ValueOf(u), s, path)
	}
	f, err := strconv.ParseFloat(txt, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange):
		return nil, mismatch(path, s, "number "+strconv.Quote(txt))
	case f != math.Trunc(f):
		return nil, mismatch(path, s, "fractional number "+txt)
	case math.Abs(f) < 1<<63:
		return integerValue(reflect.ValueOf(int64(f)), s, path)
	}
	return nil, rangeErr(path, s.Kind, txt)
}

func checkInteger(neg bool, mag uint64, txt string, k entities.Kind, path string) (any, error) {
	bits := uint(k.BitSize())
	if k.IsSigned() {
		limit := uint64(1) << (bits - 1)
		if (neg && mag > limit) || (!neg && mag > limit-1) {
			return nil, rangeErr(path, k, txt)
		}
		if neg {
			return -int64(mag-1) - 1, nil
		}
		return int64(mag), nil
	}
	if neg {
		return nil, rangeErr(path, k, txt)
	}
	if bits < 64 && mag > (uint64(1)<<bits)-1 {
		return nil, rangeErr(path, k, txt)
	}
	return mag, nil
}

func floatValue(v reflect.Value, s *entities.Schema, path string) (float64, error) {
	var f float64
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f = v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(v.Uint())
	case reflect.String:
		if v.Type() != jsonNumberType {
			return 0, mismatch(path, s, v.Type().String())
		}
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, rangeErr(path, s.Kind, v.String())
		}
		f = parsed
	default:
		return 0, mismatch(path, s, v.Type().String())
	}
	if s.Kind == entities.KindF32 && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, rangeErr(path, s.Kind, strconv.FormatFloat(f, 'g', -1, 64))
	}
	return f, nil
}

func handleValue(v reflect.Value, s *entities.Schema, path string) (entities.Handle, error) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		h := entities.Handle(v.Uint())
		if !h.Valid() {
			return 0, mismatch(path, s, "handle 0")
		}
		return h, nil
	}
	return 0, mismatch(path, s, v.Type().String())
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func mismatch(path string, s *entities.Schema, got string) error {
	return &domainerrors.SchemaMismatchError{Path: path, Expected: s.String(), Got: got}
}

func rangeErr(path string, k entities.Kind, value string) error {
	return &domainerrors.RangeError{Path: path, Kind: k.String(), Value: value}
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func fieldPath(path, name string) string {
	return path + "." + name
}
