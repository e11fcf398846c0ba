package schema

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/ffibridge/domain/entities"
)

// Type expression forms accepted by ParseType.
const (
	arrayPrefix    = "array<"
	structPrefix   = "struct "
	callbackPrefix = "callback "

	// BytesAlias is shorthand for array<u8>.
	BytesAlias = "bytes"
)

// Scope holds the named structs and callback interfaces a type expression
// may refer to.
type Scope struct {
	Structs   map[string]*entities.Schema
	Callbacks map[string]*entities.CallbackInterface
}

// ParseType parses a type expression such as "i32", "array<string>",
// "struct Point" or "callback Listener". An empty expression is void.
func (s *Scope) ParseType(expr string) (*entities.Schema, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return entities.Void, nil
	}

	switch {
	case strings.HasPrefix(expr, arrayPrefix):
		if !strings.HasSuffix(expr, ">") {
			return nil, fmt.Errorf("type %q: missing closing '>'", expr)
		}
		elem, err := s.ParseType(expr[len(arrayPrefix) : len(expr)-1])
		if err != nil {
			return nil, err
		}
		if elem.Kind == entities.KindVoid {
			return nil, fmt.Errorf("type %q: array element type is required", expr)
		}
		return entities.ArrayOf(elem), nil

	case strings.HasPrefix(expr, structPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(expr, structPrefix))
		st, ok := s.Structs[name]
		if !ok {
			return nil, fmt.Errorf("type %q: unknown struct %q", expr, name)
		}
		return st, nil

	case strings.HasPrefix(expr, callbackPrefix):
		name := strings.TrimSpace(strings.TrimPrefix(expr, callbackPrefix))
		iface, ok := s.Callbacks[name]
		if !ok {
			return nil, fmt.Errorf("type %q: unknown callback interface %q", expr, name)
		}
		return entities.CallbackOf(iface), nil

	case expr == BytesAlias:
		return entities.ArrayOf(entities.U8), nil
	}

	kind, ok := entities.KindFromName(expr)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", expr)
	}
	schema, _ := entities.ScalarSchema(kind)
	return schema, nil
}

// ParseType parses a type expression that refers to no named types.
func ParseType(expr string) (*entities.Schema, error) {
	return (&Scope{}).ParseType(expr)
}
