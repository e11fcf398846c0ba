package entities

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a value crossing the bridge.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindStruct
	KindArray
	KindCallback
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindVoid:     "void",
	KindBool:     "bool",
	KindI8:       "i8",
	KindI16:      "i16",
	KindI32:      "i32",
	KindI64:      "i64",
	KindU8:       "u8",
	KindU16:      "u16",
	KindU32:      "u32",
	KindU64:      "u64",
	KindF32:      "f32",
	KindF64:      "f64",
	KindString:   "string",
	KindStruct:   "struct",
	KindArray:    "array",
	KindCallback: "callback",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// KindFromName maps a scalar or string type name ("i32", "bool", ...) to its Kind.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		kind := Kind(k)
		if n == name && (kind.IsScalar() || kind == KindString || kind == KindVoid) {
			return kind, true
		}
	}
	return KindInvalid, false
}

// IsInteger reports whether k is a signed or unsigned integer kind.
func (k Kind) IsInteger() bool {
	return k >= KindI8 && k <= KindU64
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	return k >= KindI8 && k <= KindI64
}

// IsFloat reports whether k is f32 or f64.
func (k Kind) IsFloat() bool {
	return k == KindF32 || k == KindF64
}

// IsScalar reports whether values of kind k cross the ABI as a single
// machine word without going through the codec.
func (k Kind) IsScalar() bool {
	return k == KindBool || k.IsInteger() || k.IsFloat()
}

// IsAggregate reports whether values of kind k cross the ABI as a payload.
func (k Kind) IsAggregate() bool {
	return k == KindString || k == KindStruct || k == KindArray
}

// BitSize returns the declared width of a numeric kind, or 0.
func (k Kind) BitSize() int {
	switch k {
	case KindI8, KindU8:
		return 8
	case KindI16, KindU16:
		return 16
	case KindI32, KindU32, KindF32:
		return 32
	case KindI64, KindU64, KindF64:
		return 64
	}
	return 0
}

// Field is a named, typed member of a struct schema.
type Field struct {
	Schema *Schema
	Name   string
}

// Schema describes a value type. Schemas are built once at bind time and are
// treated as immutable afterwards.
type Schema struct {
	// Elem is the element schema of an array.
	Elem *Schema

	// Interface is the declared callback interface of a callback schema.
	Interface *CallbackInterface

	// Name is the struct name or, for callbacks, the interface name.
	Name string

	// Fields are the ordered fields of a struct.
	Fields []Field

	Kind Kind
}

// Predeclared schemas for the non-composite kinds.
var (
	Void   = &Schema{Kind: KindVoid}
	Bool   = &Schema{Kind: KindBool}
	I8     = &Schema{Kind: KindI8}
	I16    = &Schema{Kind: KindI16}
	I32    = &Schema{Kind: KindI32}
	I64    = &Schema{Kind: KindI64}
	U8     = &Schema{Kind: KindU8}
	U16    = &Schema{Kind: KindU16}
	U32    = &Schema{Kind: KindU32}
	U64    = &Schema{Kind: KindU64}
	F32    = &Schema{Kind: KindF32}
	F64    = &Schema{Kind: KindF64}
	String = &Schema{Kind: KindString}
)

// ScalarSchema returns the predeclared schema for a non-composite kind.
func ScalarSchema(k Kind) (*Schema, bool) {
	switch k {
	case KindVoid:
		return Void, true
	case KindBool:
		return Bool, true
	case KindI8:
		return I8, true
	case KindI16:
		return I16, true
	case KindI32:
		return I32, true
	case KindI64:
		return I64, true
	case KindU8:
		return U8, true
	case KindU16:
		return U16, true
	case KindU32:
		return U32, true
	case KindU64:
		return U64, true
	case KindF32:
		return F32, true
	case KindF64:
		return F64, true
	case KindString:
		return String, true
	}
	return nil, false
}

// ArrayOf returns an array schema with the given element schema.
func ArrayOf(elem *Schema) *Schema {
	return &Schema{Kind: KindArray, Elem: elem}
}

// StructOf returns a named struct schema with the given fields.
func StructOf(name string, fields ...Field) *Schema {
	return &Schema{Kind: KindStruct, Name: name, Fields: fields}
}

// NewField returns a struct field.
func NewField(name string, schema *Schema) Field {
	return Field{Name: name, Schema: schema}
}

// CallbackOf returns a schema for a host callback implementing iface.
func CallbackOf(iface *CallbackInterface) *Schema {
	name := ""
	if iface != nil {
		name = iface.Name
	}
	return &Schema{Kind: KindCallback, Name: name, Interface: iface}
}

// Field returns the struct field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// String renders the schema as a type expression, e.g. "array<struct Point>".
func (s *Schema) String() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case KindArray:
		return "array<" + s.Elem.String() + ">"
	case KindStruct:
		return "struct " + s.Name
	case KindCallback:
		return "callback " + s.Name
	}
	return s.Kind.String()
}

// Validate checks the schema for structural errors. Callback and void
// schemas are rejected inside aggregates.
func (s *Schema) Validate() error {
	return s.validate(true)
}

func (s *Schema) validate(top bool) error {
	if s == nil {
		return fmt.Errorf("nil schema")
	}
	switch s.Kind {
	case KindVoid, KindCallback:
		if !top {
			return fmt.Errorf("%s is not allowed inside an aggregate", s.Kind)
		}
		if s.Kind == KindCallback && s.Interface == nil {
			return fmt.Errorf("callback schema %q has no interface", s.Name)
		}
	case KindArray:
		if s.Elem == nil {
			return fmt.Errorf("array schema has no element type")
		}
		if err := s.Elem.validate(false); err != nil {
			return fmt.Errorf("array element: %w", err)
		}
	case KindStruct:
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("struct schema has no name")
		}
		seen := make(map[string]struct{}, len(s.Fields))
		for _, f := range s.Fields {
			if f.Name == "" {
				return fmt.Errorf("struct %s: field name cannot be empty", s.Name)
			}
			if _, dup := seen[f.Name]; dup {
				return fmt.Errorf("struct %s: duplicate field %q", s.Name, f.Name)
			}
			seen[f.Name] = struct{}{}
			if err := f.Schema.validate(false); err != nil {
				return fmt.Errorf("struct %s field %s: %w", s.Name, f.Name, err)
			}
		}
	case KindInvalid:
		return fmt.Errorf("invalid schema kind")
	}
	return nil
}
