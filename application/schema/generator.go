// Package schema resolves binding manifests into schema descriptors and
// renders those descriptors as JSON Schema documents.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/ffibridge/domain/entities"
)

// Draft is the JSON Schema dialect of generated documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema renders a value schema as a JSON Schema document. Structs
// reachable from s are emitted once under $defs and referenced by name.
// Callbacks are described as the handle numbers that carry them.
func JSONSchema(s *entities.Schema) *jsonschema.Schema {
	g := &generator{defs: jsonschema.Definitions{}}
	root := g.schema(s)
	root.Version = Draft
	if len(g.defs) > 0 {
		root.Definitions = g.defs
	}
	return root
}

// GenerateValueSchema renders a value schema as indented JSON Schema.
func GenerateValueSchema(s *entities.Schema) ([]byte, error) {
	return marshal(JSONSchema(s))
}

// Document renders every struct of the bindings under $defs.
func (b *Bindings) Document() *jsonschema.Schema {
	g := &generator{defs: jsonschema.Definitions{}}
	for _, st := range b.Structs {
		g.define(st)
	}
	return &jsonschema.Schema{
		Version:     Draft,
		Title:       b.Module,
		Definitions: g.defs,
	}
}

// GenerateDocument renders the bindings' structs as indented JSON Schema.
func (b *Bindings) GenerateDocument() ([]byte, error) {
	return marshal(b.Document())
}

type generator struct {
	defs jsonschema.Definitions
}

func (g *generator) schema(s *entities.Schema) *jsonschema.Schema {
	switch s.Kind {
	case entities.KindVoid:
		return &jsonschema.Schema{Type: "null"}
	case entities.KindBool:
		return &jsonschema.Schema{Type: "boolean"}
	case entities.KindString:
		return &jsonschema.Schema{Type: "string"}
	case entities.KindF32, entities.KindF64:
		return &jsonschema.Schema{Type: "number"}
	case entities.KindArray:
		return &jsonschema.Schema{Type: "array", Items: g.schema(s.Elem)}
	case entities.KindStruct:
		g.define(s)
		return &jsonschema.Schema{Ref: "#/$defs/" + s.Name}
	case entities.KindCallback:
		return &jsonschema.Schema{
			Type:        "integer",
			Minimum:     json.Number("1"),
			Description: "handle of a registered " + s.Name + " callback",
		}
	}
	if s.Kind.IsInteger() {
		lo, hi := integerBounds(s.Kind)
		return &jsonschema.Schema{Type: "integer", Minimum: lo, Maximum: hi}
	}
	return &jsonschema.Schema{}
}

func (g *generator) define(s *entities.Schema) {
	if _, ok := g.defs[s.Name]; ok {
		return
	}
	def := &jsonschema.Schema{
		Type:                 "object",
		Title:                s.Name,
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
	}
	// Registered before recursing so self references terminate.
	g.defs[s.Name] = def
	for _, f := range s.Fields {
		def.Properties.Set(f.Name, g.schema(f.Schema))
		def.Required = append(def.Required, f.Name)
	}
}

func integerBounds(k entities.Kind) (json.Number, json.Number) {
	bits := k.BitSize()
	if k.IsSigned() {
		lo := int64(-1) << (bits - 1)
		hi := int64(1)<<(bits-1) - 1
		if bits == 64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		return json.Number(strconv.FormatInt(lo, 10)), json.Number(strconv.FormatInt(hi, 10))
	}
	hi := uint64(math.MaxUint64)
	if bits < 64 {
		hi = uint64(1)<<bits - 1
	}
	return json.Number("0"), json.Number(strconv.FormatUint(hi, 10))
}

func marshal(schema *jsonschema.Schema) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}
