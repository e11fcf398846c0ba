// Package codec marshals host values to and from wire payloads, driven by the
// bind-time schemas in domain/entities.
//
// Encoding is strict: scalar widths are checked (RangeError) and decoding
// requires every declared struct field to be present and type-correct
// (SchemaMismatch). Scalars crossing the ABI directly use EncodeScalar and
// DecodeScalar instead of a payload.
package codec

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/wireformat"
)

// Codec is a schema-driven ValueCodec bound to one wire format.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	format   ports.WireFormat
	validate *validator.Validate
}

// Option configures a Codec.
type Option func(*Codec)

// WithFormat selects the wire format. The default is JSON.
func WithFormat(f ports.WireFormat) Option {
	return func(c *Codec) {
		if f != nil {
			c.format = f
		}
	}
}

// WithValidator enables post-decode struct validation using `validate` tags.
// Constraint failures are reported as SchemaMismatch.
func WithValidator(v *validator.Validate) Option {
	return func(c *Codec) {
		c.validate = v
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{format: wireformat.JSON()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format returns the codec's wire format.
func (c *Codec) Format() ports.WireFormat {
	return c.format
}

// Encode marshals value according to schema.
func (c *Codec) Encode(value any, schema *entities.Schema) ([]byte, error) {
	tree, err := c.ToWire(value, schema)
	if err != nil {
		return nil, err
	}
	data, err := c.format.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", schema, err)
	}
	return data, nil
}

// Decode unmarshals payload according to schema into dst, which must be a
// non-nil pointer.
func (c *Codec) Decode(payload []byte, schema *entities.Schema, dst any) error {
	tree, err := c.format.Unmarshal(payload)
	if err != nil {
		return &domainerrors.SchemaMismatchError{Path: rootPath, Expected: schema.String(), Got: "malformed payload", Err: err}
	}
	return c.FromWire(tree, schema, dst)
}

// ToWire converts value into a wire tree without serializing it.
func (c *Codec) ToWire(value any, schema *entities.Schema) (any, error) {
	if schema == nil {
		return nil, fmt.Errorf("codec: nil schema")
	}
	return c.toWire(reflect.ValueOf(value), schema, rootPath)
}

// FromWire stores a decoded wire tree into dst according to schema.
func (c *Codec) FromWire(tree any, schema *entities.Schema, dst any) error {
	if schema == nil {
		return fmt.Errorf("codec: nil schema")
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: destination must be a non-nil pointer, got %T", dst)
	}
	if err := c.fromWire(tree, schema, rv.Elem(), rootPath); err != nil {
		return err
	}
	return c.validateStruct(rv)
}

func (c *Codec) validateStruct(rv reflect.Value) error {
	if c.validate == nil {
		return nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := c.validate.Struct(rv.Interface()); err != nil {
		return &domainerrors.SchemaMismatchError{Path: rootPath, Err: err}
	}
	return nil
}
