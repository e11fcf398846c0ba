package entities

import (
	"context"
	"fmt"
)

// Param is one ordered parameter of a function or callback method.
type Param struct {
	Schema *Schema
	Name   string

	// OneShot marks a callback parameter whose registration is released
	// automatically after the native side invokes it once.
	OneShot bool
}

// NewParam returns a parameter descriptor.
func NewParam(name string, schema *Schema) Param {
	return Param{Name: name, Schema: schema}
}

// Function describes a host-initiated bound function. It is generated once at
// bind time and never recomputed per call.
type Function struct {
	// Result is the return schema; Void for functions without a result.
	Result *Schema

	// Name is the host-facing function name.
	Name string

	// Entry is the native export invoked for this function.
	Entry string

	Params []Param
}

// Validate checks that the descriptor is complete and its schemas are legal.
func (f *Function) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if f.Entry == "" {
		return fmt.Errorf("function %s: native entry cannot be empty", f.Name)
	}
	if err := validateParams(f.Params); err != nil {
		return fmt.Errorf("function %s: %w", f.Name, err)
	}
	if f.Result == nil {
		return fmt.Errorf("function %s: result schema is required (use Void)", f.Name)
	}
	if err := f.Result.Validate(); err != nil {
		return fmt.Errorf("function %s result: %w", f.Name, err)
	}
	return nil
}

// Args gives a method implementation typed access to decoded arguments.
type Args interface {
	// Len returns the number of arguments.
	Len() int

	// Decode stores argument i into dst, which must be a non-nil pointer.
	Decode(i int, dst any) error
}

// Arg decodes argument i of args as a T.
func Arg[T any](args Args, i int) (T, error) {
	var v T
	err := args.Decode(i, &v)
	return v, err
}

// MethodFunc invokes one method on a callback object. Generated bindings
// provide one per method; the dispatcher selects it by selector only.
type MethodFunc func(ctx context.Context, target any, args Args) (any, error)

// Method is one entry of a callback interface's selector table.
type Method struct {
	Result *Schema
	Invoke MethodFunc
	Name   string
	Params []Param

	// Selector is the method's fixed index in its interface.
	Selector int32
}

// CallbackInterface is the bind-time selector table of a host callback type.
type CallbackInterface struct {
	Name    string
	Methods []Method
}

// NewCallbackInterface builds a selector table. Selectors are assigned by
// position, so methods must be listed in declaration order.
func NewCallbackInterface(name string, methods ...Method) (*CallbackInterface, error) {
	if name == "" {
		return nil, fmt.Errorf("callback interface name cannot be empty")
	}
	iface := &CallbackInterface{Name: name, Methods: make([]Method, len(methods))}
	for i, m := range methods {
		m.Selector = int32(i) //nolint:gosec // G115: method tables are tiny
		if m.Name == "" {
			return nil, fmt.Errorf("callback %s: method %d has no name", name, i)
		}
		if m.Invoke == nil {
			return nil, fmt.Errorf("callback %s.%s: no invoker", name, m.Name)
		}
		if m.Result == nil {
			m.Result = Void
		}
		if err := validateParams(m.Params); err != nil {
			return nil, fmt.Errorf("callback %s.%s: %w", name, m.Name, err)
		}
		if err := m.Result.Validate(); err != nil {
			return nil, fmt.Errorf("callback %s.%s result: %w", name, m.Name, err)
		}
		iface.Methods[i] = m
	}
	return iface, nil
}

// MustCallbackInterface is like NewCallbackInterface but panics on error.
// Intended for package-level tables in generated bindings.
func MustCallbackInterface(name string, methods ...Method) *CallbackInterface {
	iface, err := NewCallbackInterface(name, methods...)
	if err != nil {
		panic(err)
	}
	return iface
}

// Method returns the method for selector.
func (ci *CallbackInterface) Method(selector int32) (*Method, bool) {
	if selector < 0 || int(selector) >= len(ci.Methods) {
		return nil, false
	}
	return &ci.Methods[selector], true
}

func validateParams(params []Param) error {
	for i, p := range params {
		if p.Schema == nil {
			return fmt.Errorf("param %d (%s): schema is required", i, p.Name)
		}
		if p.Schema.Kind == KindVoid {
			return fmt.Errorf("param %d (%s): void is not a parameter type", i, p.Name)
		}
		if p.OneShot && p.Schema.Kind != KindCallback {
			return fmt.Errorf("param %d (%s): only callback parameters can be one-shot", i, p.Name)
		}
		if err := p.Schema.Validate(); err != nil {
			return fmt.Errorf("param %d (%s): %w", i, p.Name, err)
		}
	}
	return nil
}
