package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/ffibridge/domain/entities"
)

// validate is a package-level singleton; creating a validator per call is expensive.
var validate = validator.New()

// Invokers supplies the method thunks of each callback interface, keyed by
// interface name and then method name. Generated bindings provide these.
type Invokers map[string]map[string]entities.MethodFunc

// Bindings is a manifest resolved into bind-time descriptors.
type Bindings struct {
	Scope

	Module    string
	Functions []entities.Function
}

// Resolve turns a manifest into descriptors. Every callback method needs an
// invoker. Struct and callback declarations may refer to each other in any
// order.
func Resolve(m *entities.Manifest, invokers Invokers) (*Bindings, error) {
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	b := &Bindings{
		Module: m.Module,
		Scope: Scope{
			Structs:   make(map[string]*entities.Schema, len(m.Structs)),
			Callbacks: make(map[string]*entities.CallbackInterface, len(m.Callbacks)),
		},
	}

	// Declare every name first so forward references resolve to the same pointer.
	for _, sd := range m.Structs {
		if _, dup := b.Structs[sd.Name]; dup {
			return nil, fmt.Errorf("duplicate struct %q", sd.Name)
		}
		b.Structs[sd.Name] = entities.StructOf(sd.Name)
	}
	for _, cd := range m.Callbacks {
		if _, dup := b.Callbacks[cd.Name]; dup {
			return nil, fmt.Errorf("duplicate callback interface %q", cd.Name)
		}
		b.Callbacks[cd.Name] = &entities.CallbackInterface{Name: cd.Name}
	}

	for _, sd := range m.Structs {
		if err := b.resolveStruct(sd); err != nil {
			return nil, err
		}
	}
	if err := checkStructCycles(b.Structs); err != nil {
		return nil, err
	}
	for _, sd := range m.Structs {
		if err := b.Structs[sd.Name].Validate(); err != nil {
			return nil, err
		}
	}
	for _, cd := range m.Callbacks {
		if err := b.resolveCallback(cd, invokers[cd.Name]); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(m.Functions))
	for _, fd := range m.Functions {
		if _, dup := seen[fd.Name]; dup {
			return nil, fmt.Errorf("duplicate function %q", fd.Name)
		}
		seen[fd.Name] = struct{}{}

		fn, err := b.resolveFunction(fd, m.EntryPrefix)
		if err != nil {
			return nil, err
		}
		b.Functions = append(b.Functions, fn)
	}
	return b, nil
}

func (b *Bindings) resolveStruct(sd entities.StructDecl) error {
	st := b.Structs[sd.Name]
	for _, fd := range sd.Fields {
		fs, err := b.ParseType(fd.Type)
		if err != nil {
			return fmt.Errorf("struct %s field %s: %w", sd.Name, fd.Name, err)
		}
		st.Fields = append(st.Fields, entities.NewField(fd.Name, fs))
	}
	return nil
}

func (b *Bindings) resolveCallback(cd entities.CallbackDecl, thunks map[string]entities.MethodFunc) error {
	methods := make([]entities.Method, 0, len(cd.Methods))
	for _, md := range cd.Methods {
		params, err := b.resolveParams(md.Params)
		if err != nil {
			return fmt.Errorf("callback %s.%s: %w", cd.Name, md.Name, err)
		}
		result, err := b.ParseType(md.Result)
		if err != nil {
			return fmt.Errorf("callback %s.%s result: %w", cd.Name, md.Name, err)
		}
		invoke, ok := thunks[md.Name]
		if !ok {
			return fmt.Errorf("callback %s.%s: no invoker", cd.Name, md.Name)
		}
		methods = append(methods, entities.Method{
			Name:   md.Name,
			Params: params,
			Result: result,
			Invoke: invoke,
		})
	}

	built, err := entities.NewCallbackInterface(cd.Name, methods...)
	if err != nil {
		return err
	}
	*b.Callbacks[cd.Name] = *built
	return nil
}

func (b *Bindings) resolveFunction(fd entities.FunctionDecl, prefix string) (entities.Function, error) {
	params, err := b.resolveParams(fd.Params)
	if err != nil {
		return entities.Function{}, fmt.Errorf("function %s: %w", fd.Name, err)
	}
	result, err := b.ParseType(fd.Result)
	if err != nil {
		return entities.Function{}, fmt.Errorf("function %s result: %w", fd.Name, err)
	}

	fn := entities.Function{Name: fd.Name, Entry: fd.Entry, Params: params, Result: result}
	if fn.Entry == "" && prefix != "" {
		fn.Entry = prefix + fd.Name
	}
	return fn, nil
}

func (b *Bindings) resolveParams(decls []entities.ParamDecl) ([]entities.Param, error) {
	params := make([]entities.Param, 0, len(decls))
	for _, pd := range decls {
		ps, err := b.ParseType(pd.Type)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", pd.Name, err)
		}
		params = append(params, entities.Param{Name: pd.Name, Schema: ps, OneShot: pd.OneShot})
	}
	return params, nil
}

// checkStructCycles rejects structs that contain themselves, directly or
// through array elements.
func checkStructCycles(structs map[string]*entities.Schema) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*entities.Schema]int, len(structs))

	var visit func(s *entities.Schema) error
	visit = func(s *entities.Schema) error {
		switch state[s] {
		case visiting:
			return fmt.Errorf("struct %s contains itself", s.Name)
		case done:
			return nil
		}
		state[s] = visiting
		for _, f := range s.Fields {
			elem := f.Schema
			for elem.Kind == entities.KindArray {
				elem = elem.Elem
			}
			if elem.Kind == entities.KindStruct {
				if err := visit(elem); err != nil {
					return err
				}
			}
		}
		state[s] = done
		return nil
	}

	for _, s := range structs {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}
