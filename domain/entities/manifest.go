package entities

// Manifest declares a binding surface: the structs, callback interfaces and
// functions shared by the host and the native module. Types are written as
// type expressions ("i32", "array<string>", "struct Point", "callback Listener")
// and resolved into schemas once, at bind time.
type Manifest struct {
	Module      string         `json:"module" yaml:"module" toml:"module" validate:"required"`
	EntryPrefix string         `json:"entry_prefix,omitempty" yaml:"entry_prefix,omitempty" toml:"entry_prefix"`
	Structs     []StructDecl   `json:"structs,omitempty" yaml:"structs,omitempty" toml:"structs" validate:"dive"`
	Callbacks   []CallbackDecl `json:"callbacks,omitempty" yaml:"callbacks,omitempty" toml:"callbacks" validate:"dive"`
	Functions   []FunctionDecl `json:"functions,omitempty" yaml:"functions,omitempty" toml:"functions" validate:"dive"`
}

// StructDecl declares a struct schema.
type StructDecl struct {
	Name   string      `json:"name" yaml:"name" toml:"name" validate:"required"`
	Fields []FieldDecl `json:"fields" yaml:"fields" toml:"fields" validate:"dive"`
}

// FieldDecl declares one struct field.
type FieldDecl struct {
	Name string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Type string `json:"type" yaml:"type" toml:"type" validate:"required"`
}

// ParamDecl declares one parameter.
type ParamDecl struct {
	Name    string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Type    string `json:"type" yaml:"type" toml:"type" validate:"required"`
	OneShot bool   `json:"one_shot,omitempty" yaml:"one_shot,omitempty" toml:"one_shot"`
}

// CallbackDecl declares a callback interface. Method order fixes the selectors.
type CallbackDecl struct {
	Name    string       `json:"name" yaml:"name" toml:"name" validate:"required"`
	Methods []MethodDecl `json:"methods" yaml:"methods" toml:"methods" validate:"min=1,dive"`
}

// MethodDecl declares one callback method.
type MethodDecl struct {
	Name   string      `json:"name" yaml:"name" toml:"name" validate:"required"`
	Result string      `json:"result,omitempty" yaml:"result,omitempty" toml:"result"`
	Params []ParamDecl `json:"params,omitempty" yaml:"params,omitempty" toml:"params" validate:"dive"`
}

// FunctionDecl declares a host-initiated bound function. Entry defaults to
// EntryPrefix + Name.
type FunctionDecl struct {
	Name   string      `json:"name" yaml:"name" toml:"name" validate:"required"`
	Entry  string      `json:"entry,omitempty" yaml:"entry,omitempty" toml:"entry"`
	Result string      `json:"result,omitempty" yaml:"result,omitempty" toml:"result"`
	Params []ParamDecl `json:"params,omitempty" yaml:"params,omitempty" toml:"params" validate:"dive"`
}
