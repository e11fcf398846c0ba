package schema

import (
	"testing"

	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType_Scalars(t *testing.T) {
	tests := []struct {
		expr string
		want *entities.Schema
	}{
		{"", entities.Void},
		{"void", entities.Void},
		{"bool", entities.Bool},
		{"i8", entities.I8},
		{"u16", entities.U16},
		{" i32 ", entities.I32},
		{"u64", entities.U64},
		{"f32", entities.F32},
		{"f64", entities.F64},
		{"string", entities.String},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseType(tt.expr)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestParseType_Composite(t *testing.T) {
	point := entities.StructOf("Point",
		entities.NewField("x", entities.I32),
		entities.NewField("y", entities.I32),
	)
	listener := &entities.CallbackInterface{Name: "Listener"}
	scope := &Scope{
		Structs:   map[string]*entities.Schema{"Point": point},
		Callbacks: map[string]*entities.CallbackInterface{"Listener": listener},
	}

	t.Run("nested array", func(t *testing.T) {
		got, err := scope.ParseType("array<array<struct Point>>")
		require.NoError(t, err)
		assert.Equal(t, "array<array<struct Point>>", got.String())
		assert.Same(t, point, got.Elem.Elem)
	})

	t.Run("bytes alias", func(t *testing.T) {
		got, err := scope.ParseType("bytes")
		require.NoError(t, err)
		assert.Equal(t, entities.KindArray, got.Kind)
		assert.Same(t, entities.U8, got.Elem)
	})

	t.Run("callback", func(t *testing.T) {
		got, err := scope.ParseType("callback Listener")
		require.NoError(t, err)
		assert.Equal(t, entities.KindCallback, got.Kind)
		assert.Same(t, listener, got.Interface)
	})
}

func TestParseType_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr string
	}{
		{"int", "unknown type"},
		{"array<i32", "missing closing"},
		{"array<>", "element type is required"},
		{"array<void>", "element type is required"},
		{"struct Missing", "unknown struct"},
		{"callback Missing", "unknown callback interface"},
		{"array<struct Missing>", "unknown struct"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseType(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
