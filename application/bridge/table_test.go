package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/host/registry"
	"github.com/reglet-dev/ffibridge/hostfuncs"
	"github.com/reglet-dev/ffibridge/internal/abi"
	"github.com/reglet-dev/ffibridge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
)

type listener struct {
	events []string
}

var listenerIface = entities.MustCallbackInterface("Listener",
	entities.Method{
		Name:   "on_event",
		Params: []entities.Param{entities.NewParam("event", entities.String)},
		Invoke: func(_ context.Context, target any, args entities.Args) (any, error) {
			event, err := entities.Arg[string](args, 0)
			if err != nil {
				return nil, err
			}
			l := target.(*listener)
			l.events = append(l.events, event)
			return nil, nil
		},
	},
)

type sample struct {
	A     int8    `bridge:"a"`
	B     int8    `bridge:"b"`
	C     int16   `bridge:"c"`
	D     int16   `bridge:"d"`
	E     int32   `bridge:"e"`
	F     int32   `bridge:"f"`
	Name  string  `bridge:"name"`
	Flag  bool    `bridge:"flag"`
	Ratio float32 `bridge:"ratio" validate:"gt=0"`
	Total float64 `bridge:"total" validate:"gt=0"`
}

var sampleSchema = entities.StructOf("Sample",
	entities.NewField("a", entities.I8),
	entities.NewField("b", entities.I8),
	entities.NewField("c", entities.I16),
	entities.NewField("d", entities.I16),
	entities.NewField("e", entities.I32),
	entities.NewField("f", entities.I32),
	entities.NewField("name", entities.String),
	entities.NewField("flag", entities.Bool),
	entities.NewField("ratio", entities.F32),
	entities.NewField("total", entities.F64),
)

type fixture struct {
	native     *testutil.FakeNative
	registry   *registry.Registry
	codec      *codec.Codec
	dispatcher *hostfuncs.Dispatcher
	table      *Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		native:   testutil.NewFakeNative(),
		registry: registry.NewRegistry(),
		codec:    codec.New(codec.WithValidator(validator.New())),
	}
	var err error
	f.dispatcher, err = hostfuncs.NewDispatcher(f.registry, hostfuncs.WithCodec(f.codec))
	require.NoError(t, err)
	f.table, err = NewTable(f.native, f.registry, WithCodec(f.codec))
	require.NoError(t, err)

	require.NoError(t, f.table.Bind(
		entities.Function{
			Name:   "add",
			Params: []entities.Param{entities.NewParam("a", entities.I32), entities.NewParam("b", entities.I32)},
			Result: entities.I32,
		},
		entities.Function{
			Name:   "negate",
			Params: []entities.Param{entities.NewParam("v", entities.Bool)},
			Result: entities.Bool,
		},
		entities.Function{
			Name:   "join",
			Params: []entities.Param{entities.NewParam("parts", entities.ArrayOf(entities.String)), entities.NewParam("sep", entities.String)},
			Result: entities.String,
		},
		entities.Function{
			Name:   "echo_sample",
			Params: []entities.Param{entities.NewParam("s", sampleSchema)},
			Result: sampleSchema,
		},
		entities.Function{
			Name:   "subscribe",
			Params: []entities.Param{entities.NewParam("l", entities.CallbackOf(listenerIface))},
		},
		entities.Function{
			Name:   "subscribe_once",
			Params: []entities.Param{{Name: "l", Schema: entities.CallbackOf(listenerIface), OneShot: true}},
		},
		entities.Function{
			Name:   "fire",
			Params: []entities.Param{entities.NewParam("event", entities.String)},
		},
		entities.Function{
			Name:   "current",
			Result: entities.CallbackOf(listenerIface),
		},
		entities.Function{
			Name: "subscribe_tagged",
			Params: []entities.Param{
				entities.NewParam("l", entities.CallbackOf(listenerIface)),
				entities.NewParam("tag", entities.I8),
			},
		},
	))
	return f
}

// installNative installs native exports backed by the fixture's codec and
// dispatcher, emulating a guest compiled against the same bindings.
func (f *fixture) installNative(t *testing.T) {
	t.Helper()
	var subscribed []uint64

	f.native.Export("native_add", func(_ context.Context, _ *testutil.FakeNative, args []uint64) ([]uint64, error) {
		return []uint64{api.EncodeI32(api.DecodeI32(args[0]) + api.DecodeI32(args[1]))}, nil
	})
	f.native.Export("native_negate", func(_ context.Context, _ *testutil.FakeNative, args []uint64) ([]uint64, error) {
		if args[0] > 1 {
			return nil, errors.New("bool word is not canonical")
		}
		if args[0] == 0 {
			return []uint64{7}, nil
		}
		return []uint64{0}, nil
	})
	f.native.Export("native_join", func(ctx context.Context, n *testutil.FakeNative, args []uint64) ([]uint64, error) {
		var parts []string
		var sep string
		if err := f.readArg(ctx, n, args[0], entities.ArrayOf(entities.String), &parts); err != nil {
			return nil, err
		}
		if err := f.readArg(ctx, n, args[1], entities.String, &sep); err != nil {
			return nil, err
		}
		return f.writeResult(ctx, n, strings.Join(parts, sep), entities.String)
	})
	f.native.Export("native_echo_sample", func(ctx context.Context, n *testutil.FakeNative, args []uint64) ([]uint64, error) {
		data, err := n.ReadPayload(ctx, args[0])
		if err != nil {
			return nil, err
		}
		ref, err := n.WritePayload(ctx, data)
		return []uint64{ref}, err
	})
	f.native.Export("native_subscribe", func(_ context.Context, _ *testutil.FakeNative, args []uint64) ([]uint64, error) {
		subscribed = append(subscribed, args[0])
		return nil, nil
	})
	f.native.Export("native_subscribe_once", func(_ context.Context, _ *testutil.FakeNative, args []uint64) ([]uint64, error) {
		subscribed = append(subscribed, args[0])
		return nil, nil
	})
	f.native.Export("native_fire", func(ctx context.Context, n *testutil.FakeNative, args []uint64) ([]uint64, error) {
		var event string
		if err := f.readArg(ctx, n, args[0], entities.String, &event); err != nil {
			return nil, err
		}
		tuple, err := f.codec.EncodeTuple(listenerIface.Methods[0].Params, event)
		if err != nil {
			return nil, err
		}
		for _, h := range subscribed {
			f.dispatcher.Dispatch(ctx, h, 0, tuple)
		}
		return nil, nil
	})
	f.native.Export("native_current", func(context.Context, *testutil.FakeNative, []uint64) ([]uint64, error) {
		if len(subscribed) == 0 {
			return []uint64{0}, nil
		}
		return []uint64{subscribed[len(subscribed)-1]}, nil
	})
}

func (f *fixture) readArg(ctx context.Context, n *testutil.FakeNative, ref uint64, schema *entities.Schema, dst any) error {
	data, err := n.ReadPayload(ctx, ref)
	if err != nil {
		return err
	}
	return f.codec.Decode(data, schema, dst)
}

func (f *fixture) writeResult(ctx context.Context, n *testutil.FakeNative, v any, schema *entities.Schema) ([]uint64, error) {
	data, err := f.codec.Encode(v, schema)
	if err != nil {
		return nil, err
	}
	ref, err := n.WritePayload(ctx, data)
	return []uint64{ref}, err
}

func TestTable_Scalars(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	sum, err := Call[int32](context.Background(), f.table, "add", int32(2), int32(40))
	require.NoError(t, err)
	assert.Equal(t, int32(42), sum)

	sum, err = Call[int32](context.Background(), f.table, "add", int32(-5), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), sum)
}

func TestTable_BoolsCrossAsCanonicalWords(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	got, err := Call[bool](context.Background(), f.table, "negate", false)
	require.NoError(t, err)
	assert.True(t, got, "nonzero result word decodes to true")

	got, err = Call[bool](context.Background(), f.table, "negate", true)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestTable_Aggregates(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	joined, err := Call[string](context.Background(), f.table, "join", []string{"Hello", "world"}, " ")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", joined)

	joined, err = Call[string](context.Background(), f.table, "join", []string(nil), ",")
	require.NoError(t, err)
	assert.Empty(t, joined)

	assert.Zero(t, f.native.Live(), "argument and result payloads are freed")
}

func TestTable_StructRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	in := sample{A: 1, B: 2, C: 3, D: 4, E: 5, F: 6, Name: "Hello world", Flag: false, Ratio: 1.5, Total: 99.25}
	out, err := Call[sample](context.Background(), f.table, "echo_sample", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Zero(t, f.native.Live())
}

func TestTable_RangeErrorBeforeNativeCall(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	_, err := Call[int32](context.Background(), f.table, "add", int64(1)<<40, 1)
	testutil.RequireErrorIs(t, err, domainerrors.ErrRange)
	assert.Empty(t, f.native.Calls())

	_, err = Call[string](context.Background(), f.table, "join", []string{"ok"}, "bad \xff")
	testutil.RequireErrorIs(t, err, domainerrors.ErrRange)
	assert.Empty(t, f.native.Calls())
	assert.Zero(t, f.native.Live(), "payload written before the failure is freed")
}

func TestTable_NullSentinel(t *testing.T) {
	f := newFixture(t)
	f.native.Export("native_join", func(context.Context, *testutil.FakeNative, []uint64) ([]uint64, error) {
		return []uint64{abi.Null}, nil
	})
	f.native.SetLastError("separator must not be empty")

	_, err := Call[string](context.Background(), f.table, "join", []string{"a"}, "")
	testutil.RequireErrorIs(t, err, domainerrors.ErrNativeCall)

	var nativeErr *domainerrors.NativeCallError
	require.True(t, errors.As(err, &nativeErr))
	assert.Equal(t, "join", nativeErr.Function)
	assert.Equal(t, "native_join", nativeErr.Entry)
	assert.Equal(t, "separator must not be empty", nativeErr.Diagnostic)
}

func TestTable_Trap(t *testing.T) {
	f := newFixture(t)
	trap := errors.New("wasm error: unreachable")
	f.native.Export("native_add", func(context.Context, *testutil.FakeNative, []uint64) ([]uint64, error) {
		return nil, trap
	})

	_, err := Call[int32](context.Background(), f.table, "add", 1, 2)
	testutil.RequireErrorIs(t, err, domainerrors.ErrNativeCall)
	assert.ErrorIs(t, err, trap)
}

func TestTable_UndecodableResult(t *testing.T) {
	f := newFixture(t)
	f.native.Export("native_join", func(ctx context.Context, n *testutil.FakeNative, _ []uint64) ([]uint64, error) {
		ref, err := n.WritePayload(ctx, []byte(`{"not":"a string"}`))
		return []uint64{ref}, err
	})

	_, err := Call[string](context.Background(), f.table, "join", []string{"a"}, ",")
	testutil.RequireErrorIs(t, err, domainerrors.ErrNativeCall)
	assert.ErrorIs(t, err, domainerrors.ErrSchemaMismatch)
	assert.Zero(t, f.native.Live())
}

func TestTable_CallbacksStayRegistered(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)
	ctx := context.Background()

	l := &listener{}
	require.NoError(t, f.table.Call(ctx, "subscribe", nil, l))
	assert.Equal(t, 1, f.registry.Len(), "not released on the caller's behalf")

	require.NoError(t, f.table.Call(ctx, "fire", nil, "first"))
	require.NoError(t, f.table.Call(ctx, "fire", nil, "second"))
	assert.Equal(t, []string{"first", "second"}, l.events)
}

func TestTable_OneShotCallback(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)
	ctx := context.Background()

	l := &listener{}
	require.NoError(t, f.table.Call(ctx, "subscribe_once", nil, l))
	require.Equal(t, 1, f.registry.Len())

	require.NoError(t, f.table.Call(ctx, "fire", nil, "only"))
	require.NoError(t, f.table.Call(ctx, "fire", nil, "ignored"))

	assert.Equal(t, []string{"only"}, l.events)
	assert.Equal(t, 0, f.registry.Len())
}

func TestTable_ExistingHandleArgument(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)
	ctx := context.Background()

	l := &listener{}
	h, err := f.registry.Register(l, listenerIface)
	require.NoError(t, err)

	require.NoError(t, f.table.Call(ctx, "subscribe", nil, h))
	assert.Equal(t, 1, f.registry.Len(), "no second registration")

	f.registry.Release(h)
	err = f.table.Call(ctx, "subscribe", nil, h)
	testutil.RequireErrorIs(t, err, domainerrors.ErrUnknownHandle)
}

func TestTable_MarshalFailureReleasesRegistrations(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	err := f.table.Call(context.Background(), "subscribe_tagged", nil, &listener{}, 1000)
	testutil.RequireErrorIs(t, err, domainerrors.ErrRange)
	assert.Equal(t, 0, f.registry.Len())
	assert.Empty(t, f.native.Calls())
}

func TestTable_CallbackResult(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)
	ctx := context.Background()

	l := &listener{}
	require.NoError(t, f.table.Call(ctx, "subscribe", nil, l))

	got, err := Call[*listener](ctx, f.table, "current")
	require.NoError(t, err)
	assert.Same(t, l, got)

	h, err := Call[entities.Handle](ctx, f.table, "current")
	require.NoError(t, err)
	assert.True(t, h.Valid())

	f.registry.Release(h)
	_, err = Call[*listener](ctx, f.table, "current")
	testutil.RequireErrorIs(t, err, domainerrors.ErrUnknownHandle)
}

func TestTable_Bind(t *testing.T) {
	native := testutil.NewFakeNative()
	table, err := NewTable(native, registry.NewRegistry(), WithEntryPrefix("demo_"))
	require.NoError(t, err)

	require.NoError(t, table.Bind(entities.Function{Name: "ping"}))
	b, ok := table.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "demo_ping", b.Function().Entry)
	assert.Same(t, entities.Void, b.Function().Result)

	err = table.Bind(entities.Function{Name: "ping"})
	assert.ErrorContains(t, err, "already bound")

	err = table.Bind(entities.Function{Name: "a"}, entities.Function{Name: "a"})
	assert.ErrorContains(t, err, "duplicate")

	err = table.Bind(entities.Function{Name: "bad", Params: []entities.Param{{Name: "x", Schema: entities.I32, OneShot: true}}})
	assert.Error(t, err)

	assert.Equal(t, []string{"ping"}, table.Names())
}

func TestTable_CallErrors(t *testing.T) {
	f := newFixture(t)
	f.installNative(t)

	err := f.table.Call(context.Background(), "missing", nil)
	assert.ErrorContains(t, err, "no bound function")

	err = f.table.Call(context.Background(), "add", nil, 1)
	assert.ErrorContains(t, err, "expects 2 arguments")
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(nil, registry.NewRegistry())
	assert.Error(t, err)

	_, err = NewTable(testutil.NewFakeNative(), nil)
	assert.Error(t, err)
}
