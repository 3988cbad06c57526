package compiler

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

func compileLayer(t *testing.T, src string, reg *plugin.Registry) (ir.LayerSpec, error) {
	t.Helper()
	res, err := Compile(grammar.Default(), src, grammar.Layer, reg)
	if err != nil {
		return ir.LayerSpec{}, err
	}
	require.NotNil(t, res.Layer)
	return *res.Layer, nil
}

func mustLayer(t *testing.T, src string) ir.LayerSpec {
	t.Helper()
	l, err := compileLayer(t, src, nil)
	require.NoError(t, err)
	return l
}

func TestTransformLayerTable(t *testing.T) {
	tests := []struct {
		src  string
		want ir.LayerSpec
	}{
		{
			`Dense(128, "relu")`,
			ir.LayerSpec{Kind: "Dense", Params: ir.MapOf(ir.P("units", ir.Int(128)), ir.P("activation", ir.Str("relu")))},
		},
		{
			`Dense(units=64, activation="tanh")`,
			ir.LayerSpec{Kind: "Dense", Params: ir.MapOf(ir.P("units", ir.Int(64)), ir.P("activation", ir.Str("tanh")))},
		},
		{
			`Conv2D(32, (3, 3), "relu")`,
			ir.LayerSpec{Kind: "Conv2D", Params: ir.MapOf(
				ir.P("filters", ir.Int(32)),
				ir.P("kernel_size", ir.Tuple{ir.Int(3), ir.Int(3)}),
				ir.P("activation", ir.Str("relu")),
			)},
		},
		{
			`MaxPooling2D((2, 2), 2, "valid")`,
			ir.LayerSpec{Kind: "MaxPooling2D", Params: ir.MapOf(
				ir.P("pool_size", ir.Tuple{ir.Int(2), ir.Int(2)}),
				ir.P("strides", ir.Int(2)),
				ir.P("padding", ir.Str("valid")),
			)},
		},
		{`Flatten()`, ir.LayerSpec{Kind: "Flatten"}},
		{`Dropout(0.5)`, ir.LayerSpec{Kind: "Dropout", Params: ir.MapOf(ir.P("rate", ir.Float(0.5)))}},
		{`Dropout(rate=0.25)`, ir.LayerSpec{Kind: "Dropout", Params: ir.MapOf(ir.P("rate", ir.Float(0.25)))}},
		{
			`Output(units=10, activation="softmax")`,
			ir.LayerSpec{Kind: "Output", Params: ir.MapOf(ir.P("units", ir.Int(10)), ir.P("activation", ir.Str("softmax")))},
		},
		{`BatchNormalization()`, ir.LayerSpec{Kind: "BatchNormalization"}},
		{
			`LSTM(64, return_sequences=true)`,
			ir.LayerSpec{Kind: "LSTM", Params: ir.MapOf(ir.P("units", ir.Int(64)), ir.P("return_sequences", ir.Bool(true)))},
		},
		{`Activation("relu")`, ir.LayerSpec{Kind: "Activation", Params: ir.MapOf(ir.P("activation", ir.Str("relu")))}},
		{`Lambda("x: x * 2")`, ir.LayerSpec{Kind: "Lambda", Params: ir.MapOf(ir.P("function", ir.Str("x: x * 2")))}},
		{
			`CustomShape(MyLayer, (32, 32))`,
			ir.LayerSpec{Kind: "CustomShape", Params: ir.MapOf(
				ir.P("layer", ir.Str("MyLayer")),
				ir.P("custom_dims", ir.Tuple{ir.Int(32), ir.Int(32)}),
			)},
		},
		{
			`Embedding(1000, 64)`,
			ir.LayerSpec{Kind: "Embedding", Params: ir.MapOf(ir.P("input_dim", ir.Int(1000)), ir.P("output_dim", ir.Int(64)))},
		},
		{`GaussianNoise(0.1)`, ir.LayerSpec{Kind: "GaussianNoise", Params: ir.MapOf(ir.P("stddev", ir.Float(0.1)))}},
		{
			`TransformerEncoder(num_heads=8, ff_dim=512)`,
			ir.LayerSpec{Kind: "TransformerEncoder", Params: ir.MapOf(ir.P("num_heads", ir.Int(8)), ir.P("ff_dim", ir.Int(512)))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := mustLayer(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TransformLayer(%s) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestPositionalAndNamedMergeToSameParams(t *testing.T) {
	positional := mustLayer(t, `Conv2D(32, (3,3), "relu")`)
	named := mustLayer(t, `Conv2D(filters=32, kernel_size=(3,3), activation="relu")`)

	assert.True(t, positional.Params.Equal(named.Params))
	assert.Equal(t, ir.MustModelHash(&ir.Model{Layers: []ir.LayerSpec{positional}}),
		ir.MustModelHash(&ir.Model{Layers: []ir.LayerSpec{named}}))
}

func TestNamedOverridesPositional(t *testing.T) {
	l := mustLayer(t, `Conv2D(filters=32, kernel_size=3, activation="relu", padding="same")`)

	want := ir.MapOf(
		ir.P("filters", ir.Int(32)),
		ir.P("kernel_size", ir.Int(3)),
		ir.P("activation", ir.Str("relu")),
		ir.P("padding", ir.Str("same")),
	)
	assert.True(t, want.Equal(l.Params))
	assert.Equal(t, want.Keys(), l.Params.Keys())

	l = mustLayer(t, `Dense(128, units=64)`)
	units, _ := l.Param("units")
	assert.Equal(t, ir.Int(64), units)
}

func TestTransformIsDeterministic(t *testing.T) {
	src := `TimeDistributed(Conv2D(32, (3, 3)), rate=0.5)`

	first := mustLayer(t, src)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, mustLayer(t, src)); diff != "" {
			t.Fatalf("repeated transform differs:\n%s", diff)
		}
	}
}

func TestWrapperMergesParams(t *testing.T) {
	l := mustLayer(t, `TimeDistributed(Dense(128, activation="relu"), dropout=0.5)`)

	assert.Equal(t, "TimeDistributed(Dense)", l.Kind)
	want := ir.MapOf(
		ir.P("units", ir.Int(128)),
		ir.P("activation", ir.Str("relu")),
		ir.P("dropout", ir.Float(0.5)),
	)
	assert.True(t, want.Equal(l.Params), "got %s", l.Params)
}

func TestWrapperOwnParamsWin(t *testing.T) {
	l := mustLayer(t, `Bidirectional(LSTM(64, activation="tanh"), activation="relu", merge_mode="concat")`)

	assert.Equal(t, "Bidirectional(LSTM)", l.Kind)
	act, _ := l.Param("activation")
	assert.Equal(t, ir.Str("relu"), act)
}

func TestWrapperOfArgumentlessLayerKeepsNullParams(t *testing.T) {
	l := mustLayer(t, `TimeDistributed(Flatten())`)

	assert.Equal(t, "TimeDistributed(Flatten)", l.Kind)
	assert.Nil(t, l.Params)
}

func TestWrapperRequiresLayerCall(t *testing.T) {
	for _, src := range []string{`TimeDistributed()`, `TimeDistributed(128)`, `TimeDistributed(layer=Dense(1))`, `Bidirectional(LSTM)`} {
		t.Run(src, func(t *testing.T) {
			_, err := compileLayer(t, src, nil)
			var ipe *ir.InvalidParameterError
			require.True(t, errors.As(err, &ipe), "got %v", err)
			assert.Equal(t, "layer", ipe.Parameter)
		})
	}
}

func TestUnknownIdentifierIsCustomLayer(t *testing.T) {
	l := mustLayer(t, `MyCustomLayer(alpha=0.1)`)

	want := ir.LayerSpec{Kind: "MyCustomLayer", Params: ir.MapOf(ir.P("alpha", ir.Float(0.1)))}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomLayerPositionalArgs(t *testing.T) {
	l := mustLayer(t, `MyBlock(3, "x", depth=2)`)

	args, ok := l.Param("args")
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.List{ir.Int(3), ir.Str("x")}, args))
	depth, _ := l.Param("depth")
	assert.Equal(t, ir.Int(2), depth)

	empty := mustLayer(t, `MyBlock()`)
	assert.Nil(t, empty.Params)
}

func TestNestedCallValueBecomesMap(t *testing.T) {
	l := mustLayer(t, `MyRouter(branch=Dense(32, activation="relu"))`)

	branch, ok := l.Param("branch")
	require.True(t, ok)
	want := ir.MapOf(
		ir.P("type", ir.Str("Dense")),
		ir.P("activation", ir.Str("relu")),
		ir.P("args", ir.List{ir.Int(32)}),
	)
	assert.True(t, ir.Equal(want, branch), "got %s", branch)
}

func TestParenthesizedScalarIsNotATuple(t *testing.T) {
	l := mustLayer(t, `MyBlock(size=(3), pair=(3,), grid=(3, 3))`)

	size, _ := l.Param("size")
	assert.Equal(t, ir.Int(3), size)
	pair, _ := l.Param("pair")
	assert.True(t, ir.Equal(ir.Tuple{ir.Int(3)}, pair), "got %s", pair)
	grid, _ := l.Param("grid")
	assert.True(t, ir.Equal(ir.Tuple{ir.Int(3), ir.Int(3)}, grid), "got %s", grid)

	conv := mustLayer(t, `Conv2D(filters=8, kernel_size=(3))`)
	kernel, _ := conv.Param("kernel_size")
	assert.Equal(t, ir.Int(3), kernel)
}

func TestInvalidParameters(t *testing.T) {
	tests := []struct {
		src       string
		parameter string
	}{
		{`Dense(units="abc")`, "units"},
		{`Dropout(2)`, "rate"},
		{`Conv2D(32, "3x3")`, "kernel_size"},
		{`LSTM(64, return_sequences="yes")`, "return_sequences"},
		{`CustomShape(MyLayer, ("a", 1))`, "custom_dims"},
		{`TimeDistributed(Dense(10), dropout=1)`, "dropout"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := compileLayer(t, tt.src, nil)
			var ipe *ir.InvalidParameterError
			require.True(t, errors.As(err, &ipe), "want InvalidParameterError, got %v", err)
			assert.Equal(t, tt.parameter, ipe.Parameter)
		})
	}
}

func TestTooManyPositionalArgs(t *testing.T) {
	_, err := compileLayer(t, `Dropout(0.5, 0.2)`, nil)

	var ipe *ir.InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "Dropout", ipe.LayerKind)
}

func TestPluginTakesPrecedence(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.MustRegister(plugin.Plugin{Kind: "QuantumLayer", Slots: []string{"n_qubits", "n_layers"}})
	reg.MustRegister(plugin.Plugin{
		Kind: "Dense",
		Build: func(kind string, args []ir.Arg) (ir.LayerSpec, error) {
			return ir.LayerSpec{Kind: "PluginDense", Params: ir.MapOf(ir.P("n", ir.Int(int64(len(args)))))}, nil
		},
	})
	reg.Freeze()

	l, err := compileLayer(t, `QuantumLayer(4, n_layers=2)`, reg)
	require.NoError(t, err)
	assert.True(t, ir.MapOf(ir.P("n_qubits", ir.Int(4)), ir.P("n_layers", ir.Int(2))).Equal(l.Params))

	l, err = compileLayer(t, `Dense(1, 2, 3)`, reg)
	require.NoError(t, err)
	assert.Equal(t, "PluginDense", l.Kind)
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	src := "network N {\n input: (4,)\n layers:\n  Dense(8)\n  Dropout(3)\n loss: \"mse\"\n optimizer: Adam\n}"

	_, err := Compile(grammar.Default(), src, grammar.Network, nil)
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "layers[1]", ce.Field)
	assert.Equal(t, 5, ce.Pos.Line)

	var ipe *ir.InvalidParameterError
	assert.True(t, errors.As(err, &ipe), "typed error stays reachable")
}

func TestSyntaxErrorPassesThrough(t *testing.T) {
	_, err := Compile(grammar.Default(), `Dense(`, grammar.Layer, nil)

	var se *grammar.SyntaxError
	assert.True(t, errors.As(err, &se))
}
