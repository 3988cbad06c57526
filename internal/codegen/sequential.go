package codegen

import (
	"slices"
	"strings"

	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// kerasLayers maps a layer kind to its class in tf.keras.layers. Kinds
// missing here have no sequential translation.
var kerasLayers = map[string]string{
	"Dense":        "Dense",
	"Output":       "Dense",
	"Flatten":      "Flatten",
	"Activation":   "Activation",
	"Reshape":      "Reshape",
	"Permute":      "Permute",
	"RepeatVector": "RepeatVector",

	"Conv1D":          "Conv1D",
	"Conv2D":          "Conv2D",
	"Conv3D":          "Conv3D",
	"Conv1DTranspose": "Conv1DTranspose",
	"Conv2DTranspose": "Conv2DTranspose",
	"Conv3DTranspose": "Conv3DTranspose",
	"DepthwiseConv1D": "DepthwiseConv1D",
	"DepthwiseConv2D": "DepthwiseConv2D",
	"SeparableConv1D": "SeparableConv1D",
	"SeparableConv2D": "SeparableConv2D",
	"ConvLSTM2D":      "ConvLSTM2D",

	"MaxPooling1D":           "MaxPooling1D",
	"MaxPooling2D":           "MaxPooling2D",
	"MaxPooling3D":           "MaxPooling3D",
	"AveragePooling1D":       "AveragePooling1D",
	"AveragePooling2D":       "AveragePooling2D",
	"AveragePooling3D":       "AveragePooling3D",
	"GlobalMaxPooling1D":     "GlobalMaxPooling1D",
	"GlobalMaxPooling2D":     "GlobalMaxPooling2D",
	"GlobalMaxPooling3D":     "GlobalMaxPooling3D",
	"GlobalAveragePooling1D": "GlobalAveragePooling1D",
	"GlobalAveragePooling2D": "GlobalAveragePooling2D",
	"GlobalAveragePooling3D": "GlobalAveragePooling3D",

	"BatchNormalization": "BatchNormalization",
	"LayerNormalization": "LayerNormalization",
	"GroupNormalization": "GroupNormalization",

	"LSTM":      "LSTM",
	"GRU":       "GRU",
	"SimpleRNN": "SimpleRNN",

	"Dropout":          "Dropout",
	"SpatialDropout1D": "SpatialDropout1D",
	"SpatialDropout2D": "SpatialDropout2D",
	"SpatialDropout3D": "SpatialDropout3D",
	"GaussianDropout":  "GaussianDropout",
	"AlphaDropout":     "AlphaDropout",
	"GaussianNoise":    "GaussianNoise",

	"Embedding":              "Embedding",
	"ActivityRegularization": "ActivityRegularization",
}

// kerasCells are recurrent cells, emitted inside a keras RNN layer.
var kerasCells = map[string]string{
	"LSTMCell":      "LSTMCell",
	"GRUCell":       "GRUCell",
	"SimpleRNNCell": "SimpleRNNCell",
}

// wrapperParams lists the parameters a wrapper keeps for itself. Every
// other merged parameter belongs to the wrapped layer.
var wrapperParams = map[string][]string{
	"TimeDistributed": nil,
	"Bidirectional":   {"merge_mode", "weights", "backward_layer"},
}

func generateSequential(m *ir.Model, reg *plugin.Registry) (string, error) {
	stmts := make([]string, 0, len(m.Layers))
	for _, l := range m.Layers {
		expr, err := kerasLayer(l, reg)
		if err != nil {
			return "", err
		}
		stmts = append(stmts, expr)
	}
	opt := kerasOptimizer(m.Optimizer)

	var w pyWriter
	w.line(0, "import tensorflow as tf")
	w.line(0, "from tensorflow.keras import layers")
	for _, imp := range pluginImports(reg, m, Sequential) {
		w.line(0, imp)
	}
	w.blank()
	w.line(0, "model = tf.keras.Sequential(name=%s)", quote(m.Name))
	w.line(0, "model.add(layers.Input(shape=%s))", Literal(sampleShape(m.InputShape).Value()))
	for _, s := range stmts {
		w.line(0, "model.add(%s)", s)
	}
	w.blank()
	w.line(0, "model.compile(loss=%s, optimizer=%s)", quote(m.Loss), opt)

	if m.Training != nil {
		epochs, batch := trainingDefaults(m.Training)
		w.line(0, "model.fit(x_train, y_train, epochs=%d, batch_size=%d)", epochs, batch)
	}
	return w.String(), nil
}

func kerasLayer(l ir.LayerSpec, reg *plugin.Registry) (string, error) {
	if expr, ok, err := pluginEmit(reg, l, Sequential); ok {
		return expr, err
	}

	if wrapper, inner, ok := splitWrapper(l.Kind); ok {
		own, isWrapper := wrapperParams[wrapper]
		if !isWrapper {
			return "", &ir.UnsupportedLayerError{Kind: l.Kind, Stage: Sequential.Name()}
		}
		innerParams, wrapperOwn := splitParams(l.Params, own)
		innerExpr, err := kerasLayer(ir.LayerSpec{Kind: inner, Params: innerParams}, reg)
		if err != nil {
			return "", err
		}
		return "layers." + wrapper + "(" + joinArgs(innerExpr, Kwargs(wrapperOwn)) + ")", nil
	}

	if l.Kind == "Lambda" {
		fn, _ := l.Param("function")
		body, _ := ir.AsString(fn)
		if !strings.HasPrefix(body, "lambda") {
			body = "lambda " + body
		}
		return "layers.Lambda(" + joinArgs(body, Kwargs(l.Params, "function")) + ")", nil
	}

	if cell, ok := kerasCells[l.Kind]; ok {
		return "layers.RNN(layers." + cell + "(" + Kwargs(l.Params) + "))", nil
	}
	class, ok := kerasLayers[l.Kind]
	if !ok {
		return "", &ir.UnsupportedLayerError{Kind: l.Kind, Stage: Sequential.Name()}
	}
	return "layers." + class + "(" + Kwargs(l.Params) + ")", nil
}

func kerasOptimizer(opt ir.Optimizer) string {
	if opt.Params.Len() == 0 {
		return quote(opt.Name)
	}
	spec := ir.MapOf(
		ir.P("class_name", ir.Str(opt.Name)),
		ir.P("config", opt.Params),
	)
	return "tf.keras.optimizers.get(" + Literal(spec) + ")"
}

// splitParams separates the keys named in own from the rest.
func splitParams(params *ir.Map, own []string) (rest, mine *ir.Map) {
	if params == nil {
		return nil, nil
	}
	rest, mine = ir.NewMap(), ir.NewMap()
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		if slices.Contains(own, k) {
			mine.Set(k, v)
		} else {
			rest.Set(k, v)
		}
	}
	if rest.Len() == 0 {
		rest = nil
	}
	return rest, mine
}

// sampleShape drops a leading batch axis.
func sampleShape(s ir.Shape) ir.Shape {
	if len(s) > 0 && !s[0].Known() {
		return s[1:]
	}
	return s
}
