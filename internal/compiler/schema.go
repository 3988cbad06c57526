package compiler

import (
	"fmt"

	"github.com/roach88/neuraldsl/internal/ir"
)

// fieldType is the declared type of a built-in layer parameter.
type fieldType int

const (
	anyField    fieldType = iota
	intField              // Int
	numberField           // Int or Float
	floatField            // Float literal only, so Dropout(2) is rejected
	stringField           // Str
	boolField             // Bool
	sizeField             // Int, or a tuple/list of Ints
	dimsField             // tuple/list of Ints and None
)

func (f fieldType) describe() string {
	switch f {
	case intField:
		return "an integer"
	case numberField:
		return "a number"
	case floatField:
		return "a float literal"
	case stringField:
		return "a string"
	case boolField:
		return "a boolean"
	case sizeField:
		return "an integer or a tuple of integers"
	case dimsField:
		return "a tuple of dimensions"
	default:
		return "any value"
	}
}

func (f fieldType) accepts(v ir.Value) bool {
	switch f {
	case intField:
		_, ok := v.(ir.Int)
		return ok
	case numberField:
		_, ok := ir.AsNumber(v)
		return ok
	case floatField:
		_, ok := v.(ir.Float)
		return ok
	case stringField:
		_, ok := v.(ir.Str)
		return ok
	case boolField:
		_, ok := v.(ir.Bool)
		return ok
	case sizeField:
		if _, ok := v.(ir.Int); ok {
			return true
		}
		_, ok := ir.AsInts(v)
		return ok
	case dimsField:
		return isDims(v)
	default:
		return true
	}
}

func isDims(v ir.Value) bool {
	var elems []ir.Value
	switch s := v.(type) {
	case ir.Tuple:
		elems = s
	case ir.List:
		elems = s
	default:
		return false
	}
	for _, e := range elems {
		switch e.(type) {
		case ir.Int, ir.None:
		default:
			return false
		}
	}
	return true
}

// fieldTypes types every parameter name a built-in kind may carry.
// Names not listed are accepted with any value.
var fieldTypes = map[string]fieldType{
	"units":                intField,
	"filters":              intField,
	"kernel_size":          sizeField,
	"strides":              sizeField,
	"pool_size":            sizeField,
	"output_size":          sizeField,
	"dilation_rate":        sizeField,
	"padding":              stringField,
	"activation":           stringField,
	"recurrent_activation": stringField,
	"rate":                 floatField,
	"dropout":              floatField,
	"recurrent_dropout":    floatField,
	"stddev":               numberField,
	"momentum":             numberField,
	"epsilon":              numberField,
	"learning_rate":        numberField,
	"return_sequences":     boolField,
	"return_state":         boolField,
	"use_bias":             boolField,
	"num_heads":            intField,
	"key_dim":              intField,
	"ff_dim":               intField,
	"input_dim":            intField,
	"output_dim":           intField,
	"groups":               intField,
	"axis":                 intField,
	"n":                    intField,
	"function":             stringField,
	"layer":                stringField,
	"merge_mode":           stringField,
	"custom_dims":          dimsField,
	"target_shape":         dimsField,
}

var (
	denseSlots   = []string{"units", "activation"}
	convSlots    = []string{"filters", "kernel_size", "activation"}
	poolSlots    = []string{"pool_size", "strides", "padding"}
	dropoutSlots = []string{"rate"}
	rnnSlots     = []string{"units"}
)

// slotTable maps each built-in kind to its positional slot order. Kinds
// with a nil entry are built in but take named arguments only.
var slotTable = map[string][]string{
	// Core
	"Dense":        denseSlots,
	"Output":       denseSlots,
	"Flatten":      nil,
	"Activation":   {"activation"},
	"Lambda":       {"function"},
	"CustomShape":  {"layer", "custom_dims"},
	"Reshape":      {"target_shape"},
	"Permute":      {"dims"},
	"RepeatVector": {"n"},

	// Convolution
	"Conv1D":          convSlots,
	"Conv2D":          convSlots,
	"Conv3D":          convSlots,
	"Conv1DTranspose": convSlots,
	"Conv2DTranspose": convSlots,
	"Conv3DTranspose": convSlots,
	"DepthwiseConv1D": convSlots,
	"DepthwiseConv2D": convSlots,
	"SeparableConv1D": convSlots,
	"SeparableConv2D": convSlots,
	"ConvLSTM2D":      convSlots,

	// Pooling
	"MaxPooling1D":             poolSlots,
	"MaxPooling2D":             poolSlots,
	"MaxPooling3D":             poolSlots,
	"AveragePooling1D":         poolSlots,
	"AveragePooling2D":         poolSlots,
	"AveragePooling3D":         poolSlots,
	"GlobalMaxPooling1D":       nil,
	"GlobalMaxPooling2D":       nil,
	"GlobalMaxPooling3D":       nil,
	"GlobalAveragePooling1D":   nil,
	"GlobalAveragePooling2D":   nil,
	"GlobalAveragePooling3D":   nil,
	"AdaptiveMaxPooling1D":     {"output_size"},
	"AdaptiveMaxPooling2D":     {"output_size"},
	"AdaptiveMaxPooling3D":     {"output_size"},
	"AdaptiveAveragePooling1D": {"output_size"},
	"AdaptiveAveragePooling2D": {"output_size"},
	"AdaptiveAveragePooling3D": {"output_size"},

	// Normalization
	"BatchNormalization":    nil,
	"LayerNormalization":    nil,
	"InstanceNormalization": nil,
	"GroupNormalization":    {"groups"},

	// Recurrent
	"LSTM":          rnnSlots,
	"GRU":           rnnSlots,
	"SimpleRNN":     rnnSlots,
	"LSTMCell":      rnnSlots,
	"GRUCell":       rnnSlots,
	"SimpleRNNCell": rnnSlots,

	// Dropout and noise
	"Dropout":          dropoutSlots,
	"SpatialDropout1D": dropoutSlots,
	"SpatialDropout2D": dropoutSlots,
	"SpatialDropout3D": dropoutSlots,
	"GaussianDropout":  dropoutSlots,
	"AlphaDropout":     dropoutSlots,
	"GaussianNoise":    {"stddev"},

	// Attention and composite blocks
	"Attention":          nil,
	"MultiHeadAttention": {"num_heads", "key_dim"},
	"TransformerEncoder": {"num_heads", "ff_dim"},
	"TransformerDecoder": {"num_heads", "ff_dim"},
	"ResidualConnection": nil,
	"Inception":          nil,
	"CapsuleLayer":       nil,
	"SqueezeExcitation":  nil,
	"GraphConv":          {"units"},
	"GraphAttention":     {"units"},
	"Embedding":          {"input_dim", "output_dim"},

	// Merge
	"Add":         nil,
	"Subtract":    nil,
	"Multiply":    nil,
	"Average":     nil,
	"Maximum":     nil,
	"Minimum":     nil,
	"Concatenate": {"axis"},
	"Dot":         {"axes"},

	// Regularization
	"ActivityRegularization": nil,
}

// wrapperKinds take a layer call as their first argument.
var wrapperKinds = map[string]bool{
	"TimeDistributed": true,
	"Bidirectional":   true,
}

// optimizerSlots is the positional order for optimizer arguments.
var optimizerSlots = []string{"learning_rate"}

// IsBuiltin reports whether kind has a built-in slot table entry.
func IsBuiltin(kind string) bool {
	_, ok := slotTable[kind]
	return ok || wrapperKinds[kind]
}

// checkFields validates every typed parameter of a built-in kind.
func checkFields(kind string, params *ir.ParamMap) error {
	for _, name := range params.Keys() {
		ft, typed := fieldTypes[name]
		if !typed {
			continue
		}
		v, _ := params.Get(name)
		if !ft.accepts(v) {
			return &ir.InvalidParameterError{
				LayerKind: kind,
				Parameter: name,
				Reason:    fmt.Sprintf("must be %s, got %s", ft.describe(), v.String()),
			}
		}
	}
	return nil
}
