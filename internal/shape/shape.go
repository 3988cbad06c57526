// Package shape propagates tensor shapes through a layer sequence.
//
// Propagation is eager: the first layer whose rule rejects its input stops
// the walk. A leading Unknown dimension is the batch axis. It is removed
// before each rule runs, so rules only ever see per-sample shapes, and put
// back on the result of every rule except Dense and Output, whose output is
// (units,) whatever came in. The designated Output layer's entry therefore
// equals the model's OutputShape.
package shape

import (
	"fmt"
	"math"

	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// Stage names shape propagation in UnsupportedLayerError.
const Stage = "shape"

// InvalidShapeError reports a layer whose rule cannot accept its input.
type InvalidShapeError struct {
	LayerKind string
	Reason    string
	Shape     ir.Shape
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("%s: invalid input shape %s: %s", e.LayerKind, e.Shape, e.Reason)
}

type rule func(in ir.Shape, l ir.LayerSpec) (ir.Shape, error)

var rules = map[string]rule{
	"Conv2D":       conv2D,
	"MaxPooling2D": maxPool2D,
	"Flatten":      flatten,
	"Dense":        Units,
	"Output":       Units,
	"Dropout":      passthrough,
}

// replacesShape marks rules whose output ignores the incoming shape,
// batch axis included.
var replacesShape = map[string]bool{
	"Dense":  true,
	"Output": true,
}

// Supported reports whether kind has a built-in rule.
func Supported(kind string) bool {
	_, ok := rules[kind]
	return ok
}

// Propagate returns the output shape of every layer in order. The result
// has exactly one entry per layer.
func Propagate(input ir.Shape, layers []ir.LayerSpec, reg *plugin.Registry) ([]ir.Shape, error) {
	history := make([]ir.Shape, 0, len(layers))
	cur := input
	for _, l := range layers {
		next, err := Step(cur, l, reg)
		if err != nil {
			return nil, err
		}
		history = append(history, next)
		cur = next
	}
	return history, nil
}

// PropagateModel propagates m's input shape through m's layers.
func PropagateModel(m *ir.Model, reg *plugin.Registry) ([]ir.Shape, error) {
	return Propagate(m.InputShape, m.Layers, reg)
}

// Step applies the rule for one layer. Registered plugins take precedence
// over the built-in rules.
func Step(in ir.Shape, l ir.LayerSpec, reg *plugin.Registry) (ir.Shape, error) {
	sample, batched := splitBatch(in)

	var (
		out ir.Shape
		err error
	)
	if p, ok := reg.Lookup(l.Kind); ok {
		if p.Shape == nil {
			return nil, &ir.UnsupportedLayerError{Kind: l.Kind, Stage: Stage}
		}
		out, err = p.Shape(sample, l)
	} else if r, ok := rules[l.Kind]; ok {
		out, err = r(sample, l)
		batched = batched && !replacesShape[l.Kind]
	} else {
		return nil, &ir.UnsupportedLayerError{Kind: l.Kind, Stage: Stage}
	}
	if err != nil {
		return nil, err
	}

	if batched {
		return append(ir.Shape{ir.Unknown}, out...), nil
	}
	return out, nil
}

func splitBatch(s ir.Shape) (ir.Shape, bool) {
	if len(s) > 0 && !s[0].Known() {
		return s[1:].Clone(), true
	}
	return s.Clone(), false
}

func invalid(l ir.LayerSpec, in ir.Shape, format string, args ...any) error {
	return &InvalidShapeError{LayerKind: l.Kind, Reason: fmt.Sprintf(format, args...), Shape: in}
}

// dims builds a result shape, rejecting negative sizes. Unknown is never
// produced this way: a negative size is a bad parameter, not a batch axis.
func dims(l ir.LayerSpec, in ir.Shape, sizes ...int64) (ir.Shape, error) {
	out := make(ir.Shape, len(sizes))
	for i, n := range sizes {
		if n < 0 {
			return nil, invalid(l, in, "nonsensical dimension %d", n)
		}
		out[i] = ir.Dim(n)
	}
	return out, nil
}

// spatial checks that in is (h, w, c) with known height and width.
func spatial(in ir.Shape, l ir.LayerSpec) (h, w int64, err error) {
	if in.Rank() != 3 {
		return 0, 0, invalid(l, in, "expected rank 3 (height, width, channels), got rank %d", in.Rank())
	}
	if !in[0].Known() || !in[1].Known() {
		return 0, 0, invalid(l, in, "spatial dimensions must be known")
	}
	return int64(in[0]), int64(in[1]), nil
}

func conv2D(in ir.Shape, l ir.LayerSpec) (ir.Shape, error) {
	p, err := ir.DecodeConv2D(l)
	if err != nil {
		return nil, err
	}
	h, w, err := spatial(in, l)
	if err != nil {
		return nil, err
	}
	if p.KernelH > h || p.KernelW > w {
		return nil, invalid(l, in, "kernel %dx%d larger than input %dx%d", p.KernelH, p.KernelW, h, w)
	}
	return dims(l, in, h-p.KernelH+1, w-p.KernelW+1, p.Filters)
}

func maxPool2D(in ir.Shape, l ir.LayerSpec) (ir.Shape, error) {
	p, err := ir.DecodePool2D(l)
	if err != nil {
		return nil, err
	}
	h, w, err := spatial(in, l)
	if err != nil {
		return nil, err
	}
	if p.PoolH <= 0 || p.PoolW <= 0 {
		return nil, invalid(l, in, "pool size %dx%d must be positive", p.PoolH, p.PoolW)
	}
	// strides and padding only reach the generated code.
	return ir.Shape{ir.Dim(h / p.PoolH), ir.Dim(w / p.PoolW), in[2]}, nil
}

func flatten(in ir.Shape, l ir.LayerSpec) (ir.Shape, error) {
	n := int64(1)
	for _, d := range in {
		if !d.Known() {
			return nil, invalid(l, in, "cannot flatten an unknown dimension")
		}
		if d != 0 && n > math.MaxInt64/int64(d) {
			return nil, invalid(l, in, "flattened size overflows int64")
		}
		n *= int64(d)
	}
	return ir.Shape{ir.Dim(n)}, nil
}

// Units is the Dense rule: (units,) from l's units parameter, rejecting a
// negative count. in is only used for error reporting.
func Units(in ir.Shape, l ir.LayerSpec) (ir.Shape, error) {
	p, err := ir.DecodeDense(l)
	if err != nil {
		return nil, err
	}
	return dims(l, in, p.Units)
}

func passthrough(in ir.Shape, _ ir.LayerSpec) (ir.Shape, error) {
	return in, nil
}
