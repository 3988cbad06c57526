// Package compiler lowers a parsed syntax tree into the canonical IR.
//
// The transformer is a pure, single-pass function of the tree and an
// explicitly supplied plugin registry. It never logs, never touches global
// state and returns the first error it finds.
package compiler

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// DefaultOutput is the output layer synthesized for networks that do not
// declare one.
func DefaultOutput() ir.LayerSpec {
	return ir.LayerSpec{
		Kind:   "Output",
		Params: ir.MapOf(ir.P("units", ir.Int(1)), ir.P("activation", ir.Str("linear"))),
	}
}

// Result holds the canonical form of one parsed tree. Exactly one field is
// set, matching the tree's start symbol.
type Result struct {
	Model    *ir.Model
	Layer    *ir.LayerSpec
	Research *ir.ResearchReport
}

// Compile parses src with g and transforms the tree.
func Compile(g *grammar.Grammar, src string, start grammar.StartSymbol, reg *plugin.Registry) (*Result, error) {
	tree, err := g.Parse(src, start)
	if err != nil {
		return nil, err
	}
	return Transform(tree, reg)
}

// Transform lowers tree into its canonical record.
func Transform(tree *grammar.Tree, reg *plugin.Registry) (*Result, error) {
	switch {
	case tree.Network != nil:
		m, err := TransformNetwork(tree.Network, reg)
		if err != nil {
			return nil, err
		}
		return &Result{Model: m}, nil
	case tree.Layer != nil:
		l, err := TransformLayer(tree.Layer, reg)
		if err != nil {
			return nil, &CompileError{Field: "layer", Pos: tree.Layer.Pos, Err: err}
		}
		return &Result{Layer: &l}, nil
	case tree.Research != nil:
		r, err := TransformResearch(tree.Research)
		if err != nil {
			return nil, err
		}
		return &Result{Research: r}, nil
	default:
		return nil, fmt.Errorf("empty syntax tree for start symbol %v", tree.Start)
	}
}

// TransformNetwork assembles a Model from a network declaration.
func TransformNetwork(decl *grammar.NetworkDecl, reg *plugin.Registry) (*ir.Model, error) {
	m := &ir.Model{
		Name: decl.Name,
		Loss: grammar.Unquote(decl.Loss),
	}

	input, err := inputShape(decl.Input)
	if err != nil {
		return nil, err
	}
	m.InputShape = input

	m.Layers = make([]ir.LayerSpec, 0, len(decl.Layers)+1)
	for i, call := range decl.Layers {
		l, err := TransformLayer(call, reg)
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("layers[%d]", i), Pos: call.Pos, Err: err}
		}
		m.Layers = append(m.Layers, l)
	}

	out, found := lastOutput(m.Layers)
	if !found {
		out = DefaultOutput()
		m.Layers = append(m.Layers, out)
	}
	m.OutputLayer = out

	units, ok := out.Param("units")
	if !ok {
		return nil, &CompileError{
			Field: "output_layer",
			Pos:   decl.Pos,
			Err:   &ir.MissingParameterError{LayerKind: out.Kind, Parameter: "units"},
		}
	}
	n, ok := ir.AsInt(units)
	if !ok || n < 0 {
		return nil, &CompileError{
			Field: "output_layer",
			Pos:   decl.Pos,
			Err:   &ir.InvalidParameterError{LayerKind: out.Kind, Parameter: "units", Reason: "must be a non-negative integer"},
		}
	}
	m.OutputShape = ir.Shape{ir.Dim(n)}

	if m.Optimizer, err = transformOptimizer(decl.Optimizer); err != nil {
		return nil, err
	}
	if decl.Train != nil {
		if m.Training, err = transformTraining(decl.Train); err != nil {
			return nil, err
		}
	}
	if decl.Execution != nil {
		m.Execution = &ir.ExecutionConfig{Device: grammar.Unquote(decl.Execution.Device)}
	}
	return m, nil
}

func lastOutput(layers []ir.LayerSpec) (ir.LayerSpec, bool) {
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].Kind == "Output" {
			return layers[i], true
		}
	}
	return ir.LayerSpec{}, false
}

func inputShape(in *grammar.InputDecl) (ir.Shape, error) {
	s := make(ir.Shape, len(in.Dims))
	for i, d := range in.Dims {
		if d.None {
			s[i] = ir.Unknown
			continue
		}
		if *d.Size < 0 {
			return nil, &CompileError{
				Field: fmt.Sprintf("input[%d]", i),
				Pos:   d.Pos,
				Err:   fmt.Errorf("dimension must be non-negative or None, got %d", *d.Size),
			}
		}
		s[i] = ir.Dim(*d.Size)
	}
	return s, nil
}

func transformOptimizer(decl *grammar.OptimizerDecl) (ir.Optimizer, error) {
	opt := ir.Optimizer{Name: grammar.Unquote(decl.Name)}
	if !decl.Called {
		return opt, nil
	}
	items, err := convertArgs(decl.Args)
	if err != nil {
		return opt, &CompileError{Field: "optimizer", Pos: decl.Pos, Err: err}
	}
	params, err := ir.BindArgs(opt.Name, optimizerSlots, items)
	if err == nil {
		err = checkFields(opt.Name, params)
	}
	if err != nil {
		return opt, &CompileError{Field: "optimizer", Pos: decl.Pos, Err: err}
	}
	opt.Params = params
	return opt, nil
}

func transformTraining(block *grammar.TrainBlock) (*ir.TrainingConfig, error) {
	tc := &ir.TrainingConfig{}
	for _, e := range block.Entries {
		v, err := convertValue(e.Value)
		if err != nil {
			return nil, &CompileError{Field: "train." + e.Key, Pos: e.Pos, Err: err}
		}
		switch e.Key {
		case "epochs":
			n, ok := ir.AsInt(v)
			if !ok {
				return nil, trainError(e, "must be an integer, got "+v.String())
			}
			tc.Epochs = &n
		case "batch_size":
			if !isBatchSize(v) {
				return nil, trainError(e, "must be an integer or a list of integers, got "+v.String())
			}
			tc.BatchSize = v
		default:
			if tc.Extra == nil {
				tc.Extra = ir.NewMap()
			}
			tc.Extra.Set(e.Key, v)
		}
	}
	return tc, nil
}

func isBatchSize(v ir.Value) bool {
	if _, ok := v.(ir.Int); ok {
		return true
	}
	if l, ok := v.(ir.List); ok {
		_, ok := ir.AsInts(l)
		return ok && len(l) > 0
	}
	return false
}

func trainError(e *grammar.TrainEntry, reason string) error {
	return &CompileError{
		Field: "train." + e.Key,
		Pos:   e.Pos,
		Err:   &ir.InvalidParameterError{LayerKind: "train", Parameter: e.Key, Reason: reason},
	}
}

// TransformResearch assembles a ResearchReport. Metrics keep declaration
// order; a metric written twice keeps its last value.
func TransformResearch(decl *grammar.ResearchDecl) (*ir.ResearchReport, error) {
	r := &ir.ResearchReport{Name: decl.Name, References: []string{}}
	for _, sec := range decl.Sections {
		switch {
		case sec.Metrics != nil:
			if r.Metrics == nil {
				r.Metrics = ir.NewMap()
			}
			for _, metric := range sec.Metrics.Metrics {
				r.Metrics.Set(metric.Name, ir.Float(numberValue(metric.Value)))
			}
		case sec.References != nil:
			for _, paper := range sec.References.Papers {
				r.References = append(r.References, grammar.Unquote(paper))
			}
		}
	}
	return r, nil
}

func numberValue(n *grammar.Number) float64 {
	if n.Float != nil {
		return *n.Float
	}
	return float64(*n.Int)
}

// CompileError locates a transform failure in the source.
// The underlying typed error is available through errors.As.
type CompileError struct {
	Field string
	Pos   lexer.Position
	Err   error
}

func (e *CompileError) Error() string {
	if e.Pos.Line > 0 {
		prefix := ""
		if e.Pos.Filename != "" {
			prefix = e.Pos.Filename + ":"
		}
		return fmt.Sprintf("%s%d:%d: %s: %v", prefix, e.Pos.Line, e.Pos.Column, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error { return e.Err }
