package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/compiler"
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/ir"
)

func fixtureResult() *Result {
	name := "Study"
	m := &ir.Model{
		Name:       "N",
		InputShape: ir.ShapeOf(4),
		Layers: []ir.LayerSpec{
			{Kind: "Dense", Params: ir.MapOf(ir.P("units", ir.Int(8)), ir.P("activation", ir.Str("relu")))},
			{Kind: "Output", Params: ir.MapOf(ir.P("units", ir.Int(2)))},
		},
		OutputShape: ir.ShapeOf(2),
	}
	res := NewResult()
	res.Trace = []engine.StageEvent{{Step: 1, Stage: "parse", Status: "ok", Detail: "network"}}
	res.Outcome = &engine.Outcome{
		Result: &compiler.Result{Model: m, Research: &ir.ResearchReport{
			Name:    &name,
			Metrics: ir.MapOf(ir.P("accuracy", ir.Float(0.9))),
		}},
		Shapes:   []ir.Shape{ir.ShapeOf(8), ir.ShapeOf(2)},
		Findings: []compiler.ValidationError{{Code: compiler.ErrUnknownDevice}},
		Code: map[string]string{
			"tensorflow": "import tf\nmodel.add(a)\nmodel.add(b)\nmodel.compile()\n",
		},
	}
	return res
}

func TestAssertionsPass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertLayers, Kinds: []string{"Dense", "Output"}},
		{Type: AssertShapes, Shapes: []string{"(8,)", "(2,)"}},
		{Type: AssertOutputShape, Shape: "(2,)"},
		{Type: AssertParam, Layer: 0, Param: "activation", Literal: "'relu'"},
		{Type: AssertCodeContains, Backend: "keras", Text: "model.add(a)"},
		{Type: AssertCodeCount, Backend: "tensorflow", Text: "model.add(", Count: 2},
		{Type: AssertCodeCount, Backend: "tensorflow", Text: "model.fit", Count: 0},
		{Type: AssertCodeOrder, Backend: "tensorflow", Texts: []string{"import tf", "model.add(b)", "model.compile"}},
		{Type: AssertMetric, Metric: "accuracy", Value: 0.9},
		{Type: AssertFindings, Codes: []string{"E215"}},
	}

	assert.Empty(t, EvaluateAssertions(fixtureResult(), assertions))
}

func TestAssertionsFail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"layers", Assertion{Type: AssertLayers, Kinds: []string{"Dense"}}, "layers [Dense Output]"},
		{"shapes", Assertion{Type: AssertShapes, Shapes: []string{"(8,)"}}, "shapes [(8,) (2,)]"},
		{"output shape", Assertion{Type: AssertOutputShape, Shape: "(3,)"}, "output shape (2,)"},
		{"param value", Assertion{Type: AssertParam, Layer: 1, Param: "units", Literal: "3"}, "Output.units = 2"},
		{"param missing", Assertion{Type: AssertParam, Layer: 1, Param: "rate", Literal: "3"}, `has no parameter "rate"`},
		{"layer out of range", Assertion{Type: AssertParam, Layer: 5, Param: "units", Literal: "3"}, "2 layers"},
		{"code missing", Assertion{Type: AssertCodeContains, Backend: "tensorflow", Text: "fit"}, "not found"},
		{"backend not generated", Assertion{Type: AssertCodeContains, Backend: "pytorch", Text: "x"}, "backend was not generated"},
		{"unknown backend", Assertion{Type: AssertCodeContains, Backend: "onnx", Text: "x"}, "unsupported backend"},
		{"count", Assertion{Type: AssertCodeCount, Backend: "tensorflow", Text: "model.add(", Count: 3}, "found 2 times"},
		{"order", Assertion{Type: AssertCodeOrder, Backend: "tensorflow", Texts: []string{"model.compile", "model.add(a)"}}, `"model.add(a)" appears before "model.compile"`},
		{"order missing", Assertion{Type: AssertCodeOrder, Backend: "tensorflow", Texts: []string{"model.fit"}}, "missing: model.fit"},
		{"metric value", Assertion{Type: AssertMetric, Metric: "accuracy", Value: 0.5}, "accuracy = 0.9"},
		{"metric missing", Assertion{Type: AssertMetric, Metric: "recall", Value: 0.5}, "metric not recorded"},
		{"findings", Assertion{Type: AssertFindings}, "findings [E215]"},
		{"no error", Assertion{Type: AssertError, Stage: "shape"}, "compile succeeded"},
		{"unknown", Assertion{Type: "final_state"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(fixtureResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestErrorAssertion(t *testing.T) {
	res := fixtureResult()
	res.CompileErr = &engine.StageError{Code: engine.ErrCodeShape, Stage: "shape", Err: errors.New("Conv2D: invalid input shape (4,)")}

	assert.Empty(t, EvaluateAssertions(res, []Assertion{{Type: AssertError, Stage: "shape", Contains: "invalid input shape"}}))

	errs := EvaluateAssertions(res, []Assertion{{Type: AssertError, Stage: "shape", Contains: "kernel"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `error containing "kernel"`)
}

func TestAssertionsWithoutModel(t *testing.T) {
	res := NewResult()
	res.Outcome = &engine.Outcome{}

	errs := EvaluateAssertions(res, []Assertion{
		{Type: AssertLayers, Kinds: []string{"Dense"}},
		{Type: AssertShapes, Shapes: []string{"(1,)"}},
		{Type: AssertMetric, Metric: "accuracy"},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "no model produced")
	assert.Contains(t, errs[1], "shape propagation did not run")
	assert.Contains(t, errs[2], "no report produced")
}

func TestAssertionErrorIncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertLayers,
		Expected: "layers [Dense]",
		Actual:   "layers []",
		Trace:    []engine.StageEvent{{Step: 1, Stage: "parse", Status: "error", Detail: "unexpected token"}},
	}
	assert.Equal(t,
		"Assertion failed: layers\n  Expected: layers [Dense]\n  Actual: layers []\n\nFull trace:\n  [1] parse error (unexpected token)\n",
		err.Error())
}

func TestResultAccessors(t *testing.T) {
	res := fixtureResult()

	require.NotNil(t, res.Model())
	assert.Equal(t, "N", res.Model().Name)
	require.NotNil(t, res.Research())

	shapes, ok := res.Shapes()
	require.True(t, ok)
	assert.Equal(t, []string{"(8,)", "(2,)"}, shapes)
	assert.Equal(t, []string{"E215"}, res.FindingCodes())

	code, ok := res.Code("tensorflow")
	assert.True(t, ok)
	assert.Contains(t, code, "model.compile()")
	_, ok = res.Code("pytorch")
	assert.False(t, ok)

	empty := NewResult()
	assert.Nil(t, empty.Model())
	assert.Nil(t, empty.Research())
	_, ok = empty.Shapes()
	assert.False(t, ok)
	assert.Equal(t, []string{}, empty.FindingCodes())

	empty.AddError("boom")
	assert.False(t, empty.Pass)
	assert.Equal(t, []string{"boom"}, empty.Errors)
}
