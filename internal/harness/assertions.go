package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []engine.StageEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", ev.Step, ev.Stage, ev.Status)
		if ev.Detail != "" {
			fmt.Fprintf(&buf, " (%s)", ev.Detail)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages. All assertions run; the first failure does not stop
// the rest.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLayers:
			err = assertLayers(result, assertion)
		case AssertShapes:
			err = assertShapes(result, assertion)
		case AssertOutputShape:
			err = assertOutputShape(result, assertion)
		case AssertParam:
			err = assertParam(result, assertion)
		case AssertCodeContains:
			err = assertCodeCount(result, assertion, -1)
		case AssertCodeCount:
			err = assertCodeCount(result, assertion, assertion.Count)
		case AssertCodeOrder:
			err = assertCodeOrder(result, assertion)
		case AssertError:
			err = assertError(result, assertion)
		case AssertMetric:
			err = assertMetric(result, assertion)
		case AssertFindings:
			err = assertFindings(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func fail(result *Result, a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: result.Trace}
}

func model(result *Result, a Assertion) (*ir.Model, error) {
	m := result.Model()
	if m == nil {
		return nil, fail(result, a, "a compiled network", "no model produced")
	}
	return m, nil
}

func assertLayers(result *Result, a Assertion) error {
	m, err := model(result, a)
	if err != nil {
		return err
	}
	kinds := make([]string, len(m.Layers))
	for i, l := range m.Layers {
		kinds[i] = l.Kind
	}
	if !slices.Equal(kinds, a.Kinds) {
		return fail(result, a, fmt.Sprintf("layers %v", a.Kinds), fmt.Sprintf("layers %v", kinds))
	}
	return nil
}

func assertShapes(result *Result, a Assertion) error {
	got, ok := result.Shapes()
	if !ok {
		return fail(result, a, fmt.Sprintf("shapes %v", a.Shapes), "shape propagation did not run")
	}
	if !slices.Equal(got, a.Shapes) {
		return fail(result, a, fmt.Sprintf("shapes %v", a.Shapes), fmt.Sprintf("shapes %v", got))
	}
	return nil
}

func assertOutputShape(result *Result, a Assertion) error {
	m, err := model(result, a)
	if err != nil {
		return err
	}
	if got := m.OutputShape.String(); got != a.Shape {
		return fail(result, a, "output shape "+a.Shape, "output shape "+got)
	}
	return nil
}

func assertParam(result *Result, a Assertion) error {
	m, err := model(result, a)
	if err != nil {
		return err
	}
	if a.Layer >= len(m.Layers) {
		return fail(result, a, fmt.Sprintf("layer %d", a.Layer), fmt.Sprintf("%d layers", len(m.Layers)))
	}
	l := m.Layers[a.Layer]
	v, ok := l.Param(a.Param)
	if !ok {
		return fail(result, a,
			fmt.Sprintf("%s.%s = %s", l.Kind, a.Param, a.Literal),
			fmt.Sprintf("%s has no parameter %q", l.Kind, a.Param))
	}
	if got := codegen.Literal(v); got != a.Literal {
		return fail(result, a,
			fmt.Sprintf("%s.%s = %s", l.Kind, a.Param, a.Literal),
			fmt.Sprintf("%s.%s = %s", l.Kind, a.Param, got))
	}
	return nil
}

func generated(result *Result, a Assertion) (string, error) {
	b, err := codegen.ParseBackend(a.Backend)
	if err != nil {
		return "", err
	}
	if result.Outcome == nil {
		return "", fail(result, a, b.Name()+" code", "nothing compiled")
	}
	code, ok := result.Code(b.Name())
	if !ok {
		return "", fail(result, a, b.Name()+" code", "backend was not generated")
	}
	return code, nil
}

// assertCodeCount checks occurrences of a.Text. want < 0 means at least once.
func assertCodeCount(result *Result, a Assertion, want int) error {
	code, err := generated(result, a)
	if err != nil {
		return err
	}
	n := strings.Count(code, a.Text)
	switch {
	case want < 0 && n == 0:
		return fail(result, a, fmt.Sprintf("%s code contains %q", a.Backend, a.Text), "not found")
	case want >= 0 && n != want:
		return fail(result, a,
			fmt.Sprintf("%q exactly %d times", a.Text, want),
			fmt.Sprintf("found %d times", n))
	}
	return nil
}

// assertCodeOrder checks that a.Texts appear in order. Texts need not be
// adjacent.
func assertCodeOrder(result *Result, a Assertion) error {
	code, err := generated(result, a)
	if err != nil {
		return err
	}
	pos := 0
	for i, text := range a.Texts {
		idx := strings.Index(code[pos:], text)
		if idx < 0 {
			actual := "missing: " + text
			if strings.Contains(code, text) {
				actual = fmt.Sprintf("%q appears before %q", text, a.Texts[i-1])
			}
			return fail(result, a, fmt.Sprintf("in order: %q", a.Texts), actual)
		}
		pos += idx + len(text)
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	if result.CompileErr == nil {
		return fail(result, a, "compile to fail at "+a.Stage, "compile succeeded")
	}
	var se *engine.StageError
	if errors.As(result.CompileErr, &se) && se.Stage != a.Stage {
		return fail(result, a, "failure at "+a.Stage, "failure at "+se.Stage)
	}
	if a.Contains != "" && !strings.Contains(result.CompileErr.Error(), a.Contains) {
		return fail(result, a, fmt.Sprintf("error containing %q", a.Contains), result.CompileErr.Error())
	}
	return nil
}

func assertMetric(result *Result, a Assertion) error {
	report := result.Research()
	if report == nil {
		return fail(result, a, "a research report", "no report produced")
	}
	got, ok := report.Metric(a.Metric)
	if !ok {
		return fail(result, a, fmt.Sprintf("%s = %v", a.Metric, a.Value), "metric not recorded")
	}
	if got != a.Value {
		return fail(result, a, fmt.Sprintf("%s = %v", a.Metric, a.Value), fmt.Sprintf("%s = %v", a.Metric, got))
	}
	return nil
}

func assertFindings(result *Result, a Assertion) error {
	if result.Outcome == nil {
		return fail(result, a, fmt.Sprintf("findings %v", a.Codes), "nothing compiled")
	}
	got := result.FindingCodes()
	want := a.Codes
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return fail(result, a, fmt.Sprintf("findings %v", want), fmt.Sprintf("findings %v", got))
	}
	return nil
}
