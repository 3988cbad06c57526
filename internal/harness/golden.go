package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/neuraldsl/internal/ir"
)

// Snapshot renders the parts of a result that golden files pin down: the
// stage trace, the shape history when propagation ran, and the validation
// finding codes. The encoding is canonical JSON, so snapshots compare
// byte for byte.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make(ir.List, len(result.Trace))
	for i, ev := range result.Trace {
		m := ir.MapOf(
			ir.P("step", ir.Int(ev.Step)),
			ir.P("stage", ir.Str(ev.Stage)),
			ir.P("status", ir.Str(ev.Status)),
		)
		if ev.Detail != "" {
			m.Set("detail", ir.Str(ev.Detail))
		}
		trace[i] = m
	}

	snap := ir.MapOf(
		ir.P("scenario_name", ir.Str(scenarioName)),
		ir.P("trace", trace),
	)

	if shapes, ok := result.Shapes(); ok {
		list := make(ir.List, len(shapes))
		for i, s := range shapes {
			list[i] = ir.Str(s)
		}
		snap.Set("shapes", list)
	}
	findings := ir.List{}
	for _, code := range result.FindingCodes() {
		findings = append(findings, ir.Str(code))
	}
	snap.Set("findings", findings)

	return ir.MarshalCanonical(snap)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
