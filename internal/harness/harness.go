package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/neuraldsl/internal/engine"
)

// Run compiles the scenario's source and evaluates its assertions.
//
// A compile failure is only a test failure when no error assertion expects
// it. The returned error reports problems with the scenario itself, such as
// an unknown backend, never assertion failures.
func Run(scenario *Scenario, opts ...engine.EngineOption) (*Result, error) {
	start, err := scenario.StartSymbol()
	if err != nil {
		return nil, err
	}
	backends, err := scenario.ParsedBackends()
	if err != nil {
		return nil, err
	}

	// Suppress logs in scenarios; callers can still pass their own logger.
	opts = append([]engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	eng := engine.New(opts...)

	outcome, compileErr := eng.Compile(context.Background(), engine.Request{
		Filename: scenario.Name,
		Source:   scenario.Source,
		Start:    start,
		Shapes:   !scenario.SkipShapes,
		Backends: backends,
	})

	result := NewResult()
	result.Outcome = outcome
	result.Trace = outcome.Trace
	result.CompileErr = compileErr

	if compileErr != nil && !expectsError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("compile failed: %v", compileErr))
		return result, nil
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
