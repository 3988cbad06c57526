package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML compile scenarios through the pipeline and check their
assertions. A scenario with a golden file next to it (golden/<name>.golden)
must also reproduce the recorded stage trace and shape history.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  neuraldsl test ./scenarios
  neuraldsl test ./scenarios --filter "mnist_*"
  neuraldsl test ./scenarios --update
  neuraldsl test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, cmd, "")
	if err != nil {
		return formatter.Fail(err, nil)
	}
	defer s.Close()

	result, err := harness.RunSuite(scenariosDir, harness.SuiteOptions{
		Filter: opts.Filter,
		Update: opts.Update,
		Engine: []engine.EngineOption{engine.WithRegistry(s.engine.Registry())},
	})
	var notFound *harness.ScenarioNotFoundError
	if errors.As(err, &notFound) {
		return formatter.Fail(&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", scenariosDir)}, nil)
	}
	if err != nil {
		return formatter.Fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("failed to find scenarios: %v", err)}, nil)
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{Status: status(result.Failed == 0), Data: result}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(f *OutputFormatter, result *harness.SuiteResult) error {
	w := f.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, so := range result.Scenarios {
		if so.Pass {
			switch so.Golden {
			case "updated":
				fmt.Fprintf(w, "✓ %s (golden updated)\n", so.Name)
			case "match":
				fmt.Fprintf(w, "✓ %s (golden)\n", so.Name)
			default:
				fmt.Fprintf(w, "✓ %s\n", so.Name)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", so.Name)
		for _, e := range so.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
