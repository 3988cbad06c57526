package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/compiler"
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Cache  string // sqlite artifact cache, overrides the config
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	File     string                     `json:"file"`
	Start    string                     `json:"start"`
	Hash     string                     `json:"hash"`
	Record   json.RawMessage            `json:"record"`
	Findings []compiler.ValidationError `json:"findings"`
	Output   string                     `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a DSL file to its canonical record",
		Long: `Compile a .neural/.nr network or .rnr research file to canonical JSON.

The file is parsed, lowered to a model (or research report) and checked by
the validator. Validation findings are reported but do not fail the compile.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the sqlite artifact cache")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	out, err := compileFile(opts.RootOptions, cmd, path, opts.Cache, false, nil)
	if err != nil {
		return formatter.Fail(err, traceDetails(out))
	}

	record, err := ir.MarshalCanonical(out.Record())
	if err != nil {
		return formatter.Fail(err, nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, record, 0o644); err != nil {
			return formatter.Fail(&LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)}, nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(CompilationResult{
			File:     path,
			Start:    out.Start.String(),
			Hash:     out.RecordHash,
			Record:   record,
			Findings: findingsOrEmpty(out.Findings),
			Output:   opts.Output,
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n", summary(out))
	fmt.Fprintf(w, "  hash: %s\n", out.RecordHash)
	printFindings(formatter, out.Findings)
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote canonical record to %s\n", opts.Output)
	} else {
		fmt.Fprintf(w, "\n%s\n", record)
	}
	return nil
}

// compileFile loads path and runs it through the pipeline. The outcome is
// returned even on failure when compilation got that far.
func compileFile(opts *RootOptions, cmd *cobra.Command, path, cache string, shapes bool, backends []codegen.Backend) (*engine.Outcome, error) {
	src, err := LoadSource(path)
	if err != nil {
		return nil, err
	}

	s, err := openSession(opts, cmd, cache)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.engine.Compile(cmd.Context(), engine.Request{
		Filename: src.Path,
		Source:   src.Text,
		Start:    src.Start,
		Shapes:   shapes,
		Backends: backends,
	})
}

// summary describes the compiled record in one line.
func summary(out *engine.Outcome) string {
	res := out.Result
	switch {
	case res.Model != nil:
		return fmt.Sprintf("model %s: %d layer(s), input %s", res.Model.Name, len(res.Model.Layers), res.Model.InputShape)
	case res.Research != nil:
		name := "(anonymous)"
		if res.Research.Name != nil {
			name = *res.Research.Name
		}
		return fmt.Sprintf("research %s: %d metric(s), %d reference(s)", name, res.Research.Metrics.Len(), len(res.Research.References))
	case res.Layer != nil:
		return "layer " + res.Layer.Kind
	}
	return out.Start.String()
}

func printFindings(f *OutputFormatter, findings []compiler.ValidationError) {
	for _, finding := range findings {
		fmt.Fprintf(f.Writer, "  ! %s %s: %s\n", finding.Code, finding.Field, finding.Message)
	}
}

func findingsOrEmpty(findings []compiler.ValidationError) []compiler.ValidationError {
	if findings == nil {
		return []compiler.ValidationError{}
	}
	return findings
}

// traceDetails is the error detail payload: the stages that ran.
func traceDetails(out *engine.Outcome) any {
	if out == nil || len(out.Trace) == 0 {
		return nil
	}
	return out.Trace
}
