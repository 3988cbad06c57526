package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/engine"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Backends []string
	Stage    string // optional - only stages with this prefix
	Cache    string
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	File  string              `json:"file"`
	Trace []engine.StageEvent `json:"trace"`
	Stats TraceStats          `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Stages   int    `json:"stages"`
	Cached   int    `json:"cached"`
	FailedAt string `json:"failed_at,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Show every compile stage a file goes through",
		Long: `Compile a file and print the stage trace: parse, transform, validate,
cache, shape and one codegen stage per requested backend. A failing stage
ends the trace and is reported with its error.

Examples:
  neuraldsl trace mnist.neural
  neuraldsl trace mnist.neural --backend tensorflow --backend pytorch
  neuraldsl trace mnist.neural --stage codegen --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Backends, "backend", "b", nil, "backends to generate (repeatable)")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "only show stages with this prefix")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the sqlite artifact cache")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	backends := make([]codegen.Backend, 0, len(opts.Backends))
	for _, name := range opts.Backends {
		b, err := codegen.ParseBackend(name)
		if err != nil {
			return formatter.Fail(err, nil)
		}
		backends = append(backends, b)
	}

	out, compileErr := compileFile(opts.RootOptions, cmd, path, opts.Cache, true, backends)
	if out == nil {
		// Nothing ran: the file could not be loaded.
		return formatter.Fail(compileErr, nil)
	}

	result := TraceResult{File: path, Trace: filterTrace(out.Trace, opts.Stage)}
	result.Stats.Stages = len(out.Trace)
	for _, ev := range out.Trace {
		if ev.Status == engine.StatusCached {
			result.Stats.Cached++
		}
	}
	var se *engine.StageError
	if errors.As(compileErr, &se) {
		result.Stats.FailedAt = se.Stage
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: status(compileErr == nil), Data: result}
		if compileErr != nil {
			resp.Error = &CLIError{Code: ErrorCode(compileErr), Message: compileErr.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		outputTraceText(formatter, result)
	}

	if compileErr != nil {
		return WrapExitError(ExitFailure, ErrorCode(compileErr), compileErr)
	}
	return nil
}

// filterTrace keeps events whose stage starts with prefix.
func filterTrace(trace []engine.StageEvent, prefix string) []engine.StageEvent {
	if prefix == "" {
		return trace
	}
	filtered := []engine.StageEvent{}
	for _, ev := range trace {
		if strings.HasPrefix(ev.Stage, prefix) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Trace: %s\n\n", result.File)
	for _, ev := range result.Trace {
		mark := "✓"
		switch ev.Status {
		case engine.StatusError:
			mark = "✗"
		case engine.StatusCached:
			mark = "↺"
		}
		fmt.Fprintf(w, "  %s [%d] %-20s %s\n", mark, ev.Step, ev.Stage, ev.Detail)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d stage(s), %d cached", result.Stats.Stages, result.Stats.Cached)
	if result.Stats.FailedAt != "" {
		fmt.Fprintf(w, ", failed at %s", result.Stats.FailedAt)
	}
	fmt.Fprintln(w)
}
