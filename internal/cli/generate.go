package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/engine"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Backend  string // backend name, "auto", or "" for the configured default
	Output   string
	Cache    string
	NoShapes bool
}

// GenerateResult is the JSON payload of the generate command.
type GenerateResult struct {
	File    string `json:"file"`
	Backend string `json:"backend"`
	Hash    string `json:"hash"`
	Cached  bool   `json:"cached"`
	Code    string `json:"code,omitempty"`
	Output  string `json:"output,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Generate a Python program from a network",
		Long: `Generate a TensorFlow (Keras Sequential) or PyTorch (nn.Module) program
from a network file. Shapes are propagated first so that shape errors are
reported before any code is written; --no-shapes skips this for networks
whose layers have no shape rule.

--backend accepts tensorflow, keras, pytorch, torch, or auto. auto picks
pytorch when a layer parameter names "torch" and tensorflow otherwise.

Examples:
  neuraldsl generate mnist.neural
  neuraldsl generate mnist.neural --backend pytorch -o mnist.py
  neuraldsl generate mnist.neural --cache .neuraldsl/cache.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "", "target backend (default from config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the sqlite artifact cache")
	cmd.Flags().BoolVar(&opts.NoShapes, "no-shapes", false, "skip shape propagation")

	return cmd
}

func runGenerate(opts *GenerateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	backend, err := resolveBackend(opts, path, cmd)
	if err != nil {
		return formatter.Fail(err, nil)
	}
	formatter.VerboseLog("Generating %s code for %s", backend.Name(), path)

	out, err := compileFile(opts.RootOptions, cmd, path, opts.Cache, !opts.NoShapes, []codegen.Backend{backend})
	if err != nil {
		return formatter.Fail(err, traceDetails(out))
	}
	code := out.Code[backend.Name()]
	last := out.Trace[len(out.Trace)-1]

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(code), 0o644); err != nil {
			return formatter.Fail(&LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)}, nil)
		}
	}

	if formatter.JSON() {
		result := GenerateResult{
			File:    path,
			Backend: backend.Name(),
			Hash:    out.RecordHash,
			Cached:  last.Status == engine.StatusCached,
			Output:  opts.Output,
		}
		if opts.Output == "" {
			result.Code = code
		}
		return formatter.Success(result)
	}

	if opts.Output == "" {
		_, err := fmt.Fprint(formatter.Writer, code)
		return err
	}
	fmt.Fprintf(formatter.Writer, "✓ Generated %s code for %s\n", backend.Name(), summary(out))
	fmt.Fprintf(formatter.Writer, "Wrote %s\n", opts.Output)
	return nil
}

// resolveBackend picks the backend from --backend, the config, or for
// "auto" from the compiled model itself.
func resolveBackend(opts *GenerateOptions, path string, cmd *cobra.Command) (codegen.Backend, error) {
	if !strings.EqualFold(strings.TrimSpace(opts.Backend), "auto") {
		s, err := openSession(opts.RootOptions, cmd, "")
		if err != nil {
			return 0, err
		}
		defer s.Close()
		return s.backend(opts.Backend)
	}

	out, err := compileFile(opts.RootOptions, cmd, path, "", false, nil)
	if err != nil {
		return 0, err
	}
	if out.Result.Model == nil {
		return 0, &LoadError{Code: ErrCodeUnsupportedExt, Message: fmt.Sprintf("generate needs a network file, got %s", out.Start)}
	}
	return codegen.DetectBackend(out.Result.Model), nil
}
