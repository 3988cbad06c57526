package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	File     string                     `json:"file"`
	Valid    bool                       `json:"valid"`
	Findings []compiler.ValidationError `json:"findings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a DSL file without generating code",
		Long: `Parse and lower a DSL file, propagate shapes through networks and run
the semantic checks. Any validation finding makes the command fail.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	out, err := compileFile(opts, cmd, path, "", true, nil)
	if err != nil {
		return formatter.Fail(err, traceDetails(out))
	}
	formatter.VerboseLog("Validated %s", summary(out))

	result := ValidationResult{
		File:     path,
		Valid:    len(out.Findings) == 0,
		Findings: findingsOrEmpty(out.Findings),
	}

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{Status: status(result.Valid), Data: result}); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s: %d finding(s)\n", path, len(result.Findings))
		printFindings(formatter, result.Findings)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(result.Findings)))
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
