package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Cache string
}

// ReplayEntry is one cached compilation that failed to reproduce.
type ReplayEntry struct {
	SourceHash string `json:"source_hash"`
	Name       string `json:"name,omitempty"`
	Stored     string `json:"stored"`
	Got        string `json:"got,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Checked       int           `json:"checked"`
	Mismatches    []ReplayEntry `json:"mismatches"`
	LastSeq       int64         `json:"last_seq"`
	Deterministic bool          `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompile cached sources and verify determinism",
		Long: `Recompile every source stored in the artifact cache and compare the
result with the stored canonical record. The cache itself is not modified.

Exit codes:
  0 - Every cached compilation reproduced
  1 - At least one record differs or no longer compiles
  2 - Command error (cache not configured, cannot be opened, etc.)

Examples:
  neuraldsl replay --cache .neuraldsl/cache.db
  neuraldsl replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cache, "cache", "", "path to the sqlite artifact cache (default from config)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, cmd, opts.Cache)
	if err != nil {
		return formatter.Fail(err, nil)
	}
	defer s.Close()
	if s.store == nil {
		return formatter.Fail(&LoadError{Code: ErrCodeNotFound, Message: "no cache configured: pass --cache or set cache in the config"}, nil)
	}

	// Recompile without the store so the replay never rewrites what it checks.
	eng := engine.New(engine.WithRegistry(s.engine.Registry()), engine.WithLogger(s.logger))
	ctx := cmd.Context()

	replayed, err := s.store.Replay(ctx, func(ctx context.Context, start, source string) (string, string, error) {
		sym, err := grammar.ParseStartSymbol(start)
		if err != nil {
			return "", "", err
		}
		out, err := eng.Compile(ctx, engine.Request{Filename: "cache", Source: source, Start: sym})
		if err != nil {
			return "", "", err
		}
		c, err := store.NewCompilation(start, source, out.Record())
		if err != nil {
			return "", "", err
		}
		return c.RecordHash, c.RecordJSON, nil
	})
	if err != nil {
		return formatter.Fail(&LoadError{Code: ErrCodeStore, Message: err.Error()}, nil)
	}

	lastSeq, err := s.store.GetLastSeq(ctx)
	if err != nil {
		return formatter.Fail(&LoadError{Code: ErrCodeStore, Message: err.Error()}, nil)
	}

	result := ReplayResult{
		Checked:       replayed.Checked,
		Mismatches:    make([]ReplayEntry, 0, len(replayed.Mismatches)),
		LastSeq:       lastSeq,
		Deterministic: replayed.Deterministic(),
	}
	for _, m := range replayed.Mismatches {
		entry := ReplayEntry{SourceHash: m.SourceHash, Name: m.Name, Stored: m.Stored, Got: m.Got}
		if m.Err != nil {
			entry.Error = m.Err.Error()
		}
		result.Mismatches = append(result.Mismatches, entry)
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeGeneric,
			Message: "determinism verification failed",
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, result ReplayResult) error {
	w := f.Writer

	fmt.Fprintf(w, "Replay Summary: %d compilation(s), last seq %d\n", result.Checked, result.LastSeq)

	for _, m := range result.Mismatches {
		name := m.Name
		if name == "" {
			name = m.SourceHash[:12]
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		if m.Error != "" {
			fmt.Fprintf(w, "  no longer compiles: %s\n", m.Error)
		} else {
			fmt.Fprintf(w, "  stored %s, got %s\n", m.Stored, m.Got)
		}
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ All cached compilations reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
