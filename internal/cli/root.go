package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/config"
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to neuraldsl.cue
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the neuraldsl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "neuraldsl",
		Short: "Neural network DSL compiler",
		Long: `Compile neural network descriptions into a canonical model record,
propagate tensor shapes through them, and generate TensorFlow or PyTorch
programs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", config.FileName, "path to the configuration file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewShapesCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger returns a text logger on w. --verbose selects Debug.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session is what a command needs to run the compile pipeline: the loaded
// configuration, a logger and, when caching is on, an open store.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine
}

// openSession loads the configuration and builds an engine. cache
// overrides the configured cache path when non-empty.
func openSession(opts *RootOptions, cmd *cobra.Command, cache string) (*session, error) {
	s := &session{logger: newLogger(opts, cmd.ErrOrStderr())}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("loading config: %v", err)}
	}
	s.cfg = cfg
	s.logger.Debug("config loaded", "path", opts.Config, "backend", cfg.Backend, "plugins", len(cfg.Plugins))

	reg, err := cfg.Registry()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("building plugins: %v", err)}
	}

	engineOpts := []engine.EngineOption{engine.WithRegistry(reg), engine.WithLogger(s.logger)}

	if cache == "" {
		cache = cfg.Cache
	}
	if cache != "" {
		st, err := store.Open(cache)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("opening cache: %v", err)}
		}
		s.store = st
		engineOpts = append(engineOpts, engine.WithStore(st))
		s.logger.Debug("cache opened", "path", cache, "run_id", st.RunID())
	}

	s.engine = engine.New(engineOpts...)
	return s, nil
}

// backend resolves name, falling back to the configured default.
func (s *session) backend(name string) (codegen.Backend, error) {
	if name == "" {
		name = s.cfg.Backend
	}
	return codegen.ParseBackend(name)
}

func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing cache", "error", err)
	}
}
