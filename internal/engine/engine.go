package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/compiler"
	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
	"github.com/roach88/neuraldsl/internal/shape"
	"github.com/roach88/neuraldsl/internal/store"
)

// Stage names recorded in the trace. Code generation stages are named
// "codegen:" followed by the backend name.
const (
	StageParse     = "parse"
	StageTransform = "transform"
	StageValidate  = "validate"
	StageCache     = "cache"
	StageShape     = "shape"
	stageCodegen   = "codegen:"
)

// Event statuses.
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusCached = "cached"
)

// StageEvent is one entry of the compile trace.
type StageEvent struct {
	Step   int    `json:"step"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Request describes one compile.
type Request struct {
	Filename string // used in syntax error positions
	Source   string
	Start    grammar.StartSymbol
	Shapes   bool // run shape propagation (networks only)
	Backends []codegen.Backend
}

// Outcome holds everything a compile produced. On failure it holds what
// the stages before the failing one produced.
type Outcome struct {
	Start      grammar.StartSymbol
	Result     *compiler.Result
	RecordHash string
	Findings   []compiler.ValidationError
	Shapes     []ir.Shape
	Code       map[string]string // backend name -> generated program
	Trace      []StageEvent
}

func (o *Outcome) record(stage, status, detail string) {
	o.Trace = append(o.Trace, StageEvent{
		Step:   len(o.Trace) + 1,
		Stage:  stage,
		Status: status,
		Detail: detail,
	})
}

// Record returns the compiled value: *ir.Model, *ir.ResearchReport or
// ir.LayerSpec. Returns nil before the transform stage succeeded.
func (o *Outcome) Record() any {
	if o.Result == nil {
		return nil
	}
	switch {
	case o.Result.Model != nil:
		return o.Result.Model
	case o.Result.Research != nil:
		return o.Result.Research
	case o.Result.Layer != nil:
		return *o.Result.Layer
	}
	return nil
}

// Engine runs the compile pipeline.
type Engine struct {
	grammar  *grammar.Grammar
	registry *plugin.Registry
	store    *store.Store
	logger   *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithGrammar replaces the shared default grammar.
func WithGrammar(g *grammar.Grammar) EngineOption {
	return func(e *Engine) { e.grammar = g }
}

// WithRegistry supplies the layer plugins consulted by every stage.
func WithRegistry(reg *plugin.Registry) EngineOption {
	return func(e *Engine) { e.registry = reg }
}

// WithStore attaches an artifact cache.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the logger for stage diagnostics. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine. Without options it uses the default grammar, no
// plugins and no cache.
func New(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.grammar == nil {
		e.grammar = grammar.Default()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the plugin registry the engine was built with.
func (e *Engine) Registry() *plugin.Registry {
	return e.registry
}

// Compile runs every stage req asks for. The returned Outcome is never nil;
// on failure the error is a *StageError and the trace ends with the failed
// stage.
func (e *Engine) Compile(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{Start: req.Start, Code: map[string]string{}}
	log := e.logger.With("file", req.Filename, "start", req.Start.String())

	fail := func(code StageErrorCode, stage string, err error) (*Outcome, error) {
		out.record(stage, StatusError, err.Error())
		log.Debug("stage failed", "stage", stage, "error", err)
		return out, &StageError{Code: code, Stage: stage, Err: err}
	}

	tree, err := e.grammar.ParseNamed(req.Filename, req.Source, req.Start)
	if err != nil {
		return fail(ErrCodeParse, StageParse, err)
	}
	out.record(StageParse, StatusOK, req.Start.String())

	res, err := compiler.Transform(tree, e.registry)
	if err != nil {
		return fail(ErrCodeTransform, StageTransform, err)
	}
	out.Result = res
	if out.RecordHash, err = recordHash(res); err != nil {
		return fail(ErrCodeTransform, StageTransform, err)
	}
	out.record(StageTransform, StatusOK, describe(res))
	log.Debug("transformed", "record", describe(res), "hash", out.RecordHash)

	out.Findings = compiler.Validate(res)
	out.record(StageValidate, StatusOK, fmt.Sprintf("%d findings", len(out.Findings)))
	for _, f := range out.Findings {
		log.Debug("validation finding", "code", f.Code, "field", f.Field, "message", f.Message)
	}

	if e.store != nil {
		c, err := store.NewCompilation(req.Start.String(), req.Source, out.Record())
		if err == nil {
			c, err = e.store.PutCompilation(ctx, c)
		}
		if err != nil {
			return fail(ErrCodeCache, StageCache, err)
		}
		out.record(StageCache, StatusOK, fmt.Sprintf("seq %d", c.Seq))
	}

	if req.Shapes && res.Model != nil {
		history, err := shape.PropagateModel(res.Model, e.registry)
		if err != nil {
			return fail(ErrCodeShape, StageShape, err)
		}
		out.Shapes = history
		out.record(StageShape, StatusOK, finalShape(res.Model, history).String())
	}

	for _, b := range req.Backends {
		stage := stageCodegen + b.Name()
		if res.Model == nil {
			return fail(ErrCodeCodegen, stage, fmt.Errorf("code generation needs a network, got a %s", req.Start))
		}
		code, cached, err := e.generate(ctx, res.Model, out.RecordHash, b)
		if err != nil {
			if errors.Is(err, errCache) {
				return fail(ErrCodeCache, stage, err)
			}
			return fail(ErrCodeCodegen, stage, err)
		}
		out.Code[b.Name()] = code

		status := StatusOK
		if cached {
			status = StatusCached
		}
		out.record(stage, status, ir.CodeHash(b.Name(), code)[:16])
		log.Debug("generated", "backend", b.Name(), "cached", cached, "bytes", len(code))
	}
	return out, nil
}

var errCache = errors.New("artifact cache")

// generate returns code for m, from the artifact cache when the store has
// it. Code from a registry without a fingerprint is never cached: its
// emitters could change between runs without changing the key.
func (e *Engine) generate(ctx context.Context, m *ir.Model, hash string, b codegen.Backend) (string, bool, error) {
	plugins, cacheable := e.registry.Fingerprint()
	cacheable = cacheable && e.store != nil

	if cacheable {
		a, err := e.store.ReadArtifact(ctx, hash, b.Name(), plugins)
		switch {
		case err == nil:
			return a.Code, true, nil
		case !errors.Is(err, sql.ErrNoRows):
			return "", false, fmt.Errorf("%w: %w", errCache, err)
		}
	}

	code, err := codegen.Generate(m, b, e.registry)
	if err != nil {
		return "", false, err
	}
	if cacheable {
		if _, err := e.store.PutArtifact(ctx, hash, b.Name(), plugins, code); err != nil {
			return "", false, fmt.Errorf("%w: %w", errCache, err)
		}
	}
	return code, false, nil
}

func recordHash(res *compiler.Result) (string, error) {
	switch {
	case res.Model != nil:
		return ir.ModelHash(res.Model)
	case res.Research != nil:
		return ir.ReportHash(res.Research)
	case res.Layer != nil:
		return ir.LayerHash(*res.Layer)
	}
	return "", fmt.Errorf("empty compile result")
}

func describe(res *compiler.Result) string {
	switch {
	case res.Model != nil:
		return fmt.Sprintf("model %s (%d layers)", res.Model.Name, len(res.Model.Layers))
	case res.Research != nil:
		if res.Research.Name != nil {
			return "research " + *res.Research.Name
		}
		return "research"
	case res.Layer != nil:
		return "layer " + res.Layer.Kind
	}
	return ""
}

func finalShape(m *ir.Model, history []ir.Shape) ir.Shape {
	if len(history) == 0 {
		return m.InputShape
	}
	return history[len(history)-1]
}
